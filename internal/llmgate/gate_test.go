package llmgate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripReasoningRemovesThinkBlock(t *testing.T) {
	in := "<think>let me consider the options</think>The answer is 4."
	require.Equal(t, "The answer is 4.", stripReasoning(in))
}

func TestStripReasoningRemovesReasoningBlockCaseInsensitive(t *testing.T) {
	in := "<REASONING>internal deliberation\nspanning lines</REASONING>\nFinal answer."
	require.Equal(t, "Final answer.", stripReasoning(in))
}

func TestStripReasoningLeavesPlainContentUnchanged(t *testing.T) {
	in := "No reasoning markers here."
	require.Equal(t, in, stripReasoning(in))
}

func TestProbeHardwareOptionsFallsBackToConfiguredLayers(t *testing.T) {
	opts := probeHardwareOptions(12)
	require.True(t, opts.GPULayers == 12 || opts.GPULayers == -1)
}
