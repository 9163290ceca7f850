package curiosity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackTopicsMatchesCuriousAboutPattern(t *testing.T) {
	topics := fallbackTopics("I'm curious about quantum entanglement basics", "Sure, let's explore it.")
	require.Contains(t, topics, "quantum entanglement basics")
}

func TestFallbackTopicsMatchesIWonderPattern(t *testing.T) {
	topics := fallbackTopics("I wonder how neural networks actually learn", "Great question.")
	require.NotEmpty(t, topics)
}

func TestFallbackTopicsSkipsShortFragments(t *testing.T) {
	topics := fallbackTopics("i wonder why", "short reply")
	require.Empty(t, topics)
}

func TestFallbackTopicsCapsAtMaxPerExchange(t *testing.T) {
	msg := "I'm curious about topic number one here and I wonder about topic number two right now " +
		"and this is a fascinating concept: topic number three for real."
	topics := fallbackTopics(msg, "")
	require.LessOrEqual(t, len(topics), maxTopicsPerExchange)
}

func TestTruncateLeavesShortStringsUnchanged(t *testing.T) {
	require.Equal(t, "short", truncate("short", 300))
}

func TestTruncateCutsAtLimit(t *testing.T) {
	require.Equal(t, "abc", truncate("abcdef", 3))
}
