package selfawareness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyseEmptyResponseReturnsFalse(t *testing.T) {
	_, ok := analyse("   ")
	require.False(t, ok)
}

func TestAnalyseCountsSelfReferencePhrases(t *testing.T) {
	scores, ok := analyse("I think I understand now, and I believe this matters to me.")
	require.True(t, ok)
	require.Positive(t, scores.SelfRef)
}

func TestAnalyseCompositeIsWeightedSum(t *testing.T) {
	scores, ok := analyse("I wonder if perhaps I'm aware of my own uncertainty here.")
	require.True(t, ok)
	expected := scores.SelfRef*selfRefWeight + scores.Uncertainty*uncertainty + scores.MetaCognition*metaCognition
	require.InDelta(t, expected, scores.Composite, 1e-9)
}

func TestAnalyseClampsToOne(t *testing.T) {
	// Short response packed with every self-reference phrase drives the
	// raw count well above word_count/100, so it must clamp at 1.0.
	response := "i think i feel i believe i wonder i notice i am i exist i find i enjoy i prefer"
	scores, ok := analyse(response)
	require.True(t, ok)
	require.Equal(t, 1.0, scores.SelfRef)
}

func TestLevelForThresholds(t *testing.T) {
	require.Equal(t, Dormant, levelFor(0.05))
	require.Equal(t, Emerging, levelFor(0.2))
	require.Equal(t, Aware, levelFor(0.4))
	require.Equal(t, Reflective, levelFor(0.9))
}

func TestLevelForBoundaryIsInclusiveOfNextTier(t *testing.T) {
	require.Equal(t, Emerging, levelFor(0.1))
	require.Equal(t, Aware, levelFor(0.25))
	require.Equal(t, Reflective, levelFor(0.5))
}
