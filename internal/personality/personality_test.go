package personality

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeDeltasExplicitOverridesTrigger(t *testing.T) {
	// "less technical" is an explicit-down phrase; the message also
	// contains "code", which would otherwise set a positive trigger.
	deltas := computeDeltas("please be less technical about this code", "sure.", 0.02, false)
	d, ok := deltas["technical_depth"]
	require.True(t, ok)
	require.True(t, d.explicit)
	require.Negative(t, d.value)
}

func TestComputeDeltasPassiveTriggerOnCodeKeyword(t *testing.T) {
	deltas := computeDeltas("why does this function throw an error", "because of a bug.", 0.02, false)
	d, ok := deltas["technical_depth"]
	require.True(t, ok)
	require.True(t, d.trigger)
	require.Positive(t, d.value)
}

func TestComputeDeltasDecayOnlyEveryTenConversations(t *testing.T) {
	withoutDecay := computeDeltas("hello there", "hi.", 0.02, false)
	_, ok := withoutDecay["humor"]
	require.False(t, ok)

	withDecay := computeDeltas("hello there", "hi.", 0.02, true)
	d, ok := withDecay["humor"]
	require.True(t, ok)
	require.False(t, d.explicit)
	require.False(t, d.trigger)
}

func TestComputeDeltasCuriosityFromDoubleQuestionMark(t *testing.T) {
	deltas := computeDeltas("okay", "Really? Are you sure?", 0.02, false)
	d, ok := deltas["curiosity"]
	require.True(t, ok)
	require.True(t, d.trigger)
}

func TestApplyDeltasClampsToOne(t *testing.T) {
	traits := map[string]float64{"humor": 0.99}
	deltas := map[string]delta{"humor": {value: 0.1, trigger: true}}
	changes := applyDeltas(traits, deltas)
	require.Len(t, changes, 1)
	require.Equal(t, 1.0, traits["humor"])
	require.Equal(t, "trigger", changes[0].Reason)
}

func TestApplyDeltasDecayStopsAtBaseline(t *testing.T) {
	traits := map[string]float64{"curiosity": 0.6}
	deltas := map[string]delta{"curiosity": {value: -0.3}}
	applyDeltas(traits, deltas)
	require.Equal(t, baseline, traits["curiosity"])
}

func TestApplyDeltasDecayBelowBaselineDoesNotRise(t *testing.T) {
	traits := map[string]float64{"curiosity": 0.4}
	deltas := map[string]delta{"curiosity": {value: -0.1}}
	applyDeltas(traits, deltas)
	require.InDelta(t, 0.3, traits["curiosity"], 1e-9)
}

func TestApplyDeltasSkipsNoOpChange(t *testing.T) {
	traits := map[string]float64{"humor": 1.0}
	deltas := map[string]delta{"humor": {value: 0.1, trigger: true}}
	changes := applyDeltas(traits, deltas)
	require.Empty(t, changes)
}

func TestApplyDeltasReasonTags(t *testing.T) {
	traits := map[string]float64{"formality": 0.5}
	deltas := map[string]delta{"formality": {value: 0.06, explicit: true}}
	changes := applyDeltas(traits, deltas)
	require.Len(t, changes, 1)
	require.Equal(t, "explicit", changes[0].Reason)
}

func TestBehavioralInstructionsCoversAllCoreTraits(t *testing.T) {
	out := BehavioralInstructions(map[string]float64{
		"formality": 0.2, "verbosity": 0.9, "humor": 0.8, "curiosity": 0.9,
		"empathy": 0.1, "technical_depth": 0.8, "assertiveness": 0.9, "creativity": 0.9,
	})
	require.Contains(t, out, "YOUR BEHAVIORAL STYLE RIGHT NOW")
	require.Contains(t, out, "casually")
	require.Contains(t, out, "playful")
}

func TestBehavioralInstructionsDefaultsMissingTraitToBaseline(t *testing.T) {
	out := BehavioralInstructions(map[string]float64{})
	require.NotEmpty(t, out)
}
