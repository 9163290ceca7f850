package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScoreConfidenceBaseline(t *testing.T) {
	c := scoreConfidence("hello", "a plain answer", false, false, nil)
	require.InDelta(t, 0.5, c, 1e-9)
}

func TestScoreConfidenceKnowledgeAndRecentContextBump(t *testing.T) {
	c := scoreConfidence("hello", "a plain answer", true, true, nil)
	require.InDelta(t, 0.8, c, 1e-9)
}

func TestScoreConfidenceHedgingPenalized(t *testing.T) {
	c := scoreConfidence("hello", "I'm not sure, but maybe", false, false, nil)
	require.InDelta(t, 0.3, c, 1e-9)
}

func TestScoreConfidenceHedgingAppliesOnce(t *testing.T) {
	c := scoreConfidence("hello", "maybe, perhaps, not sure, uncertain", false, false, nil)
	require.InDelta(t, 0.3, c, 1e-9)
}

func TestScoreConfidenceMistakeTopicPenalty(t *testing.T) {
	c := scoreConfidence("docker compose is broken", "here's how to fix it", false, false, []string{"docker networking"})
	require.InDelta(t, 0.2, c, 1e-9)
}

func TestScoreConfidenceMistakeTopicOnlyChecksFirstThreeWords(t *testing.T) {
	c := scoreConfidence("one two three docker", "answer", false, false, []string{"docker"})
	require.InDelta(t, 0.5, c, 1e-9)
}

func TestScoreConfidenceClampsToZero(t *testing.T) {
	c := scoreConfidence("docker issue", "maybe uncertain", false, false, []string{"docker"})
	require.GreaterOrEqual(t, c, 0.0)
}

func TestScoreConfidenceClampsToOne(t *testing.T) {
	c := scoreConfidence("hello", "a confident answer", true, true, nil)
	require.LessOrEqual(t, c, 1.0)
}

func TestScoreImportanceBaseline(t *testing.T) {
	i := scoreImportance("hello there", "hi", 0.1)
	require.InDelta(t, 0.5, i, 1e-9)
}

func TestScoreImportanceKeywordBump(t *testing.T) {
	i := scoreImportance("please remember this detail", "ok", 0.1)
	require.InDelta(t, 1.0, i, 1e-9)
}

func TestScoreImportanceEmotionalWeightBump(t *testing.T) {
	i := scoreImportance("hello there", "hi", 0.7)
	require.InDelta(t, 0.7, i, 1e-9)
}

func TestScoreImportanceLongMessageBump(t *testing.T) {
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	i := scoreImportance(string(long), "hi", 0.1)
	require.InDelta(t, 0.6, i, 1e-9)
}

func TestScoreImportanceChecksOnlyUserMessageLength(t *testing.T) {
	longAssistant := make([]byte, 300)
	for i := range longAssistant {
		longAssistant[i] = 'b'
	}
	i := scoreImportance("short", string(longAssistant), 0.1)
	require.InDelta(t, 0.5, i, 1e-9)
}

func TestScoreImportanceClampsToOne(t *testing.T) {
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	i := scoreImportance("remember this critical important thing, "+string(long), "ok", 0.9)
	require.Equal(t, 1.0, i)
}

func TestDetectNameRequestMatchesTriggerPhrase(t *testing.T) {
	require.True(t, detectNameRequest("Hey, what is your name?"))
	require.True(t, detectNameRequest("I think it's time to pick a name now"))
}

func TestDetectNameRequestIgnoresUnrelatedMessage(t *testing.T) {
	require.False(t, detectNameRequest("what's the weather like today"))
}

func TestMentionsChangeOrRename(t *testing.T) {
	require.True(t, mentionsChangeOrRename("I'd like you to change your approach"))
	require.True(t, mentionsChangeOrRename("can we rename this file"))
	require.False(t, mentionsChangeOrRename("what should we call you"))
}

func TestRelationshipStageTiers(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "new", relationshipStage(time.Time{}, now))
	require.Equal(t, "new", relationshipStage(now.Add(-6*24*time.Hour), now))
	require.Equal(t, "developing", relationshipStage(now.Add(-10*24*time.Hour), now))
	require.Equal(t, "established", relationshipStage(now.Add(-60*24*time.Hour), now))
	require.Equal(t, "deep", relationshipStage(now.Add(-200*24*time.Hour), now))
}

func TestTimeOfDayBuckets(t *testing.T) {
	require.Equal(t, "morning", timeOfDay(time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC)))
	require.Equal(t, "afternoon", timeOfDay(time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)))
	require.Equal(t, "evening", timeOfDay(time.Date(2026, 7, 30, 20, 0, 0, 0, time.UTC)))
}

func TestTraitLevelBuckets(t *testing.T) {
	require.Equal(t, "very low", traitLevel(0.1))
	require.Equal(t, "low", traitLevel(0.4))
	require.Equal(t, "moderate", traitLevel(0.6))
	require.Equal(t, "high", traitLevel(0.8))
	require.Equal(t, "very high", traitLevel(0.95))
}

func TestBuildTimeAwarenessZeroLastMessage(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "", buildTimeAwareness(time.Time{}, now, "Sam"))
}

func TestBuildTimeAwarenessJustNow(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "", buildTimeAwareness(now.Add(-2*time.Minute), now, "Sam"))
}

func TestBuildTimeAwarenessMinutesAgo(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	got := buildTimeAwareness(now.Add(-30*time.Minute), now, "Sam")
	require.Contains(t, got, "TIME SINCE LAST MESSAGE")
	require.Contains(t, got, "30 minutes ago")
}

func TestBuildTimeAwarenessHoursAgo(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	got := buildTimeAwareness(now.Add(-5*time.Hour), now, "Sam")
	require.Contains(t, got, "5 hours ago")
}

func TestBuildTimeAwarenessAboutADayAgo(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	got := buildTimeAwareness(now.Add(-30*time.Hour), now, "Sam")
	require.Contains(t, got, "About a day ago")
}

func TestBuildTimeAwarenessDaysAgo(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	got := buildTimeAwareness(now.Add(-72*time.Hour), now, "Sam")
	require.Contains(t, got, "3 days")
	require.Contains(t, got, "Sam")
}

func TestFormatPersonalityTraitsSortedWithLevels(t *testing.T) {
	traits := map[string]float64{"technical_depth": 0.8, "formality": 0.2}
	out := formatPersonalityTraits(traits)
	require.Contains(t, out, "Formality: 0.20 (very low)")
	require.Contains(t, out, "Technical Depth: 0.80 (high)")
	require.Less(t, indexOf(out, "Formality"), indexOf(out, "Technical Depth"))
}

func TestFormatCommunicationStyleBranches(t *testing.T) {
	casual := formatCommunicationStyle(map[string]float64{"formality": 0.1, "verbosity": 0.1, "technical_depth": 0.1})
	require.Contains(t, casual, "Casual and friendly tone")
	require.Contains(t, casual, "Brief and concise responses")
	require.Contains(t, casual, "Simple, accessible explanations")

	formal := formatCommunicationStyle(map[string]float64{"formality": 0.9, "verbosity": 0.9, "technical_depth": 0.9})
	require.Contains(t, formal, "Professional and polished tone")
	require.Contains(t, formal, "Detailed and thorough explanations")
	require.Contains(t, formal, "Technical and precise language")

	balanced := formatCommunicationStyle(map[string]float64{})
	require.Contains(t, balanced, "Balanced, adaptable tone")
	require.Contains(t, balanced, "Moderate detail level")
	require.Contains(t, balanced, "Balanced technical depth")
}

func TestUpdateEmotionalStatePositiveFeedback(t *testing.T) {
	s := defaultEmotionalState()
	updateEmotionalState(s, "thanks", "positive")
	require.InDelta(t, 0.65, s["satisfaction"], 1e-9)
	require.InDelta(t, 0.40, s["pride"], 1e-9)
}

func TestUpdateEmotionalStateNegativeFeedback(t *testing.T) {
	s := defaultEmotionalState()
	updateEmotionalState(s, "that's wrong", "negative")
	// bumps apply first, then the fixed 0.05 decay hits the same three emotions.
	require.InDelta(t, 0.15, s["frustration"], 1e-9)
	require.InDelta(t, 0.10, s["concern"], 1e-9)
}

func TestUpdateEmotionalStateQuestionBumpsCuriosity(t *testing.T) {
	s := defaultEmotionalState()
	updateEmotionalState(s, "why does this happen?", "")
	require.InDelta(t, 0.6, s["curiosity"], 1e-9)
}

func TestUpdateEmotionalStateDecaysNegativeEmotions(t *testing.T) {
	s := defaultEmotionalState()
	s["frustration"] = 0.5
	s["embarrassment"] = 0.02
	s["concern"] = 0.5
	updateEmotionalState(s, "ok", "")
	require.InDelta(t, 0.45, s["frustration"], 1e-9)
	require.InDelta(t, 0.0, s["embarrassment"], 1e-9)
	require.InDelta(t, 0.45, s["concern"], 1e-9)
}

func TestAverageEmotionalStateEmpty(t *testing.T) {
	require.Equal(t, 0.0, averageEmotionalState(EmotionalState{}))
}

func TestAverageEmotionalStateComputesMean(t *testing.T) {
	s := EmotionalState{"a": 0.2, "b": 0.4}
	require.InDelta(t, 0.3, averageEmotionalState(s), 1e-9)
}

func TestFormatEmotionalStateFallbackWhenCalm(t *testing.T) {
	s := EmotionalState{"curiosity": 0.1, "concern": 0.0}
	require.Equal(t, "- Calm and balanced", formatEmotionalState(s))
}

func TestFormatEmotionalStateListsActiveEmotions(t *testing.T) {
	s := EmotionalState{"curiosity": 0.5, "pride": 0.3}
	out := formatEmotionalState(s)
	require.Contains(t, out, "Curiosity: 0.50")
	require.NotContains(t, out, "Pride")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
