package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nexira/internal/store"
)

func TestParseSummaryAndTopicsSplitsTrailingLine(t *testing.T) {
	reply := "We discussed the new deployment pipeline and agreed to use canary releases.\nTOPICS: deployment, canary releases, pipelines"
	summary, topics, err := parseSummaryAndTopics(reply)
	require.NoError(t, err)
	require.Contains(t, summary, "canary releases")
	require.Equal(t, []string{"deployment", "canary releases", "pipelines"}, topics)
}

func TestParseSummaryAndTopicsIsCaseInsensitive(t *testing.T) {
	reply := "Short chat about lunch.\ntopics: food"
	summary, topics, err := parseSummaryAndTopics(reply)
	require.NoError(t, err)
	require.Equal(t, "Short chat about lunch.", summary)
	require.Equal(t, []string{"food"}, topics)
}

func TestParseSummaryAndTopicsRejectsEmptySummary(t *testing.T) {
	_, _, err := parseSummaryAndTopics("TOPICS: a, b")
	require.Error(t, err)
}

func TestSplitCorrectionsExtractsTrailingLine(t *testing.T) {
	reply := "This week covered several topics in depth.\nCORRECTIONS: user clarified their job title is engineer, not manager."
	body, corrections := splitCorrections(reply)
	require.Equal(t, "This week covered several topics in depth.", body)
	require.Contains(t, corrections, "engineer")
}

func TestSplitFactLineParsesTopicAndFact(t *testing.T) {
	topic, fact, ok := splitFactLine("Programming: user prefers Go over Python for backend work")
	require.True(t, ok)
	require.Equal(t, "programming", topic)
	require.Equal(t, "user prefers Go over Python for backend work", fact)
}

func TestSplitFactLineRejectsLineWithoutColon(t *testing.T) {
	_, _, ok := splitFactLine("just a sentence with no structure")
	require.False(t, ok)
}

func TestTopicFrequencyConfirmedVsTentative(t *testing.T) {
	episodes := []store.EpisodeSummary{
		{ID: 1, Topics: []string{"golang", "testing"}},
		{ID: 2, Topics: []string{"golang", "databases"}},
		{ID: 3, Topics: []string{"golang"}},
	}
	confirmed, tentative := topicFrequency(episodes, 2)
	require.Equal(t, 3, confirmed["golang"])
	require.Equal(t, 1, tentative["testing"])
	require.Equal(t, 1, tentative["databases"])
}

func TestTopicFrequencyCountsTopicOncePerEpisode(t *testing.T) {
	episodes := []store.EpisodeSummary{
		{ID: 1, Topics: []string{"golang", "golang"}},
	}
	confirmed, tentative := topicFrequency(episodes, 2)
	require.Empty(t, confirmed)
	require.Equal(t, 1, tentative["golang"])
}

func TestWeekBoundsReturnsMondayToMonday(t *testing.T) {
	wed := time.Date(2026, 7, 29, 15, 0, 0, 0, time.UTC)
	start, end := weekBounds(wed)
	require.Equal(t, time.Monday, start.Weekday())
	require.Equal(t, time.Monday, end.Weekday())
	require.Equal(t, 7*24*time.Hour, end.Sub(start))
	require.True(t, start.Before(wed) && wed.Before(end))
}

func TestExtractQueryTopicsDropsShortWords(t *testing.T) {
	topics := extractQueryTopics("how do I use the new deployment pipeline?")
	require.Contains(t, topics, "deployment")
	require.Contains(t, topics, "pipeline")
	require.NotContains(t, topics, "how")
	require.NotContains(t, topics, "the")
}

func TestFormatEpisodesForPromptTruncatesAtBudget(t *testing.T) {
	episodes := []store.EpisodeSummary{
		{ID: 1, Summary: "first episode summary text"},
		{ID: 2, Summary: "second episode summary text"},
	}
	out := formatEpisodesForPrompt(episodes, nil, 30)
	require.Contains(t, out, "second episode summary text")
	require.NotContains(t, out, "first episode summary text")
}

func TestFormatEpisodesForPromptOrdersNewestFirst(t *testing.T) {
	episodes := []store.EpisodeSummary{
		{ID: 1, Summary: "older"},
		{ID: 2, Summary: "newer"},
	}
	out := formatEpisodesForPrompt(episodes, nil, 1000)
	require.True(t, indexOf(out, "newer") < indexOf(out, "older"))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
