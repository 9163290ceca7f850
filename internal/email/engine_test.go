package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nexira/internal/clock"
	"nexira/internal/store"
)

func TestClassifyEmailTypeMatchesSubjectKeywords(t *testing.T) {
	require.Equal(t, summaryEmailType, classifyEmailType("Nova's Daily Summary — 2026-07-30"))
	require.Equal(t, testEmailType, classifyEmailType("Nova test email"))
	require.Equal(t, generalEmailType, classifyEmailType("Quick note"))
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(nil, nil, clock.NewFake(time.Time{}), Config{Username: "bot@example.com"})
	require.Equal(t, "bot@example.com", s.cfg.From)
	require.Equal(t, "the AI", s.cfg.AIName)
	require.Equal(t, "the collaborator", s.cfg.UserName)
}

func TestNewPreservesExplicitConfig(t *testing.T) {
	s := New(nil, nil, clock.NewFake(time.Time{}), Config{
		Username: "bot@example.com",
		From:     "nova@example.com",
		AIName:   "Nova",
		UserName: "Alex",
	})
	require.Equal(t, "nova@example.com", s.cfg.From)
	require.Equal(t, "Nova", s.cfg.AIName)
	require.Equal(t, "Alex", s.cfg.UserName)
}

func TestRecipientFallsBackToUsername(t *testing.T) {
	s := New(nil, nil, clock.NewFake(time.Time{}), Config{Username: "bot@example.com"})
	require.Equal(t, "bot@example.com", s.recipient())

	s2 := New(nil, nil, clock.NewFake(time.Time{}), Config{Username: "bot@example.com", Recipient: "owner@example.com"})
	require.Equal(t, "owner@example.com", s2.recipient())
}

func TestPasswordPassesThroughWithoutBox(t *testing.T) {
	s := New(nil, nil, clock.NewFake(time.Time{}), Config{Password: "plaintext-secret"})
	require.Equal(t, "plaintext-secret", s.password())
}

func TestTopMessagesByImportanceOrdersDescendingAndCaps(t *testing.T) {
	msgs := []store.Message{
		{Role: "user", Content: "low", Importance: 0.1},
		{Role: "assistant", Content: "high", Importance: 0.9},
		{Role: "user", Content: "mid", Importance: 0.5},
	}
	top := topMessagesByImportance(msgs, 2)
	require.Len(t, top, 2)
	require.Contains(t, top[0], "high")
	require.Contains(t, top[1], "mid")
}

func TestTopMessagesByImportanceTruncatesLongContent(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	msgs := []store.Message{{Role: "user", Content: string(long), Importance: 1}}
	top := topMessagesByImportance(msgs, 1)
	require.Len(t, top, 1)
	require.Contains(t, top[0], "...")
	require.Less(t, len(top[0]), len(long))
}

func TestRenderPlainOmitsEmptySections(t *testing.T) {
	out := renderPlain(summaryData{Date: "2026-07-30", ConversationCount: 3})
	require.Contains(t, out, "2026-07-30")
	require.Contains(t, out, "Conversations today: 3")
	require.NotContains(t, out, "Highlights:")
}

func TestRenderPlainIncludesPopulatedSections(t *testing.T) {
	out := renderPlain(summaryData{
		Date:       "2026-07-30",
		Highlights: []string{"talked about goals"},
		Learnings:  []string{"topic: fact"},
	})
	require.Contains(t, out, "Highlights:")
	require.Contains(t, out, "talked about goals")
	require.Contains(t, out, "Top learnings:")
}

func TestRenderHTMLIncludesPopulatedSections(t *testing.T) {
	out := renderHTML(summaryData{Date: "2026-07-30", Goals: []string{"Learn about the user — 40%"}})
	require.Contains(t, out, "<h3>Active goals</h3>")
	require.Contains(t, out, "Learn about the user")
	require.NotContains(t, out, "<h3>Highlights</h3>")
}
