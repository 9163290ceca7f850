package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"nexira/internal/store"
)

const (
	recentMessageWindow  = 20
	historyWindow        = 15
	recentActivityCount  = 8
	recentJournalCount   = 2
	journalExcerptChars  = 300
	activityDetailChars  = 100
	moltbookContentChars = 200
)

// CollaboratorContext carries optional per-exchange context a transport
// layer may have already gathered (spec.md §4.10 step 2's "any
// collaborator-provided context").
type CollaboratorContext struct {
	WebSearch          string
	UploadedDocument   string
	AutonomousResearch string
	Feedback           string // "positive" | "negative" | ""
}

// buildContext gathers everything composeSystemPrompt needs and everything
// scoreConfidence needs, in one pass over the Store and the read-side
// engines (spec.md §4.10 step 2).
func (e *Engine) buildContext(ctx context.Context, message string, id Identity, collab CollaboratorContext) (promptInputs, []store.KnowledgeFact, []store.Mistake, error) {
	now := e.clock.Now()

	recent, err := e.store.RecentMessages(ctx, recentMessageWindow)
	if err != nil {
		return promptInputs{}, nil, nil, fmt.Errorf("recent messages: %w", err)
	}

	var lastUser store.Message
	convCount := 0
	for _, m := range recent {
		if m.Role == "user" {
			convCount++
			if m.Timestamp.After(lastUser.Timestamp) {
				lastUser = m
			}
		}
	}

	knowledge, err := e.store.SearchKnowledgeFacts(ctx, message, relevantKnowledgeLimit)
	if err != nil {
		return promptInputs{}, nil, nil, fmt.Errorf("search knowledge: %w", err)
	}

	words := strings.Fields(strings.ToLower(message))
	var mistakeWord string
	if len(words) > 0 {
		mistakeWord = words[0]
	}
	var mistakes []store.Mistake
	if mistakeWord != "" {
		mistakes, err = e.store.MistakesForTopic(ctx, mistakeWord)
		if err != nil {
			return promptInputs{}, nil, nil, fmt.Errorf("mistakes for topic: %w", err)
		}
	}

	caps, err := e.store.CapabilitiesSnapshot(ctx)
	if err != nil {
		return promptInputs{}, nil, nil, fmt.Errorf("capabilities snapshot: %w", err)
	}

	activityEvents, err := e.store.RecentActivityEvents(ctx, recentActivityCount)
	if err != nil {
		return promptInputs{}, nil, nil, fmt.Errorf("recent activity: %w", err)
	}
	journalEntries, err := e.store.RecentJournalEntries(ctx, recentJournalCount)
	if err != nil {
		return promptInputs{}, nil, nil, fmt.Errorf("recent journal: %w", err)
	}

	episodes, err := e.memory.EpisodesForPrompt(ctx, message, e.episodeBudgetTokens)
	if err != nil {
		return promptInputs{}, nil, nil, fmt.Errorf("episodes for prompt: %w", err)
	}

	notes, err := e.store.OperatingNotes(ctx)
	if err != nil {
		return promptInputs{}, nil, nil, fmt.Errorf("operating notes: %w", err)
	}
	userModelAttrs, err := e.store.UserModel(ctx)
	if err != nil {
		return promptInputs{}, nil, nil, fmt.Errorf("user model: %w", err)
	}
	skills, err := e.store.SkillLevels(ctx)
	if err != nil {
		return promptInputs{}, nil, nil, fmt.Errorf("skill levels: %w", err)
	}

	in := promptInputs{
		identity:          id,
		userName:          e.userName,
		conversationCount: convCount,
		now:               now,
		lastUserMessage:   lastUser.Timestamp,

		recentMessages: messageViews(recent, historyWindow),
		capabilities: capabilitiesView{
			AgeDays:           ageDays(parseTimeOrZero(id.CreatedAt), now),
			Conversations:     caps.Conversations,
			KnowledgeEntries:  caps.KnowledgeEntries,
			JournalEntries:    caps.JournalEntries,
			LastJournal:       shortDate(caps.LastJournal),
			ActiveGoals:       caps.ActiveGoals,
			CuriosityPending:  caps.CuriosityPending,
			LastConsolidation: shortDate(caps.LastConsolidation),
		},
		activity:     buildActivityView(activityEvents, journalEntries, e.journal),
		episodeBlock: episodes.Formatted,
		behavioral:   e.personalityPrompt(),

		webSearch:          collab.WebSearch,
		uploadedDocument:   collab.UploadedDocument,
		autonomousResearch: collab.AutonomousResearch,
	}

	in.operatingNotes = operatingNoteLines(notes)
	in.values = valuesFromNotes(notes)
	in.userModel = userModelLines(userModelAttrs)
	in.competencyMap = competencyLines(skills)
	for _, m := range mistakes {
		in.mistakeRules = append(in.mistakeRules, m.BehavioralRule)
	}

	return in, knowledge, mistakes, nil
}

func messageViews(msgs []store.Message, limit int) []messageView {
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageView{Role: m.Role, Content: m.Content})
	}
	return out
}

// buildActivityView merges audit events and decrypted journal excerpts into
// the activity section, mirroring ai_engine.py's get_recent_activity.
func buildActivityView(events []store.ActivityEvent, journal []store.JournalEntry, box journalDecryptor) activityView {
	var av activityView

	seen := map[string]bool{}
	for i, e := range events {
		if !seen[e.Type] {
			seen[e.Type] = true
			av.RecentTypes = append(av.RecentTypes, e.Type)
		}
		if i >= 4 {
			continue
		}
		detail := e.Detail
		if len(detail) > activityDetailChars {
			detail = detail[:activityDetailChars]
		}
		av.Entries = append(av.Entries, activityEntryView{
			When:   e.Timestamp.Format("2006-01-02 15:04"),
			Label:  e.Label,
			Detail: detail,
		})
	}
	sort.Strings(av.RecentTypes)

	for _, j := range journal {
		content := j.Content
		if box != nil {
			content = box.Decrypt(content)
		}
		if len(content) > journalExcerptChars {
			content = content[:journalExcerptChars]
		}
		av.Journal = append(av.Journal, journalExcerptView{
			Date:    j.Timestamp.Format("2006-01-02"),
			Type:    j.Type,
			Excerpt: content,
		})
	}
	return av
}

// journalDecryptor is the subset of secretbox.Box the Conversation Core
// needs; kept as an interface so tests can supply a no-op.
type journalDecryptor interface {
	Decrypt(string) string
}

func ageDays(createdAt, now time.Time) int {
	if createdAt.IsZero() {
		return 0
	}
	return int(now.Sub(createdAt).Hours() / 24)
}

func operatingNoteLines(notes []store.OperatingNote) []string {
	var out []string
	for _, n := range notes {
		if strings.HasPrefix(n.Key, "value:") {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", n.Key, n.Value))
	}
	return out
}

// valuesFromNotes extracts self-authored value statements, keyed by a
// "value:" prefix convention on the generic operating-notes table (no
// dedicated values table exists in the schema).
func valuesFromNotes(notes []store.OperatingNote) []string {
	var out []string
	for _, n := range notes {
		if strings.HasPrefix(n.Key, "value:") {
			out = append(out, n.Value)
		}
	}
	return out
}

func userModelLines(attrs []store.UserModelAttr) []string {
	var out []string
	for _, a := range attrs {
		out = append(out, fmt.Sprintf("%s: %s", a.Attribute, a.Value))
	}
	return out
}

func competencyLines(levels []store.SkillLevel) []string {
	var out []string
	for _, l := range levels {
		out = append(out, fmt.Sprintf("%s: %s (%.2f over %d observations)", l.Domain, l.Classification, l.RollingMean, l.ObservationCt))
	}
	return out
}

func shortDate(t time.Time) string {
	if t.IsZero() || t.Year() <= 1970 {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
