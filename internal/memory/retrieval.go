package memory

import (
	"context"
	"fmt"
	"strings"

	"nexira/internal/store"
)

const defaultRecentEpisodes = 5

// Retrieval is the request-path contract returned by EpisodesForPrompt:
// up to N recent non-archived episodes plus keyword-matched older ones,
// concatenated and truncated to fit a character budget (spec.md §4.5).
type Retrieval struct {
	Recent    []store.EpisodeSummary
	Relevant  []store.EpisodeSummary
	Formatted string
}

// EpisodesForPrompt implements episodes_for_prompt(query, budget_chars) →
// (recent, relevant, formatted_block). budgetTokens is converted to a
// character budget at charsPerToken (4) per spec.md's approximation.
func (e *Engine) EpisodesForPrompt(ctx context.Context, query string, budgetTokens int) (Retrieval, error) {
	budgetChars := budgetTokens * charsPerToken

	recent, err := e.store.RecentEpisodes(ctx, defaultRecentEpisodes)
	if err != nil {
		return Retrieval{}, fmt.Errorf("recent episodes: %w", err)
	}

	var relevant []store.EpisodeSummary
	if topics := extractQueryTopics(query); len(topics) > 0 {
		matched, err := e.store.EpisodesMatchingTopics(ctx, topics)
		if err != nil {
			return Retrieval{}, fmt.Errorf("episodes matching topics: %w", err)
		}
		recentIDs := make(map[int64]bool, len(recent))
		for _, ep := range recent {
			recentIDs[ep.ID] = true
		}
		for _, ep := range matched {
			if !recentIDs[ep.ID] {
				relevant = append(relevant, ep)
			}
		}
	}

	formatted := formatEpisodesForPrompt(recent, relevant, budgetChars)
	return Retrieval{Recent: recent, Relevant: relevant, Formatted: formatted}, nil
}

// extractQueryTopics lowercases and tokenizes query into words usable
// against the episode_summaries.topics array-overlap search; very short
// tokens are dropped since they rarely carry topical meaning.
func extractQueryTopics(query string) []string {
	var out []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, ".,!?;:'\"()")
		if len(f) > 3 {
			out = append(out, f)
		}
	}
	return out
}

// formatEpisodesForPrompt concatenates recent episodes, newest first, then
// relevant episodes in the order given (oldest first, as
// EpisodesMatchingTopics returns them), truncating once the char budget is hit.
func formatEpisodesForPrompt(recent, relevant []store.EpisodeSummary, budgetChars int) string {
	var b strings.Builder
	used := 0
	write := func(prefix string, ep store.EpisodeSummary) bool {
		line := fmt.Sprintf("%s%s\n", prefix, ep.Summary)
		if used+len(line) > budgetChars {
			return false
		}
		b.WriteString(line)
		used += len(line)
		return true
	}
	for i := len(recent) - 1; i >= 0; i-- {
		if !write("", recent[i]) {
			return b.String()
		}
	}
	for _, ep := range relevant {
		if !write("", ep) {
			return b.String()
		}
	}
	return b.String()
}
