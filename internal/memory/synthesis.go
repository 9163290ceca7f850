package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"nexira/internal/llm"
	"nexira/internal/store"
)

// weekBounds returns the Monday 00:00 start and following Monday 00:00 end
// for the ISO week containing t, in UTC.
func weekBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// MaybeRunWeeklySynthesis runs the at-most-once-per-ISO-week aggregation
// described in spec.md §4.5. It is idempotent: if a WeeklySynthesis row
// already exists for the current week it returns immediately, and
// InsertWeeklySynthesis's ON CONFLICT DO NOTHING is the backstop against a
// race between the check and the insert.
func (e *Engine) MaybeRunWeeklySynthesis(ctx context.Context) {
	weekStart, weekEnd := weekBounds(time.Now())

	exists, err := e.store.WeeklySynthesisExists(ctx, weekStart)
	if err != nil {
		log.Error().Err(err).Msg("memory: weekly synthesis exists check")
		return
	}
	if exists {
		return
	}

	episodes, err := e.store.UncommittedEpisodesSince(ctx, weekStart.AddDate(0, 0, -7))
	if err != nil {
		log.Error().Err(err).Msg("memory: uncommitted episodes")
		return
	}
	if len(episodes) == 0 {
		return
	}

	confirmed, tentative := topicFrequency(episodes, e.cfg.MinConfirmations)

	synthesis, corrections, err := e.generateSynthesis(ctx, episodes, confirmed)
	if err != nil {
		log.Error().Err(err).Msg("memory: generate weekly synthesis")
		return
	}

	var confirmedTopics []string
	for t := range confirmed {
		confirmedTopics = append(confirmedTopics, t)
	}
	var tentativeTopics []string
	for t := range tentative {
		tentativeTopics = append(tentativeTopics, t)
	}

	added, err := e.commitKnowledge(ctx, episodes, confirmed, weekStart)
	if err != nil {
		log.Error().Err(err).Msg("memory: commit knowledge")
	}

	if _, err := e.store.InsertWeeklySynthesis(ctx, store.WeeklySynthesis{
		WeekStart:           weekStart,
		WeekEnd:             weekEnd,
		Synthesis:           synthesis,
		ConfirmedTopics:     confirmedTopics,
		TentativeTopics:     tentativeTopics,
		Corrections:         corrections,
		KnowledgeItemsAdded: added,
	}); err != nil {
		log.Error().Err(err).Msg("memory: insert weekly synthesis")
		return
	}

	ids := make([]int64, len(episodes))
	for i, ep := range episodes {
		ids[i] = ep.ID
	}
	if err := e.store.CommitAndArchiveEpisodes(ctx, ids); err != nil {
		log.Error().Err(err).Msg("memory: commit and archive episodes")
	}
}

// topicFrequency counts how many distinct episodes mention each topic and
// splits the set into confirmed (>= minConfirm) and tentative (< minConfirm).
func topicFrequency(episodes []store.EpisodeSummary, minConfirm int) (confirmed, tentative map[string]int) {
	counts := make(map[string]int)
	for _, ep := range episodes {
		seen := make(map[string]bool)
		for _, t := range ep.Topics {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			counts[t]++
		}
	}
	confirmed = make(map[string]int)
	tentative = make(map[string]int)
	for t, c := range counts {
		if c >= minConfirm {
			confirmed[t] = c
		} else {
			tentative[t] = c
		}
	}
	return confirmed, tentative
}

// generateSynthesis issues the first of the weekly synthesis's two LLM
// calls: a 5-8 sentence synthesis plus a trailing CORRECTIONS line.
func (e *Engine) generateSynthesis(ctx context.Context, episodes []store.EpisodeSummary, confirmed map[string]int) (string, string, error) {
	var b strings.Builder
	for _, ep := range episodes {
		fmt.Fprintf(&b, "- %s\n", ep.Summary)
	}

	var topicList []string
	for t := range confirmed {
		topicList = append(topicList, t)
	}

	prompt := fmt.Sprintf(
		"Here are this week's conversation episode summaries:\n%s\n"+
			"MOST DISCUSSED TOPICS: %s\n\n"+
			"Write a 5-8 sentence synthesis of the week. Then on its own line, output "+
			"\"CORRECTIONS:\" followed by anything the user corrected or clarified this week, "+
			"or \"none\" if nothing stands out.",
		b.String(), strings.Join(topicList, ", "),
	)

	resp, err := e.gate.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return "", "", fmt.Errorf("weekly synthesis chat: %w", err)
	}

	synthesis, corrections := splitCorrections(resp.Content)
	return synthesis, corrections, nil
}

func splitCorrections(reply string) (string, string) {
	lines := strings.Split(strings.TrimSpace(reply), "\n")
	var body []string
	corrections := ""
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if upper := strings.ToUpper(trimmed); strings.HasPrefix(upper, "CORRECTIONS:") {
			corrections = strings.TrimSpace(trimmed[len("CORRECTIONS:"):])
			continue
		}
		if trimmed != "" {
			body = append(body, trimmed)
		}
	}
	return strings.Join(body, " "), corrections
}

// commitKnowledge runs the weekly synthesis's second LLM call — extracting
// KnowledgeFacts from episodes whose topics intersect the confirmed set —
// and UPSERTs each extracted fact.
func (e *Engine) commitKnowledge(ctx context.Context, episodes []store.EpisodeSummary, confirmed map[string]int, weekStart time.Time) (int, error) {
	if len(confirmed) == 0 {
		return 0, nil
	}

	var relevant []store.EpisodeSummary
	for _, ep := range episodes {
		for _, t := range ep.Topics {
			if _, ok := confirmed[strings.ToLower(strings.TrimSpace(t))]; ok {
				relevant = append(relevant, ep)
				break
			}
		}
	}
	if len(relevant) == 0 {
		return 0, nil
	}

	var b strings.Builder
	for _, ep := range relevant {
		fmt.Fprintf(&b, "- %s\n", ep.Summary)
	}
	var topicList []string
	for t := range confirmed {
		topicList = append(topicList, t)
	}

	prompt := fmt.Sprintf(
		"CONFIRMED TOPICS (seen multiple times this week): %s\n\n"+
			"Episodes:\n%s\n"+
			"Extract 4-10 specific facts worth storing permanently, focused on the confirmed topics. "+
			"Output one fact per line as \"TOPIC: fact text\".",
		strings.Join(topicList, ", "), b.String(),
	)

	resp, err := e.gate.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return 0, fmt.Errorf("knowledge extraction chat: %w", err)
	}

	_, isoWeek := weekStart.ISOWeek()
	added := 0
	for _, line := range strings.Split(resp.Content, "\n") {
		topic, fact, ok := splitFactLine(line)
		if !ok {
			continue
		}
		if err := e.store.UpsertKnowledgeFact(ctx, store.KnowledgeFact{
			Topic:       topic,
			Content:     fact,
			Source:      "weekly_synthesis",
			Confidence:  0.6,
			SourceWeeks: []int{isoWeek},
		}); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("memory: upsert knowledge fact")
			continue
		}
		added++
	}
	return added, nil
}

func splitFactLine(line string) (topic, fact string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", "", false
	}
	idx := strings.Index(trimmed, ":")
	if idx < 0 {
		return "", "", false
	}
	topic = strings.ToLower(strings.TrimSpace(trimmed[:idx]))
	fact = strings.TrimSpace(trimmed[idx+1:])
	if topic == "" || fact == "" {
		return "", "", false
	}
	return topic, fact, true
}
