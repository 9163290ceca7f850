// Package memory implements the Memory Engine (spec.md §4.5): three tiers —
// raw Message rows, periodic Episode summaries, and at-most-weekly
// syntheses that commit confirmed knowledge into the Store's KnowledgeFact
// table. Grounded on internal/agent/memory/evolving.go's phase model
// (search → synthesis → evolve) and manager.go's token-budget idiom,
// repurposed here for episode/weekly-synthesis budgeting instead of
// chat-context compaction.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"nexira/internal/llm"
	"nexira/internal/llmgate"
	"nexira/internal/store"
)

const (
	// defaultEpisodeEvery is N in spec.md §4.5: a new episode is summarized
	// after every this-many new raw messages.
	defaultEpisodeEvery = 20

	// perMessageTruncate caps how much of a single message's content feeds
	// the summarization prompt.
	perMessageTruncate = 300

	// defaultMinConfirmations is the weekly topic-frequency confirmation
	// threshold.
	defaultMinConfirmations = 2

	// charsPerToken approximates the request-path budget (spec.md §4.5).
	charsPerToken = 4
)

// importanceKeywords raise a fresh episode's importance from 0.5 to 0.8.
var importanceKeywords = []string{
	"important", "decided", "remember", "agreed", "critical", "milestone", "named", "chose",
}

// Config tunes the Engine's thresholds; zero values fall back to spec
// defaults.
type Config struct {
	EpisodeEvery     int
	MinConfirmations int
}

// Engine drives episode summarization and weekly synthesis on top of the
// Store's message/episode/knowledge-fact tables.
type Engine struct {
	store *store.Store
	gate  *llmgate.Gate
	cfg   Config
	sf    singleflight.Group
}

// New constructs an Engine with spec defaults applied for any zero Config
// field.
func New(s *store.Store, gate *llmgate.Gate, cfg Config) *Engine {
	if cfg.EpisodeEvery <= 0 {
		cfg.EpisodeEvery = defaultEpisodeEvery
	}
	if cfg.MinConfirmations <= 0 {
		cfg.MinConfirmations = defaultMinConfirmations
	}
	return &Engine{store: s, gate: gate, cfg: cfg}
}

// MaybeSummarizeEpisode checks whether EpisodeEvery new raw messages have
// accumulated since the last episode's end and, if so, summarizes them.
// Failures are logged and dropped per spec.md §4.5's failure semantics: the
// next threshold crossing naturally re-covers the same range, since range
// selection is derived from MaxCommittedEpisodeEnd rather than attempt
// history.
// MaybeSummarizeEpisode's body runs behind a singleflight guard keyed on a
// constant key: concurrent exchanges can cross the EpisodeEvery threshold at
// nearly the same moment, and without collapsing them each would select the
// identical message range before either commits, producing duplicate
// episodes.
func (e *Engine) MaybeSummarizeEpisode(ctx context.Context) {
	_, _, _ = e.sf.Do("episode", func() (interface{}, error) {
		e.maybeSummarizeEpisode(ctx)
		return nil, nil
	})
}

func (e *Engine) maybeSummarizeEpisode(ctx context.Context) {
	lastEnd, err := e.store.MaxCommittedEpisodeEnd(ctx)
	if err != nil {
		log.Error().Err(err).Msg("memory: max committed episode end")
		return
	}
	maxID, err := e.store.MaxMessageID(ctx)
	if err != nil {
		log.Error().Err(err).Msg("memory: max message id")
		return
	}
	if maxID-lastEnd < int64(e.cfg.EpisodeEvery) {
		return
	}

	rangeEnd := lastEnd + int64(e.cfg.EpisodeEvery)
	msgs, err := e.store.MessagesInRange(ctx, lastEnd+1, rangeEnd)
	if err != nil {
		log.Error().Err(err).Msg("memory: messages in range")
		return
	}
	if len(msgs) == 0 {
		return
	}

	summary, topics, err := e.summarizeSegment(ctx, msgs)
	if err != nil {
		log.Error().Err(err).Msg("memory: summarize segment")
		return
	}

	importance := 0.5
	lower := strings.ToLower(summary)
	for _, kw := range importanceKeywords {
		if strings.Contains(lower, kw) {
			importance = 0.8
			break
		}
	}

	_, week := time.Now().ISOWeek()
	if _, err := e.store.InsertEpisodeSummary(ctx, store.EpisodeSummary{
		WeekNumber:        week,
		MessageRangeStart: msgs[0].ID,
		MessageRangeEnd:   msgs[len(msgs)-1].ID,
		Summary:           summary,
		Topics:            topics,
		Importance:        importance,
	}); err != nil {
		log.Error().Err(err).Msg("memory: insert episode summary")
	}
}

// summarizeSegment builds the prompt described in spec.md §4.5 (up to
// perMessageTruncate chars/message, chronological order) and parses a
// trailing "TOPICS: a, b, c" line out of the model's reply.
func (e *Engine) summarizeSegment(ctx context.Context, msgs []store.Message) (string, []string, error) {
	var b strings.Builder
	for _, m := range msgs {
		content := m.Content
		if len(content) > perMessageTruncate {
			content = content[:perMessageTruncate]
		}
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, content)
	}

	prompt := "Summarize this conversation segment in 3-5 sentences, capturing what was discussed " +
		"and any decisions made. Then output a line starting with \"TOPICS:\" followed by a comma-separated " +
		"list of 3-8 key topics.\n\n" + b.String()

	resp, err := e.gate.Chat(ctx, []llm.Message{
		{Role: "user", Content: prompt},
	}, nil)
	if err != nil {
		return "", nil, fmt.Errorf("episode summary chat: %w", err)
	}

	return parseSummaryAndTopics(resp.Content)
}

// parseSummaryAndTopics splits a model reply into its prose summary and its
// trailing TOPICS line, case-insensitively, tolerating a blank line between
// them.
func parseSummaryAndTopics(reply string) (string, []string, error) {
	lines := strings.Split(strings.TrimSpace(reply), "\n")
	var summaryLines []string
	var topics []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if upper := strings.ToUpper(trimmed); strings.HasPrefix(upper, "TOPICS:") {
			rest := trimmed[len("TOPICS:"):]
			for _, t := range strings.Split(rest, ",") {
				t = strings.ToLower(strings.TrimSpace(t))
				if t != "" {
					topics = append(topics, t)
				}
			}
			continue
		}
		if trimmed != "" {
			summaryLines = append(summaryLines, trimmed)
		}
	}
	summary := strings.Join(summaryLines, " ")
	if summary == "" {
		return "", nil, fmt.Errorf("empty summary in model reply")
	}
	return summary, topics, nil
}
