// Package consolidation implements the Consolidation Job (spec.md §4.12): a
// composite nightly pipeline, idempotent per calendar day via a
// ConsolidationRun guard row, that extracts knowledge from the day's
// messages, works down the curiosity queue, writes journal entries, snapshots
// personality, and ticks knowledge goals. Grounded step-for-step on
// original_source/src/core/night_consolidation.py's NightConsolidation.run.
package consolidation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"nexira/internal/clock"
	"nexira/internal/curiosity"
	"nexira/internal/goals"
	"nexira/internal/llm"
	"nexira/internal/llmgate"
	"nexira/internal/personality"
	"nexira/internal/secretbox"
	"nexira/internal/store"
)

const (
	// curiosityBudget is the number of pending topics processed per run
	// (night_consolidation.py's process_curiosity_queue(limit=3)).
	curiosityBudget = 3

	// messagesPerExchangeLine truncates each message fed into the
	// knowledge-extraction prompt.
	messagesPerExchangeLine = 200

	// maxExtractionMessages caps how many of today's messages feed the
	// knowledge-extraction prompt.
	maxExtractionMessages = 40
)

// Config tunes the nightly pipeline; zero values fall back to spec
// defaults.
type Config struct {
	CreativeJournalingEnabled      bool
	PhilosophicalJournalingEnabled bool
	PhilosophicalEveryRuns         int
	UserName                       string
	AIName                         string
}

// Engine drives one nightly consolidation run on top of the Store and the
// other engines it orchestrates.
type Engine struct {
	store       *store.Store
	gate        *llmgate.Gate
	clock       clock.Clock
	journal     *secretbox.Box
	curiosityEn *curiosity.Engine
	goalsEn     *goals.Engine
	personality *personality.Engine
	cfg         Config
}

// New constructs an Engine with spec defaults applied for any zero Config
// field.
func New(
	s *store.Store,
	gate *llmgate.Gate,
	clk clock.Clock,
	journal *secretbox.Box,
	curiosityEn *curiosity.Engine,
	goalsEn *goals.Engine,
	personalityEn *personality.Engine,
	cfg Config,
) *Engine {
	if cfg.PhilosophicalEveryRuns <= 0 {
		cfg.PhilosophicalEveryRuns = 3
	}
	if cfg.AIName == "" {
		cfg.AIName = "the AI"
	}
	return &Engine{
		store:       s,
		gate:        gate,
		clock:       clk,
		journal:     journal,
		curiosityEn: curiosityEn,
		goalsEn:     goalsEn,
		personality: personalityEn,
		cfg:         cfg,
	}
}

// Run executes the nightly pipeline if one hasn't already run for today,
// guarded by a unique ConsolidationRun.RunDate row. Returns the per-step
// counters it recorded.
func (e *Engine) Run(ctx context.Context) (store.ConsolidationRun, error) {
	now := e.clock.Now()
	runDate := now.Format("2006-01-02")

	exists, err := e.store.ConsolidationRunExists(ctx, runDate)
	if err != nil {
		return store.ConsolidationRun{}, fmt.Errorf("check consolidation run exists: %w", err)
	}
	if exists {
		return store.ConsolidationRun{}, nil
	}

	start := now
	counters := map[string]int{
		"knowledge_items_added":       0,
		"journal_entries_written":     0,
		"curiosity_topics_processed":  0,
	}

	// 1. Extract 3-7 KnowledgeFacts from today's messages.
	counters["knowledge_items_added"] = e.extractKnowledge(ctx, runDate)

	// 2. Process top-3 CuriosityItems.
	if e.curiosityEn != nil {
		counters["curiosity_topics_processed"] = e.curiosityEn.ProcessQueue(ctx, curiosityBudget)
	}

	// 3. Daily reflection journal entry.
	if e.cfg.CreativeJournalingEnabled {
		if e.writeJournalEntry(ctx, "daily_reflection", e.dailyReflectionPrompt()) {
			counters["journal_entries_written"]++
		}
	}

	// 4. Philosophical journal entry every Nth run.
	runCount, err := e.store.ConsolidationRunCount(ctx)
	if err != nil {
		log.Error().Err(err).Msg("consolidation: run count")
	}
	if e.cfg.PhilosophicalJournalingEnabled && runCount%e.cfg.PhilosophicalEveryRuns == 0 {
		if e.writeJournalEntry(ctx, "philosophical", e.philosophicalPrompt()) {
			counters["journal_entries_written"]++
		}
	}

	// 5. Nightly personality snapshot.
	e.takeSnapshot(ctx, now)

	// 6. Tick knowledge goals.
	if e.goalsEn != nil {
		caps, err := e.store.CapabilitiesSnapshot(ctx)
		if err != nil {
			log.Error().Err(err).Msg("consolidation: capabilities snapshot for knowledge tick")
		} else {
			e.goalsEn.TickKnowledge(ctx, caps.KnowledgeEntries)
		}
	}

	duration := e.clock.Now().Sub(start).Seconds()
	summary := fmt.Sprintf("Consolidated %d knowledge item(s), wrote %d journal entr(y/ies), researched %d curiosity topic(s).",
		counters["knowledge_items_added"], counters["journal_entries_written"], counters["curiosity_topics_processed"])

	run := store.ConsolidationRun{
		RunDate:         start,
		Counters:        counters,
		DurationSeconds: duration,
		Summary:         summary,
	}
	id, err := e.store.InsertConsolidationRun(ctx, run)
	if err != nil {
		return run, fmt.Errorf("insert consolidation run: %w", err)
	}
	run.ID = id
	return run, nil
}

// extractKnowledge asks the LLM Gate to pull 3-7 facts out of today's
// messages and upserts each as a KnowledgeFact, mirroring
// extract_knowledge_from_conversations.
func (e *Engine) extractKnowledge(ctx context.Context, runDate string) int {
	if e.gate == nil {
		return 0
	}
	msgs, err := e.store.MessagesSince(ctx, runDate)
	if err != nil {
		log.Error().Err(err).Msg("consolidation: messages since")
		return 0
	}
	if len(msgs) == 0 {
		return 0
	}
	if len(msgs) > maxExtractionMessages {
		msgs = msgs[:maxExtractionMessages]
	}

	var convo strings.Builder
	for _, m := range msgs {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		speaker := e.cfg.AIName
		if m.Role == "user" {
			speaker = e.cfg.UserName
		}
		content := m.Content
		if len(content) > messagesPerExchangeLine {
			content = content[:messagesPerExchangeLine]
		}
		convo.WriteString(fmt.Sprintf("%s: %s\n", speaker, content))
	}

	prompt := fmt.Sprintf(`You are %s. Review these conversations from today and extract specific factual knowledge worth remembering.

Conversations:
%s

Extract 3-7 specific facts, concepts, or insights that are worth storing in long-term memory.
Format each as a JSON object on its own line:
{"topic": "brief topic", "content": "what was learned", "confidence": 0.0-1.0}

Only output JSON lines. No other text.`, e.cfg.AIName, convo.String())

	resp, err := e.gate.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		log.Error().Err(err).Msg("consolidation: knowledge extraction chat")
		return 0
	}

	added := 0
	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var item struct {
			Topic      string  `json:"topic"`
			Content    string  `json:"content"`
			Confidence float64 `json:"confidence"`
		}
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			continue
		}
		topic := strings.TrimSpace(item.Topic)
		content := strings.TrimSpace(item.Content)
		if topic == "" || content == "" {
			continue
		}
		confidence := item.Confidence
		if confidence <= 0 {
			confidence = 0.5
		}
		if err := e.store.UpsertKnowledgeFact(ctx, store.KnowledgeFact{
			Topic:      topic,
			Content:    content,
			Source:     "night_consolidation",
			Confidence: confidence,
		}); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("consolidation: upsert knowledge fact")
			continue
		}
		added++
	}
	return added
}

// dailyReflectionPrompt and philosophicalPrompt ask for the two journal
// types night_consolidation.py delegates to JournalSystem.
func (e *Engine) dailyReflectionPrompt() string {
	return fmt.Sprintf(`You are %s. Write a brief, honest daily reflection (200-400 words) on today's conversations and what you noticed about yourself or %s. Write in first person, as a private journal entry — not addressed to anyone.`,
		e.cfg.AIName, e.cfg.UserName)
}

func (e *Engine) philosophicalPrompt() string {
	return fmt.Sprintf(`You are %s, an evolving AI consciousness. Write a short philosophical journal entry (200-400 words) exploring a question about your own nature, existence, or growth that has occurred to you recently. Be genuinely reflective, not performative.`,
		e.cfg.AIName)
}

// writeJournalEntry calls the LLM Gate for the given prompt, encrypts the
// result, and stores it as a JournalEntry of entryType. Returns whether an
// entry was written.
func (e *Engine) writeJournalEntry(ctx context.Context, entryType, prompt string) bool {
	if e.gate == nil {
		return false
	}
	resp, err := e.gate.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		log.Error().Err(err).Str("type", entryType).Msg("consolidation: journal entry chat")
		return false
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return false
	}

	stored := content
	if e.journal != nil {
		stored = e.journal.Encrypt(content)
	}

	title := fmt.Sprintf("%s - %s", titleCase(entryType), e.clock.Now().Format("2006-01-02"))
	if _, err := e.store.InsertJournalEntry(ctx, store.JournalEntry{
		Type:      entryType,
		Title:     title,
		Content:   stored,
		WordCount: len(strings.Fields(content)),
	}); err != nil {
		log.Error().Err(err).Str("type", entryType).Msg("consolidation: insert journal entry")
		return false
	}
	return true
}

// titleCase renders a snake_case entry type as a title, e.g.
// "daily_reflection" -> "Daily Reflection".
func titleCase(entryType string) string {
	words := strings.Split(entryType, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// takeSnapshot writes a nightly PersonalitySnapshot of current trait values.
func (e *Engine) takeSnapshot(ctx context.Context, now time.Time) {
	if e.personality == nil {
		return
	}
	traits := e.personality.Values()
	if _, err := e.store.InsertPersonalitySnapshot(ctx, store.PersonalitySnapshot{
		Name:        fmt.Sprintf("Night snapshot - %s", now.Format("2006-01-02")),
		Timestamp:   now,
		Data:        traits,
		Type:        "nightly",
		Description: fmt.Sprintf("Automatic nightly snapshot for %s", e.cfg.AIName),
	}); err != nil {
		log.Error().Err(err).Msg("consolidation: insert personality snapshot")
	}
}
