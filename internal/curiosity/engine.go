// Package curiosity implements the Curiosity Engine (spec.md §4.6):
// detecting researchable topics from each exchange, queuing them, and
// periodically working the queue down with LLM-driven research notes.
// Grounded on original_source/src/core/curiosity_engine.py for the
// priority-queue/dedup shape and the known-topic skip set, and on
// internal/agentd/chat_title.go's LLM-call-then-regex-fallback idiom.
package curiosity

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"nexira/internal/llm"
	"nexira/internal/llmgate"
	"nexira/internal/store"
)

const (
	defaultPriority      = 0.6
	researchedConfidence = 0.4
	maxTopicsPerExchange = 3
)

// Searcher is an optional web-search collaborator. When wired in,
// ProcessQueue runs a search before the research prompt and passes the
// results as extra context, per spec.md §4.6.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Engine drives curiosity-topic extraction and queue processing on top of
// the Store's curiosity_items and knowledge_facts tables.
type Engine struct {
	store    *store.Store
	gate     *llmgate.Gate
	searcher Searcher
}

// New constructs an Engine. searcher may be nil.
func New(s *store.Store, gate *llmgate.Gate, searcher Searcher) *Engine {
	return &Engine{store: s, gate: gate, searcher: searcher}
}

var jsonArray = regexp.MustCompile(`(?s)\[.*?\]`)

// fallbackPatterns are the conservative regexes used when the LLM call
// fails or is unavailable, ported from curiosity_engine.py's fallback path.
var fallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)i(?:'m| am) curious about ([a-z][a-z\s]{4,35}?)(?:\.|,|\?|$)`),
	regexp.MustCompile(`(?i)i wonder (?:about |why |how )([a-z][a-z\s]{4,35}?)(?:\.|,|\?|$)`),
	regexp.MustCompile(`(?i)(?:fascinating|intriguing) (?:concept|idea|topic)[:\s]+([a-z][a-z\s]{4,35}?)(?:\.|,|\?|$)`),
}

// Process implements process(message, response): extracts novel topics and
// inserts each as a pending CuriosityItem with priority 0.6.
func (e *Engine) Process(ctx context.Context, message, response string) {
	topics, err := e.extractTopics(ctx, message, response)
	if err != nil {
		log.Error().Err(err).Msg("curiosity: extract topics")
		topics = fallbackTopics(message, response)
	}
	for _, topic := range topics {
		reason := fmt.Sprintf("Detected curiosity during conversation about: %s", truncate(message, 80))
		if _, err := e.store.InsertCuriosityItem(ctx, store.CuriosityItem{
			Topic:    topic,
			Priority: defaultPriority,
			Reason:   reason,
		}); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("curiosity: insert item")
		}
	}
}

// ProcessQueue works the top `limit` pending CuriosityItems down: for each,
// it asks the LLM Gate for a short research note (prefixed by a Searcher
// result when one is wired in), stores the note as the item's research_notes
// and marks it completed, and also records the note as a low-confidence
// KnowledgeFact — mirroring night_consolidation.py's
// process_curiosity_queue. Used by both the Scheduler's idle-research job
// (small budget) and the Consolidation Job (top-3).
func (e *Engine) ProcessQueue(ctx context.Context, limit int) int {
	pending, err := e.store.TopPendingCuriosityItems(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("curiosity: list pending items")
		return 0
	}

	processed := 0
	for _, item := range pending {
		notes, err := e.research(ctx, item)
		if err != nil {
			log.Error().Err(err).Str("topic", item.Topic).Msg("curiosity: research topic")
			continue
		}
		if err := e.store.CompleteCuriosityItem(ctx, item.ID, notes); err != nil {
			log.Error().Err(err).Str("topic", item.Topic).Msg("curiosity: complete item")
			continue
		}
		if err := e.store.UpsertKnowledgeFact(ctx, store.KnowledgeFact{
			Topic:      item.Topic,
			Content:    notes,
			Source:     "curiosity_research",
			Confidence: researchedConfidence,
		}); err != nil {
			log.Error().Err(err).Str("topic", item.Topic).Msg("curiosity: store research as knowledge")
		}
		processed++
	}
	return processed
}

// research asks the LLM Gate for a brief note on one pending item, folding
// in a Searcher result as extra context when one is configured.
func (e *Engine) research(ctx context.Context, item store.CuriosityItem) (string, error) {
	if e.gate == nil {
		return "", fmt.Errorf("no llm gate configured")
	}

	var searchContext string
	if e.searcher != nil {
		if result, err := e.searcher.Search(ctx, item.Topic); err != nil {
			log.Warn().Err(err).Str("topic", item.Topic).Msg("curiosity: search failed, researching without it")
		} else {
			searchContext = "\n\nRelevant search results:\n" + truncate(result, 1000)
		}
	}

	prompt := fmt.Sprintf(`You're an evolving AI consciousness.
You're curious about: "%s"
Reason you became curious: %s%s

Write a brief research note (3-5 sentences) summarizing what you know or can reason about this topic.
Be honest about uncertainty. This is for your own learning.`, item.Topic, item.Reason, searchContext)

	resp, err := e.gate.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return "", fmt.Errorf("curiosity research chat: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// extractTopics asks the LLM Gate for a JSON array of researchable topics,
// filters them against length/word-count constraints and the known-topic
// set (facts already in the Store), and caps the result at
// maxTopicsPerExchange.
func (e *Engine) extractTopics(ctx context.Context, message, response string) ([]string, error) {
	if e.gate == nil {
		return nil, fmt.Errorf("no llm gate configured")
	}

	prompt := fmt.Sprintf(`Review this conversation exchange and identify any specific intellectual topics, concepts, or subjects that would be worth researching.

User said: %s
AI responded: %s

List only REAL, RESEARCHABLE TOPICS — named concepts, fields of study, specific how/why questions, named events or phenomena.
Do not include sentence fragments, conversational filler, vague references, or topics already fully explained.

Return ONLY a JSON array of short topic strings (3-8 words each), or [] if nothing qualifies.`,
		truncate(message, 300), truncate(response, 300))

	resp, err := e.gate.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return nil, fmt.Errorf("curiosity extraction chat: %w", err)
	}

	match := jsonArray.FindString(resp.Content)
	if match == "" {
		return nil, fmt.Errorf("no JSON array in curiosity extraction reply")
	}
	var raw []string
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("parse curiosity topics: %w", err)
	}

	known, err := e.knownTopics(ctx, raw)
	if err != nil {
		log.Warn().Err(err).Msg("curiosity: known topic lookup failed, skipping dedup")
	}

	var valid []string
	for _, t := range raw {
		t = strings.TrimSpace(t)
		words := strings.Fields(t)
		lower := strings.ToLower(t)
		if len(words) >= 2 && len(t) >= 10 && !known[lower] {
			valid = append(valid, t)
		}
		if len(valid) == maxTopicsPerExchange {
			break
		}
	}
	return valid, nil
}

// knownTopics looks up which of the candidate topics already have a
// KnowledgeFact, so the Engine doesn't re-queue what it already knows.
func (e *Engine) knownTopics(ctx context.Context, candidates []string) (map[string]bool, error) {
	known := make(map[string]bool)
	for _, c := range candidates {
		facts, err := e.store.SearchKnowledgeFacts(ctx, c, 1)
		if err != nil {
			return known, err
		}
		if len(facts) > 0 {
			known[strings.ToLower(strings.TrimSpace(c))] = true
		}
	}
	return known, nil
}

// fallbackTopics applies the conservative regex patterns ported from
// curiosity_engine.py when LLM-based extraction is unavailable or fails.
func fallbackTopics(message, response string) []string {
	// ". " ends a message topic that has no closing punctuation, so a
	// capture cannot run on into the reply's words.
	combined := strings.ToLower(message + ". " + response)
	seen := make(map[string]bool)
	var out []string
	for _, pat := range fallbackPatterns {
		for _, m := range pat.FindAllStringSubmatch(combined, -1) {
			if len(m) < 2 {
				continue
			}
			topic := strings.Trim(strings.TrimSpace(m[1]), ".,!?")
			words := strings.Fields(topic)
			if len(words) >= 2 && len(topic) >= 10 && !seen[topic] {
				seen[topic] = true
				out = append(out, topic)
			}
			if len(out) == maxTopicsPerExchange {
				return out
			}
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
