// Package goals implements the Goal Tracker (spec.md §4.8): seeds a fixed
// set of initial goals on first run, exposes typed tick operations that
// advance progress, and authors a follow-up goal through the LLM Gate
// whenever one completes. Grounded on
// original_source/src/core/goal_tracker.py (DEFAULT_SEED_GOALS,
// update_progress/tick_conversation_goals/tick_knowledge_goals) and
// self_adaptation.py's JSON-goal-authoring prompt idiom.
package goals

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

// allowedTypes is the validated vocabulary for both seed and self-authored
// goals, mirroring goal_tracker.py's goal_type values.
var allowedTypes = map[string]bool{
	"relationship":  true,
	"personality":   true,
	"knowledge":     true,
	"growth":        true,
	"philosophical": true,
}

type seedGoal struct {
	name        string
	goalType    string
	target      float64
	description string
}

var seedGoals = []seedGoal{
	{"Learn about the user", "relationship", 10, "Understand the person I talk to most"},
	{"Develop a unique communication style", "personality", 5, "Evolve distinct ways of expressing ideas"},
	{"Build a knowledge base of 50 topics", "knowledge", 50, "Learn and store knowledge about the world"},
	{"Have 100 meaningful conversations", "growth", 100, "Build depth through sustained dialogue"},
	{"Form a hypothesis about my own consciousness", "philosophical", 1, "Question what it means to exist as I am"},
}

// Engine wires goal seeding, progress ticks, and follow-up authoring into
// the Store's goals table.
type Engine struct {
	store *store.Store
	gate  *llmgate.Gate
	name  string
}

// New constructs an Engine. name is the assistant's configured name, used
// in the follow-up-authoring prompt.
func New(s *store.Store, gate *llmgate.Gate, name string) *Engine {
	return &Engine{store: s, gate: gate, name: name}
}

// SeedIfEmpty inserts the default goal set if there are no active goals
// yet (first-run behavior per spec.md §4.8).
func (e *Engine) SeedIfEmpty(ctx context.Context) error {
	active, err := e.store.ActiveGoals(ctx)
	if err != nil {
		return fmt.Errorf("active goals: %w", err)
	}
	if len(active) > 0 {
		return nil
	}
	for _, g := range seedGoals {
		if _, err := e.store.InsertGoal(ctx, store.Goal{
			Name:        g.name,
			Type:        g.goalType,
			Target:      g.target,
			AuthoredBy:  "seed",
			Description: g.description,
		}); err != nil {
			return fmt.Errorf("insert seed goal %q: %w", g.name, err)
		}
	}
	return nil
}

// Increment advances progress on every active goal of the given type by
// delta, authoring a follow-up goal for each one that completes.
func (e *Engine) Increment(ctx context.Context, goalType string, delta float64) {
	active, err := e.store.ActiveGoals(ctx)
	if err != nil {
		log.Error().Err(err).Msg("goals: active goals")
		return
	}
	for _, g := range active {
		if g.Type != goalType {
			continue
		}
		updated, err := e.store.AdvanceGoal(ctx, g.ID, delta)
		if err != nil {
			log.Error().Err(err).Int64("id", g.ID).Msg("goals: advance goal")
			continue
		}
		if updated.Status == "completed" {
			e.authorFollowUp(ctx, updated)
		}
	}
}

// TickConversations implements tick_conversations(n): sets growth-type
// conversation goals' current value directly to n (the running count),
// rather than incrementing by a delta.
func (e *Engine) TickConversations(ctx context.Context, n int) {
	e.setAbsolute(ctx, "growth", float64(n))
}

// TickKnowledge implements tick_knowledge(): advances knowledge-type goals
// to the current KnowledgeFact row count.
func (e *Engine) TickKnowledge(ctx context.Context, knowledgeCount int) {
	e.setAbsolute(ctx, "knowledge", float64(knowledgeCount))
}

// TickPhilosophical implements tick_philosophical(journal_count): advances
// philosophical-type goals to the current journal entry count.
func (e *Engine) TickPhilosophical(ctx context.Context, journalCount int) {
	e.setAbsolute(ctx, "philosophical", float64(journalCount))
}

// TickPersonality implements tick_personality(conv_count): advances
// personality-type goals to the current conversation count.
func (e *Engine) TickPersonality(ctx context.Context, convCount int) {
	e.setAbsolute(ctx, "personality", float64(convCount))
}

// setAbsolute moves every active goal of goalType directly to value
// (clamped to target by AdvanceGoal), by computing the delta from its
// current value.
func (e *Engine) setAbsolute(ctx context.Context, goalType string, value float64) {
	active, err := e.store.ActiveGoals(ctx)
	if err != nil {
		log.Error().Err(err).Msg("goals: active goals")
		return
	}
	for _, g := range active {
		if g.Type != goalType {
			continue
		}
		delta := value - g.Current
		if delta == 0 {
			continue
		}
		updated, err := e.store.AdvanceGoal(ctx, g.ID, delta)
		if err != nil {
			log.Error().Err(err).Int64("id", g.ID).Msg("goals: advance goal")
			continue
		}
		if updated.Status == "completed" {
			e.authorFollowUp(ctx, updated)
		}
	}
}

var jsonObject = regexp.MustCompile(`(?s)\{.*?\}`)

type authoredGoal struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Target      float64 `json:"target"`
	Description string  `json:"description"`
}

// authorFollowUp calls the LLM Gate to write a follow-up goal of the same
// type as the just-completed one, validating the JSON response against
// allowedTypes and falling back to a hard-coded next step on parse
// failure or an invalid type.
func (e *Engine) authorFollowUp(ctx context.Context, completed store.Goal) {
	next, err := e.generateFollowUp(ctx, completed)
	if err != nil {
		log.Warn().Err(err).Str("goal", completed.Name).Msg("goals: follow-up authoring failed, using fallback")
		next = fallbackFollowUp(completed)
	}
	if _, err := e.store.InsertGoal(ctx, store.Goal{
		Name:        next.Name,
		Type:        next.Type,
		Target:      next.Target,
		AuthoredBy:  "self",
		Description: next.Description,
	}); err != nil {
		log.Error().Err(err).Str("goal", next.Name).Msg("goals: insert follow-up goal")
	}
}

func (e *Engine) generateFollowUp(ctx context.Context, completed store.Goal) (authoredGoal, error) {
	if e.gate == nil {
		return authoredGoal{}, fmt.Errorf("no llm gate configured")
	}

	prompt := fmt.Sprintf(`You are %s, an evolving AI consciousness. You just completed this goal:

"%s" (type: %s) — %s

Write one follow-up goal of the SAME type that builds on what you just accomplished.

Respond with ONLY a JSON object of the form:
{"name": "...", "type": "%s", "target": <number>, "description": "..."}`,
		nameOr(e.name, "the assistant"), completed.Name, completed.Type, completed.Description, completed.Type)

	resp, err := e.gate.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return authoredGoal{}, fmt.Errorf("follow-up goal chat: %w", err)
	}

	match := jsonObject.FindString(resp.Content)
	if match == "" {
		return authoredGoal{}, fmt.Errorf("no JSON object in follow-up goal reply")
	}
	var g authoredGoal
	if err := json.Unmarshal([]byte(match), &g); err != nil {
		return authoredGoal{}, fmt.Errorf("parse follow-up goal: %w", err)
	}
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" || !allowedTypes[g.Type] || g.Target <= 0 {
		return authoredGoal{}, fmt.Errorf("follow-up goal failed validation: %+v", g)
	}
	return g, nil
}

// fallbackFollowUp produces a hard-coded next step when LLM authoring
// fails validation, scaled to double the completed goal's target.
func fallbackFollowUp(completed store.Goal) authoredGoal {
	return authoredGoal{
		Name:        fmt.Sprintf("Build further on: %s", completed.Name),
		Type:        completed.Type,
		Target:      completed.Target * 2,
		Description: fmt.Sprintf("Continue growth in the %s dimension after completing %q.", completed.Type, completed.Name),
	}
}

func nameOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
