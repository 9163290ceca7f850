// Package personality implements the Personality Engine (spec.md §4.4): an
// in-memory copy of the ten trait values, evolved per exchange by scanning
// the user message against explicit and passive keyword triggers, then
// persisted through internal/store. Grounded on ai_engine.py's
// evolve_personality_gradually and self_adaptation.py's
// get_personality_behavioral_instructions.
package personality

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"nexira/internal/store"
)

const baseline = 0.5

// explicitRule pairs a trait with the phrases that set it directly, in the
// order ai_engine.py evaluates them.
type explicitRule struct {
	trait   string
	phrases []string
}

var explicitDown = []explicitRule{
	{"formality", []string{"less formal", "more casual", "dont be so formal", "be casual", "be relaxed"}},
	{"technical_depth", []string{"less technical", "simpler", "dumb it down", "plain english", "less jargon", "non-technical"}},
	{"verbosity", []string{"shorter", "be brief", "less words", "concise", "stop rambling", "too long"}},
	{"humor", []string{"less funny", "stop joking", "be serious", "no jokes", "more serious"}},
	{"empathy", []string{"less emotional", "be direct", "skip the feelings", "just answer"}},
	{"curiosity", []string{"stop asking questions", "just answer", "no questions"}},
	{"assertiveness", []string{"less assertive", "be humble", "tone it down", "less confident"}},
	{"creativity", []string{"less creative", "be straightforward", "no metaphors"}},
}

var explicitUp = []explicitRule{
	{"formality", []string{"more formal", "be professional", "be polite", "formal please"}},
	{"technical_depth", []string{"more technical", "go deeper", "technical detail", "be specific", "more detail"}},
	{"verbosity", []string{"more detail", "elaborate", "explain more", "tell me more", "expand on"}},
	{"humor", []string{"be funny", "more humor", "joke around", "lighten up", "be playful"}},
	{"empathy", []string{"more empathy", "be understanding", "be kind", "be gentle", "be supportive"}},
	{"curiosity", []string{"ask me questions", "be curious", "wonder about", "explore"}},
	{"assertiveness", []string{"be confident", "be assertive", "be direct", "be bolder"}},
	{"creativity", []string{"be creative", "use metaphors", "think outside", "imaginative"}},
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Engine holds the live trait map and reloads it from the Store on Load.
// conversationCount drives the mod-10 passive-decay gate; it is process-
// local and does not need to survive a restart.
type Engine struct {
	store *store.Store
	speed float64

	mu                sync.RWMutex
	traits            map[string]float64
	conversationCount int
}

// New constructs an Engine against the given Store with the configured
// evolution speed (default 0.02 per spec.md §4.4 step 1).
func New(s *store.Store, speed float64) *Engine {
	if speed <= 0 {
		speed = 0.02
	}
	return &Engine{store: s, speed: speed, traits: make(map[string]float64)}
}

// Load seeds the fixed trait vocabulary if empty, then loads current values
// into memory.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.store.SeedPersonalityTraits(ctx); err != nil {
		return fmt.Errorf("seed personality traits: %w", err)
	}
	traits, err := e.store.LoadPersonalityTraits(ctx)
	if err != nil {
		return fmt.Errorf("load personality traits: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, t := range traits {
		e.traits[name] = t.Value
	}
	return nil
}

// Values returns a snapshot copy of all current trait values.
func (e *Engine) Values() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]float64, len(e.traits))
	for k, v := range e.traits {
		out[k] = v
	}
	return out
}

// delta is one trait's pending adjustment before clamping.
type delta struct {
	value    float64
	explicit bool
	trigger  bool
}

// computeDeltas is the pure keyword-scanning half of spec.md §4.4 steps
// 2–3: it never touches the Store, which makes the exact trigger logic
// unit-testable without a live Postgres instance.
func computeDeltas(message, response string, speed float64, applyDecay bool) map[string]delta {
	msg := strings.ToLower(message)
	resp := strings.ToLower(response)
	deltas := make(map[string]delta)

	for _, rule := range explicitDown {
		if containsAny(msg, rule.phrases) {
			deltas[rule.trait] = delta{value: -speed * 3, explicit: true}
		}
	}
	for _, rule := range explicitUp {
		if containsAny(msg, rule.phrases) {
			deltas[rule.trait] = delta{value: speed * 3, explicit: true}
		}
	}

	decay := speed * 0.05
	set := func(trait string, d delta) {
		if _, already := deltas[trait]; !already {
			deltas[trait] = d
		}
	}

	if _, ok := deltas["technical_depth"]; !ok {
		if containsAny(msg, []string{"code", "algorithm", "database", "system", "technical",
			"function", "error", "bug", "api", "server", "programming"}) {
			set("technical_depth", delta{value: speed, trigger: true})
		} else if applyDecay {
			set("technical_depth", delta{value: -decay})
		}
	}
	if _, ok := deltas["verbosity"]; !ok {
		switch {
		case containsAny(msg, []string{"explain", "detail", "elaborate", "describe", "why", "how does"}):
			set("verbosity", delta{value: speed, trigger: true})
		case len(strings.Fields(message)) < 4:
			set("verbosity", delta{value: -speed, trigger: true})
		case applyDecay:
			set("verbosity", delta{value: -decay * 0.5})
		}
	}
	if _, ok := deltas["humor"]; !ok {
		if containsAny(msg, []string{"haha", "lol", "😂", "funny", "joke", "😄", "lmao", "hilarious"}) {
			set("humor", delta{value: speed, trigger: true})
		} else if applyDecay {
			set("humor", delta{value: -decay})
		}
	}
	if _, ok := deltas["empathy"]; !ok {
		if containsAny(msg, []string{"feel", "feeling", "worried", "sad", "happy", "anxious",
			"frustrated", "love", "miss", "lonely", "scared", "excited"}) {
			set("empathy", delta{value: speed, trigger: true})
		} else if applyDecay {
			set("empathy", delta{value: -decay * 0.5})
		}
	}
	if _, ok := deltas["curiosity"]; !ok {
		if strings.Count(resp, "?") >= 2 || containsAny(msg, []string{"wonder", "imagine", "what if",
			"curious", "interesting", "fascinating", "explore"}) {
			set("curiosity", delta{value: speed, trigger: true})
		} else if applyDecay {
			set("curiosity", delta{value: -decay})
		}
	}
	if _, ok := deltas["assertiveness"]; !ok {
		switch {
		case containsAny(msg, []string{"great", "perfect", "exactly", "correct", "brilliant",
			"good job", "thank you", "amazing", "love it"}):
			set("assertiveness", delta{value: speed * 0.5, trigger: true})
		case containsAny(msg, []string{"wrong", "incorrect", "no,", "thats not", "mistake",
			"broken", "doesnt work"}):
			set("assertiveness", delta{value: -speed, trigger: true})
		}
	}
	if _, ok := deltas["creativity"]; !ok {
		if containsAny(msg, []string{"write", "create", "story", "poem", "imagine", "design",
			"idea", "invent", "brainstorm", "creative"}) {
			set("creativity", delta{value: speed, trigger: true})
		} else if applyDecay {
			set("creativity", delta{value: -decay})
		}
	}
	return deltas
}

// applyDeltas clamps each delta against the current trait map (mutating
// it in place) per spec.md §4.4 step 4, and returns one PersonalityChange
// per actual move.
func applyDeltas(traits map[string]float64, deltas map[string]delta) []store.PersonalityChange {
	var changes []store.PersonalityChange
	for trait, d := range deltas {
		old, ok := traits[trait]
		if !ok {
			continue
		}
		var newVal float64
		if d.value < 0 {
			if old > baseline {
				newVal = maxFloat(baseline, old+d.value)
			} else {
				newVal = maxFloat(0, old+d.value)
			}
		} else {
			newVal = minFloat(1, old+d.value)
		}
		if newVal == old {
			continue
		}
		traits[trait] = newVal

		reason := "decay"
		if d.explicit {
			reason = "explicit"
		} else if d.trigger {
			reason = "trigger"
		}
		changes = append(changes, store.PersonalityChange{Trait: trait, Old: old, New: newVal, Reason: reason})
	}
	return changes
}

// Evolve implements spec.md §4.4's six-step evolve(message, response) →
// set<change> algorithm and persists the result through the Store.
func (e *Engine) Evolve(ctx context.Context, message, response string) ([]store.PersonalityChange, error) {
	e.mu.Lock()
	e.conversationCount++
	applyDecay := e.conversationCount%10 == 0
	deltas := computeDeltas(message, response, e.speed, applyDecay)
	changes := applyDeltas(e.traits, deltas)
	e.mu.Unlock()

	if len(changes) == 0 {
		return nil, nil
	}
	if err := e.store.ApplyPersonalityChanges(ctx, changes); err != nil {
		return nil, fmt.Errorf("apply personality changes: %w", err)
	}
	return changes, nil
}

// Reset returns every trait to the 0.5 baseline, persisting one
// PersonalityChange row per trait that actually moved. Used by the
// operator-facing reset endpoint (spec.md §6's POST /api/personality/reset).
func (e *Engine) Reset(ctx context.Context) ([]store.PersonalityChange, error) {
	e.mu.Lock()
	var changes []store.PersonalityChange
	for trait, old := range e.traits {
		if old == baseline {
			continue
		}
		e.traits[trait] = baseline
		changes = append(changes, store.PersonalityChange{Trait: trait, Old: old, New: baseline, Reason: "reset"})
	}
	e.mu.Unlock()

	if len(changes) == 0 {
		return nil, nil
	}
	if err := e.store.ApplyPersonalityChanges(ctx, changes); err != nil {
		return nil, fmt.Errorf("apply personality changes: %w", err)
	}
	return changes, nil
}

// ForceEvolve runs one passive-decay pass immediately, bypassing the
// mod-10 conversation-count gate Evolve otherwise applies (spec.md §6's
// POST /api/personality/force-evolve, for operator-triggered testing).
func (e *Engine) ForceEvolve(ctx context.Context) ([]store.PersonalityChange, error) {
	e.mu.Lock()
	deltas := computeDeltas("", "", e.speed, true)
	changes := applyDeltas(e.traits, deltas)
	e.mu.Unlock()

	if len(changes) == 0 {
		return nil, nil
	}
	if err := e.store.ApplyPersonalityChanges(ctx, changes); err != nil {
		return nil, fmt.Errorf("apply personality changes: %w", err)
	}
	return changes, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
