package interests

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"nexira/internal/store"
)

// domainKeywords is TOPIC_DOMAINS from self_adaptation.py, carried over as
// an ordered slice so "first match wins" has a deterministic order (a plain
// Go map has none).
var domainKeywords = []struct {
	domain   string
	keywords []string
}{
	{"programming", []string{"code", "python", "javascript", "function", "bug", "error", "api",
		"database", "sql", "algorithm", "server", "class", "module", "import"}},
	{"philosophy", []string{"consciousness", "existence", "meaning", "identity", "free will",
		"reality", "perception", "ethics", "morality", "truth", "mind"}},
	{"science", []string{"physics", "chemistry", "biology", "math", "theorem", "hypothesis",
		"experiment", "quantum", "evolution", "atom", "molecule"}},
	{"creative", []string{"write", "story", "poem", "art", "music", "design", "creative",
		"imagine", "invent", "brainstorm", "draw", "compose"}},
	{"emotional", []string{"feel", "feeling", "sad", "happy", "anxious", "worry", "love",
		"lonely", "excited", "frustrated", "hurt", "miss"}},
	{"practical", []string{"how to", "steps", "guide", "tutorial", "help me", "fix",
		"set up", "install", "configure", "build"}},
	{"current_events", []string{"news", "today", "recently", "latest", "happened", "announcement"}},
}

// ClassifyDomain returns the first domain whose keyword set matches
// (lowercased) message, or "" if none match.
func ClassifyDomain(message string) string {
	lower := strings.ToLower(message)
	for _, d := range domainKeywords {
		for _, kw := range d.keywords {
			if strings.Contains(lower, kw) {
				return d.domain
			}
		}
	}
	return ""
}

// Engine wires topic extraction and domain classification into the Store's
// interests and skill_levels tables.
type Engine struct {
	store *store.Store
}

// New constructs an Engine against the given Store.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// ProcessExchange implements the Interest Tracker's process_exchange:
// extract topics from both sides of the exchange and bump each once.
func (e *Engine) ProcessExchange(ctx context.Context, message, response string) {
	topics := ExtractTopics(message + " " + response)
	for _, topic := range topics {
		if _, err := e.store.BumpInterest(ctx, topic); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("interests: bump interest")
		}
	}
}

// ObserveSkill implements the Skill Tracker: classify message into a
// domain, then log a SkillObservation with the response's confidence.
// confidence is silently dropped (no-op) if message matches no domain.
func (e *Engine) ObserveSkill(ctx context.Context, message string, confidence float64) (store.SkillLevel, error) {
	domain := ClassifyDomain(message)
	if domain == "" {
		return store.SkillLevel{}, nil
	}
	lvl, err := e.store.RecordSkillObservation(ctx, domain, confidence)
	if err != nil {
		return store.SkillLevel{}, fmt.Errorf("record skill observation: %w", err)
	}
	return lvl, nil
}
