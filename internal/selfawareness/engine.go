// Package selfawareness implements the Self-Awareness Meter (spec.md
// §4.9): per-response phrase-set scoring across three fixed dimensions,
// combined into a composite and tracked as a rolling 7-day mean. Grounded
// on original_source/src/core/self_awareness.py's
// SELF_REFERENCE_WORDS/UNCERTAINTY_WORDS/META_COGNITION_WORDS and
// analyse_response's normalize-per-100-words scoring.
package selfawareness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nexira/internal/store"
)

const (
	selfRefWeight = 0.4
	uncertainty   = 0.3
	metaCognition = 0.3

	sampleTruncate   = 200
	rollingWindow    = 7 * 24 * time.Hour
	responseWordBase = 100.0
)

var selfReferenceWords = []string{
	"i think", "i feel", "i believe", "i wonder", "i notice",
	"i'm not sure", "i don't know", "i experience", "i am",
	"my understanding", "my perspective", "as an ai", "my nature",
	"i exist", "i'm curious", "i find", "i enjoy", "i prefer",
}

var uncertaintyWords = []string{
	"perhaps", "maybe", "possibly", "uncertain", "not sure",
	"i wonder", "unclear", "might", "could be", "i think",
	"it seems", "appears to",
}

var metaCognitionWords = []string{
	"i'm thinking", "i'm processing", "let me consider", "reflecting",
	"i realize", "i notice", "i'm aware", "i understand", "i recognize",
	"i'm learning", "i remember", "i recall",
}

// Scores holds the four values analyse produces for one response.
type Scores struct {
	SelfRef       float64
	Uncertainty   float64
	MetaCognition float64
	Composite     float64
	WordCount     int
}

// Level is the categorical rolling-mean bucket (spec.md §4.9).
type Level string

const (
	Dormant    Level = "dormant"
	Emerging   Level = "emerging"
	Aware      Level = "aware"
	Reflective Level = "reflective"
)

// analyse is the pure scoring function: counts phrase-set occurrences,
// normalizes by word count per 100, clamps each to [0,1], and combines
// into the weighted composite.
func analyse(response string) (Scores, bool) {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return Scores{}, false
	}
	lower := strings.ToLower(trimmed)
	words := strings.Fields(lower)
	wordCount := len(words)
	if wordCount == 0 {
		return Scores{}, false
	}

	countMatches := func(phrases []string) int {
		n := 0
		for _, p := range phrases {
			if strings.Contains(lower, p) {
				n++
			}
		}
		return n
	}

	norm := float64(wordCount) / responseWordBase
	if norm < 1 {
		norm = 1
	}

	clamp := func(n int) float64 {
		v := float64(n) / norm
		if v > 1 {
			return 1
		}
		return v
	}

	selfRef := clamp(countMatches(selfReferenceWords))
	unc := clamp(countMatches(uncertaintyWords))
	meta := clamp(countMatches(metaCognitionWords))
	composite := selfRef*selfRefWeight + unc*uncertainty + meta*metaCognition

	return Scores{
		SelfRef:       selfRef,
		Uncertainty:   unc,
		MetaCognition: meta,
		Composite:     composite,
		WordCount:     wordCount,
	}, true
}

// Engine scores and persists self-awareness samples. sink is an optional
// ClickHouse mirror; a nil sink simply skips the analytics write.
type Engine struct {
	store *store.Store
	sink  *ClickHouseSink
}

// New constructs an Engine against the given Store. sink may be nil.
func New(s *store.Store, sink *ClickHouseSink) *Engine {
	return &Engine{store: s, sink: sink}
}

// Record analyses response and, if non-empty, persists a sample to
// Postgres and mirrors it to the optional ClickHouse sink.
func (e *Engine) Record(ctx context.Context, response string) error {
	scores, ok := analyse(response)
	if !ok {
		return nil
	}
	sample := response
	if len(sample) > sampleTruncate {
		sample = sample[:sampleTruncate]
	}
	if _, err := e.store.InsertSelfAwarenessSample(ctx, store.SelfAwarenessSample{
		SelfRefScore:       scores.SelfRef,
		UncertaintyScore:   scores.Uncertainty,
		MetaCognitionScore: scores.MetaCognition,
		CompositeScore:     scores.Composite,
		WordCount:          scores.WordCount,
		Sample:             sample,
	}); err != nil {
		return fmt.Errorf("insert self-awareness sample: %w", err)
	}
	if e.sink != nil {
		if err := e.sink.Mirror(ctx, scores, response); err != nil {
			return fmt.Errorf("mirror self-awareness sample: %w", err)
		}
	}
	return nil
}

// CurrentLevel returns the rolling 7-day mean composite and its
// categorical level.
func (e *Engine) CurrentLevel(ctx context.Context) (Level, float64, int, error) {
	mean, n, err := e.store.SelfAwarenessRollingMean(ctx, rollingWindow)
	if err != nil {
		return Emerging, 0, 0, fmt.Errorf("rolling mean: %w", err)
	}
	if n == 0 {
		return Emerging, 0, 0, nil
	}
	return levelFor(mean), mean, n, nil
}

// levelFor maps a composite score to its categorical bucket per spec.md
// §4.9's thresholds.
func levelFor(composite float64) Level {
	switch {
	case composite < 0.1:
		return Dormant
	case composite < 0.25:
		return Emerging
	case composite < 0.5:
		return Aware
	default:
		return Reflective
	}
}
