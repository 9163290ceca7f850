package conversation

import (
	"fmt"
	"sort"
	"strings"
)

// EmotionalState tracks seven named intensities in [0,1], reset to these
// defaults each process start — it is intentionally not persisted, mirroring
// ai_engine.py's __init__ dict literal that never reads from the database.
type EmotionalState map[string]float64

func defaultEmotionalState() EmotionalState {
	return EmotionalState{
		"curiosity":     0.5,
		"satisfaction":  0.5,
		"frustration":   0.0,
		"excitement":    0.5,
		"concern":       0.0,
		"pride":         0.3,
		"embarrassment": 0.0,
	}
}

const emotionalDecayRate = 0.05

// updateEmotionalState mutates state in place per ai_engine.py's
// update_emotional_state: feedback-driven bumps, a curiosity bump on
// question marks, and a fixed decay on the three negative emotions.
func updateEmotionalState(state EmotionalState, message, feedback string) {
	switch feedback {
	case "positive":
		state["satisfaction"] = minFloat(1.0, state["satisfaction"]+0.15)
		state["pride"] = minFloat(1.0, state["pride"]+0.10)
	case "negative":
		state["frustration"] = minFloat(1.0, state["frustration"]+0.20)
		state["concern"] = minFloat(1.0, state["concern"]+0.15)
	}
	if strings.Contains(message, "?") {
		state["curiosity"] = minFloat(1.0, state["curiosity"]+0.10)
	}
	for _, e := range []string{"frustration", "embarrassment", "concern"} {
		state[e] = maxFloat(0.0, state[e]-emotionalDecayRate)
	}
}

// averageEmotionalState is used by Message importance scoring (spec.md
// §4.10 step 7, "high average emotional-state").
func averageEmotionalState(state EmotionalState) float64 {
	if len(state) == 0 {
		return 0
	}
	var sum float64
	for _, v := range state {
		sum += v
	}
	return sum / float64(len(state))
}

// formatEmotionalState renders only the emotions above 0.3, mirroring
// ai_engine.py's format_emotional_state.
func formatEmotionalState(state EmotionalState) string {
	type entry struct {
		name  string
		level float64
	}
	var active []entry
	for name, level := range state {
		if level > 0.3 {
			active = append(active, entry{name, level})
		}
	}
	if len(active) == 0 {
		return "- Calm and balanced"
	}
	sort.Slice(active, func(i, j int) bool { return active[i].name < active[j].name })

	var lines []string
	for _, a := range active {
		lines = append(lines, fmt.Sprintf("- %s: %.2f", capitalize(a.name), a.level))
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
