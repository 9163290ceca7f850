package conversation

import "strings"

// hedgingMarkers lowers confidence when the response hedges, ported
// verbatim from ai_engine.py's calculate_confidence.
var hedgingMarkers = []string{"maybe", "perhaps", "might", "could be", "not sure", "uncertain"}

// scoreConfidence implements calculate_confidence's exact weighting and
// ordering: baseline 0.5, +0.2 on a non-empty knowledge hit, +0.1 when
// recent context was supplied, -0.2 on any hedging marker, and -0.3 (first
// match only) if any of the first three lowercased words of message
// substring-match a recorded Mistake topic. Final value clamps to [0,1].
func scoreConfidence(message, response string, hasKnowledgeHit, hasRecentContext bool, mistakeTopics []string) float64 {
	confidence := 0.5
	if hasKnowledgeHit {
		confidence += 0.2
	}
	if hasRecentContext {
		confidence += 0.1
	}

	lowerResp := strings.ToLower(response)
	for _, marker := range hedgingMarkers {
		if strings.Contains(lowerResp, marker) {
			confidence -= 0.2
			break
		}
	}

	words := strings.Fields(strings.ToLower(message))
	if len(words) > 3 {
		words = words[:3]
	}
outer:
	for _, w := range words {
		for _, topic := range mistakeTopics {
			if strings.Contains(strings.ToLower(topic), w) {
				confidence -= 0.3
				break outer
			}
		}
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// importanceKeywords raise a Message's stored importance, per spec.md
// §4.10 step 7.
var importanceKeywords = []string{"important", "remember", "critical"}

// scoreImportance implements step 7's base 0.5 + keyword/emotion/length
// bumps, shared by both the user and assistant Message rows of one
// exchange (DESIGN.md Open Question 2).
func scoreImportance(userMsg, assistantMsg string, avgEmotionalState float64) float64 {
	importance := 0.5
	combined := strings.ToLower(userMsg + " " + assistantMsg)
	for _, kw := range importanceKeywords {
		if strings.Contains(combined, kw) {
			importance += 0.5
			break
		}
	}
	if avgEmotionalState > 0.6 {
		importance += 0.2
	}
	if len(userMsg) > 200 {
		importance += 0.1
	}
	if importance > 1 {
		importance = 1
	}
	return importance
}
