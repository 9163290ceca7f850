// Package interests implements the Interest & Skill Trackers (spec.md
// §4.7): a per-topic mention counter promoted through fixed thresholds,
// and a per-domain rolling-confidence classifier. Grounded on
// original_source/src/core/interest_tracker.py for topic extraction and
// the mention-count thresholds, and on self_adaptation.py's TOPIC_DOMAINS
// keyword table, reused here as the Skill Tracker's domain classifier.
package interests

import (
	"regexp"
	"strings"
)

// stopWords mirrors interest_tracker.py's fixed stop-word set used during
// topic extraction.
var stopWords = map[string]bool{
	"the": true, "is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true, "do": true,
	"does": true, "did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "shall": true, "can": true, "need": true,
	"a": true, "an": true, "and": true, "but": true, "or": true, "so": true, "yet": true,
	"for": true, "nor": true, "in": true, "on": true, "at": true, "to": true, "from": true,
	"with": true, "by": true, "about": true, "that": true, "this": true, "these": true,
	"those": true, "it": true, "its": true, "of": true, "not": true, "what": true, "how": true,
	"why": true, "when": true, "where": true, "who": true, "which": true, "just": true,
	"very": true, "really": true, "also": true, "more": true, "some": true, "any": true,
	"think": true, "know": true, "like": true, "want": true, "get": true, "make": true,
	"see": true, "you": true, "your": true, "me": true, "my": true, "we": true, "our": true,
	"they": true, "them": true, "sure": true, "okay": true, "yes": true, "no": true,
	"well": true, "now": true, "then": true,
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

// extractLimit caps the topics+bigrams returned per exchange, matching
// interest_tracker.py's [:20] slice.
const extractLimit = 20

// ExtractTopics tokenizes text, strips stop words and short tokens (length
// <= 4), forms adjacent bigrams from the survivors, and returns the deduped
// set — spec.md §4.7's topic-extraction contract.
func ExtractTopics(text string) []string {
	clean := nonWord.ReplaceAllString(strings.ToLower(text), " ")
	words := strings.Fields(clean)

	var candidates []string
	for _, w := range words {
		if !stopWords[w] && len(w) > 4 {
			candidates = append(candidates, w)
		}
	}

	seen := make(map[string]bool)
	var out []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, c := range candidates {
		add(c)
	}
	for i := 0; i+1 < len(candidates); i++ {
		add(candidates[i] + " " + candidates[i+1])
	}

	if len(out) > extractLimit {
		out = out[:extractLimit]
	}
	return out
}
