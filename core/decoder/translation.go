// ===== Translations =====

package decoder

import (
	"fmt"

	"github.com/forester-mt/forester/core/ff"
)

// Translation is the result of decoding one sentence. Results are
// immutable and may be shared: cache hits return the same value, with
// the RequestID of the decode that produced it.
type Translation struct {
	RequestID string
	Source    string

	// Passthrough marks inputs copied through verbatim, either because
	// they were empty or because no derivation covered them.
	Passthrough bool

	// Score is the Viterbi goal score; zero for passthrough results.
	Score float64

	// Hypotheses holds the n-best list, best first.
	Hypotheses []Hypothesis
}

// Hypothesis is one entry of the n-best list.
type Hypothesis struct {
	Text     string
	Tree     string
	Score    float64
	Features ff.FeatureVector
}

// Best returns the top hypothesis text, empty when there is none.
func (t *Translation) Best() string {
	if len(t.Hypotheses) == 0 {
		return ""
	}
	return t.Hypotheses[0].Text
}

// Lines renders the n-best block, one line per hypothesis:
//
//	id ||| hypothesis ||| features ||| score
//
// With trees set, hypotheses carrying a tree print it in place of the
// surface string.
func (t *Translation) Lines(id int, trees bool) []string {
	lines := make([]string, 0, len(t.Hypotheses))
	for _, h := range t.Hypotheses {
		text := h.Text
		if trees && h.Tree != "" {
			text = h.Tree
		}
		lines = append(lines, fmt.Sprintf("%d ||| %s ||| %s ||| %.3f",
			id, text, h.Features.String(), h.Score))
	}
	return lines
}
