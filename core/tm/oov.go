// ===== OOV grammar =====

package tm

import (
	"fmt"
	"sync"

	"github.com/gobwas/glob"

	"github.com/forester-mt/forester/core/vocab"
)

// OOVOwner is the owner OOV rules are synthesized under; the OOV penalty
// feature keys off it.
const OOVOwner OwnerID = "oov"

// PassThroughFeature is the sparse feature set on OOV rules whose surface
// form matches a passthrough pattern, so tuning can stop penalizing words
// that should survive untranslated (URLs, numbers, product names).
const PassThroughFeature = "PassThrough"

// OOVGrammar synthesizes passthrough rules for words no loaded grammar
// knows. Each distinct unknown word gets exactly one rule per configured
// label, translating the word to itself.
type OOVGrammar struct {
	*MemoryGrammar

	labels   []int
	patterns []glob.Glob

	mu   sync.Mutex
	seen map[int]struct{}
}

// NewOOVGrammar builds an OOV grammar producing rules under the given
// nonterminal labels (defaulting to "[X]" when empty). passthrough holds
// glob patterns; matching words are tagged with PassThroughFeature.
func NewOOVGrammar(v *vocab.Table, labels []string, passthrough []string) (*OOVGrammar, error) {
	if len(labels) == 0 {
		labels = []string{"[X]"}
	}
	g := &OOVGrammar{
		MemoryGrammar: NewMemoryGrammar(v, OOVOwner, 0),
		seen:          make(map[int]struct{}),
	}
	for _, l := range labels {
		if !vocab.IsNonterminalLabel(l) {
			return nil, fmt.Errorf("tm: oov label %q is not a nonterminal", l)
		}
		g.labels = append(g.labels, v.ID(l))
	}
	for _, p := range passthrough {
		pat, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("tm: compile passthrough pattern %q: %w", p, err)
		}
		g.patterns = append(g.patterns, pat)
	}
	return g, nil
}

// AddOOVRules synthesizes rules for word, once per distinct word. Repeat
// calls for a word already handled are no-ops.
func (g *OOVGrammar) AddOOVRules(word int, models []Estimator) {
	g.mu.Lock()
	if _, ok := g.seen[word]; ok {
		g.mu.Unlock()
		return
	}
	g.seen[word] = struct{}{}
	g.mu.Unlock()

	surface := g.vocab.Word(word)
	var sparse map[string]float64
	for _, pat := range g.patterns {
		if pat.Match(surface) {
			sparse = map[string]float64{PassThroughFeature: 1}
			break
		}
	}

	for _, lhs := range g.labels {
		r := &Rule{
			LHS:    lhs,
			Source: []int{word},
			Target: []int{word},
			Sparse: sparse,
			Owner:  OOVOwner,
		}
		r.EstimateCost(models)
		g.AddRule(r)
	}
}
