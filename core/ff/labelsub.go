// ===== Label substitution feature =====

package ff

import (
	"fmt"

	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/tm"
	"github.com/forester-mt/forester/core/vocab"
)

// LabelSubstitution scores how derivations plug nodes into rule slots:
// one MATCH or NOMATCH indicator per substitution, plus a pair feature
// naming which label stood in for which. Under fuzzy label matching this
// is what lets tuning learn which substitutions are harmless; under exact
// matching only the MATCH indicators fire.
type LabelSubstitution struct {
	Stateless
	vocab *vocab.Table
}

// NewLabelSubstitution builds the feature over v's label forms.
func NewLabelSubstitution(v *vocab.Table) *LabelSubstitution {
	return &LabelSubstitution{vocab: v}
}

func (f *LabelSubstitution) Name() string { return "LabelSubstitution" }

func (f *LabelSubstitution) Compute(ctx Context, acc Accumulator) hypergraph.DPState {
	// Glue concatenation is not a substitution choice worth scoring.
	if ctx.Rule.Arity == 0 || ctx.Rule.Owner == tm.GlueOwner {
		return nil
	}
	nt := 0
	for _, sym := range ctx.Rule.Source {
		if !vocab.IsNonterminal(sym) {
			continue
		}
		if nt >= len(ctx.Tails) {
			break
		}
		tail := ctx.Tails[nt]
		nt++
		if sym == tail.LHS {
			acc.Add(f.Name()+"_MATCH", 1)
		} else {
			acc.Add(f.Name()+"_NOMATCH", 1)
		}
		acc.Add(fmt.Sprintf("%s_%s_substitutes_%s",
			f.Name(), hypergraph.Label(f.vocab, tail.LHS), hypergraph.Label(f.vocab, sym)), 1)
	}
	return nil
}

func (f *LabelSubstitution) EstimateCost(r *tm.Rule) float64 { return 0 }
