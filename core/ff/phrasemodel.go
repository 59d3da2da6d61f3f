// ===== Phrase model =====

package ff

import (
	"gonum.org/v1/gonum/floats"

	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/tm"
)

// PhraseModel scores the features a grammar attached to its rules: the
// dense block under the owner's weight names and any sparse features the
// rule carries. One instance serves one grammar owner; rules belonging to
// other owners pass through unscored.
type PhraseModel struct {
	Stateless
	owner   tm.OwnerID
	weights *Weights
}

// NewPhraseModel builds the scorer for one grammar's rules. width is the
// grammar's dense feature count; the owner's weight block is resolved up
// front so scoring never races the lazy build.
func NewPhraseModel(w *Weights, owner tm.OwnerID, width int) *PhraseModel {
	if width > 0 {
		w.DenseBlock(owner, width)
	}
	return &PhraseModel{owner: owner, weights: w}
}

func (p *PhraseModel) Name() string { return "tm_" + string(p.owner) }

func (p *PhraseModel) Compute(ctx Context, acc Accumulator) hypergraph.DPState {
	if ctx.Rule == nil || ctx.Rule.Owner != p.owner {
		return nil
	}
	for i, v := range ctx.Rule.Dense {
		acc.AddDense(p.owner, i, v)
	}
	for name, v := range ctx.Rule.Sparse {
		acc.Add(name, v)
	}
	return nil
}

// EstimateCost is the weighted dot product of the rule's features, the
// quantity rule collections sort on.
func (p *PhraseModel) EstimateCost(r *tm.Rule) float64 {
	if r.Owner != p.owner {
		return 0
	}
	var est float64
	if len(r.Dense) > 0 {
		block := p.weights.DenseBlock(p.owner, len(r.Dense))
		est = floats.Dot(block[:len(r.Dense)], r.Dense)
	}
	for name, v := range r.Sparse {
		est += p.weights.Get(name) * v
	}
	return est
}
