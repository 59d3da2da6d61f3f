// ===== Built-in stateless features =====

package ff

import (
	"math"

	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/tm"
)

// omega converts word counts to the penalty scale, -log10(e) per word.
var omega = -math.Log10(math.E)

// WordPenalty fires once per target terminal a rule emits, value omega, so
// a positive weight favors shorter output and a negative one longer.
type WordPenalty struct {
	Stateless
	weights *Weights
}

func NewWordPenalty(w *Weights) *WordPenalty { return &WordPenalty{weights: w} }

func (p *WordPenalty) Name() string { return "WordPenalty" }

func (p *WordPenalty) Compute(ctx Context, acc Accumulator) hypergraph.DPState {
	if n := ctx.Rule.TargetTerminalCount(); n > 0 {
		acc.Add(p.Name(), omega*float64(n))
	}
	return nil
}

func (p *WordPenalty) EstimateCost(r *tm.Rule) float64 {
	return p.weights.Get(p.Name()) * omega * float64(r.TargetTerminalCount())
}

// PhrasePenalty fires 1 per rule application, counting the derivation's
// rules.
type PhrasePenalty struct {
	Stateless
	weights *Weights
}

func NewPhrasePenalty(w *Weights) *PhrasePenalty { return &PhrasePenalty{weights: w} }

func (p *PhrasePenalty) Name() string { return "PhrasePenalty" }

func (p *PhrasePenalty) Compute(ctx Context, acc Accumulator) hypergraph.DPState {
	acc.Add(p.Name(), 1)
	return nil
}

func (p *PhrasePenalty) EstimateCost(r *tm.Rule) float64 {
	return p.weights.Get(p.Name())
}

// defaultOOVValue keeps untranslated words expensive even before tuning.
const defaultOOVValue = -100.0

// OOVPenalty fires on rules synthesized for unknown words, identified by
// their owner.
type OOVPenalty struct {
	Stateless
	weights *Weights
	value   float64
}

// NewOOVPenalty builds the penalty with value per OOV rule; zero selects
// the default of -100.
func NewOOVPenalty(w *Weights, value float64) *OOVPenalty {
	if value == 0 {
		value = defaultOOVValue
	}
	return &OOVPenalty{weights: w, value: value}
}

func (p *OOVPenalty) Name() string { return "OOVPenalty" }

func (p *OOVPenalty) Compute(ctx Context, acc Accumulator) hypergraph.DPState {
	if ctx.Rule.Owner == tm.OOVOwner {
		acc.Add(p.Name(), p.value)
	}
	return nil
}

func (p *OOVPenalty) EstimateCost(r *tm.Rule) float64 {
	if r.Owner != tm.OOVOwner {
		return 0
	}
	return p.weights.Get(p.Name()) * p.value
}

// SourcePathCost surfaces the lattice path cost under an edge as a
// weighted feature, so confusion-network inputs can trade acoustic against
// translation score.
type SourcePathCost struct {
	Stateless
}

func NewSourcePathCost() *SourcePathCost { return &SourcePathCost{} }

func (p *SourcePathCost) Name() string { return "SourcePath" }

func (p *SourcePathCost) Compute(ctx Context, acc Accumulator) hypergraph.DPState {
	if ctx.SourceCost != 0 {
		acc.Add(p.Name(), ctx.SourceCost)
	}
	return nil
}

// EstimateCost is zero: path costs live on spans, not rules.
func (p *SourcePathCost) EstimateCost(r *tm.Rule) float64 { return 0 }
