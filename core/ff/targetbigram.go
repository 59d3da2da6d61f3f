// ===== Target bigram feature =====

package ff

import (
	"fmt"

	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/segment"
	"github.com/forester-mt/forester/core/span"
	"github.com/forester-mt/forester/core/tm"
	"github.com/forester-mt/forester/core/vocab"
)

// TargetBigram fires an indicator feature for every target-side bigram a
// derivation produces, including the sentence-boundary bigrams at the
// goal. It carries an NgramState of one boundary word per side, which is
// what makes nodes with different target frontiers distinguishable.
type TargetBigram struct {
	StateBase
	vocab *vocab.Table
}

// NewTargetBigram builds the feature over v's word forms.
func NewTargetBigram(v *vocab.Table) *TargetBigram {
	return &TargetBigram{vocab: v}
}

func (f *TargetBigram) Name() string { return "TargetBigram" }

// Compute walks the rule's target side left to right. Terminals are
// visible directly; a tail contributes its left boundary word to the
// bigram with whatever came before, then hides its interior behind its
// right boundary word.
func (f *TargetBigram) Compute(ctx Context, acc Accumulator) hypergraph.DPState {
	var left, right, prev int
	for _, sym := range ctx.Rule.Target {
		if sym > 0 {
			if prev != 0 {
				f.fire(acc, prev, sym)
			}
			if left == 0 {
				left = sym
			}
			right, prev = sym, sym
			continue
		}
		st := f.tailState(ctx.Tails[tm.TailIndex(sym)])
		if cl := st.LeftWord(); cl != 0 {
			if prev != 0 {
				f.fire(acc, prev, cl)
			}
			if left == 0 {
				left = cl
			}
		}
		if cr := st.RightWord(); cr != 0 {
			right, prev = cr, cr
		}
	}

	st := &NgramState{}
	if left != 0 {
		st.Left = []int{left}
	}
	if right != 0 {
		st.Right = []int{right}
	}
	return st
}

// ComputeFinal adds the boundary bigrams over the goal transition.
func (f *TargetBigram) ComputeFinal(tail *hypergraph.Node, sp span.Span, sent *segment.Sentence, acc Accumulator) hypergraph.DPState {
	st := f.tailState(tail)
	if w := st.LeftWord(); w != 0 {
		acc.Add(f.feature("<s>", f.vocab.Word(w)), 1)
	}
	if w := st.RightWord(); w != 0 {
		acc.Add(f.feature(f.vocab.Word(w), "</s>"), 1)
	}
	return nil
}

// EstimateCost is zero: the indicators are sparse and carry no useful
// estimate before their tails are bound.
func (f *TargetBigram) EstimateCost(r *tm.Rule) float64 { return 0 }

func (f *TargetBigram) EstimateFutureCost(hypergraph.DPState) float64 { return 0 }

func (f *TargetBigram) fire(acc Accumulator, a, b int) {
	acc.Add(f.feature(f.vocab.Word(a), f.vocab.Word(b)), 1)
}

func (f *TargetBigram) feature(a, b string) string {
	return fmt.Sprintf("%s_%s_%s", f.Name(), a, b)
}

func (f *TargetBigram) tailState(n *hypergraph.Node) *NgramState {
	if f.StateIndex() < len(n.States) {
		if st, ok := n.States[f.StateIndex()].(*NgramState); ok && st != nil {
			return st
		}
	}
	return &NgramState{}
}
