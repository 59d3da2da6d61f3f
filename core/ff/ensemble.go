// ===== Ensemble =====

package ff

import (
	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/segment"
	"github.com/forester-mt/forester/core/span"
	"github.com/forester-mt/forester/core/tm"
)

// Ensemble runs a fixed list of feature functions as one scorer. It
// assigns each stateful function a slot in the node state list at
// construction, so state layout is identical across every node of a
// decode.
type Ensemble struct {
	weights   *Weights
	functions []Function
	numStates int
}

// NewEnsemble registers fns in order. Registration order fixes both state
// slots and replay order, so keep it stable for a given configuration.
func NewEnsemble(w *Weights, fns ...Function) *Ensemble {
	e := &Ensemble{weights: w, functions: fns}
	for _, f := range fns {
		if sf, ok := f.(StatefulFunction); ok {
			sf.setStateIndex(e.numStates)
			e.numStates++
		}
	}
	return e
}

// Weights returns the weight table the ensemble scores with.
func (e *Ensemble) Weights() *Weights { return e.weights }

// Functions returns the registered functions in order.
func (e *Ensemble) Functions() []Function { return e.functions }

// NumStates returns how many DP state slots every node carries.
func (e *Ensemble) NumStates() int { return e.numStates }

// Estimators adapts the functions for grammar sorting.
func (e *Ensemble) Estimators() []tm.Estimator {
	out := make([]tm.Estimator, len(e.functions))
	for i, f := range e.functions {
		out[i] = f
	}
	return out
}

// Result is the scored outcome of one rule application.
type Result struct {
	// States holds one DP state per stateful function, slot-indexed.
	States []hypergraph.DPState

	// Transition is the weighted score the application adds on top of its
	// tails.
	Transition float64

	// Future estimates the score the new states still owe outside the
	// span; it orders beams but never enters derivation scores.
	Future float64
}

// Compute scores one rule application across the whole ensemble.
func (e *Ensemble) Compute(ctx Context) Result {
	acc := NewScoreAccumulator(e.weights)
	states := make([]hypergraph.DPState, e.numStates)
	var future float64
	for _, f := range e.functions {
		st := f.Compute(ctx, acc)
		if sf, ok := f.(StatefulFunction); ok {
			states[sf.StateIndex()] = st
			future += f.EstimateFutureCost(st)
		}
	}
	return Result{States: states, Transition: acc.Score, Future: future}
}

// ComputeFinal scores the transition from a top-level node into the goal.
func (e *Ensemble) ComputeFinal(tail *hypergraph.Node, sp span.Span, sent *segment.Sentence) float64 {
	acc := NewScoreAccumulator(e.weights)
	for _, f := range e.functions {
		f.ComputeFinal(tail, sp, sent, acc)
	}
	return acc.Score
}

// ReplayEdge refires one forest edge's features into acc. Feature values
// depend only on the rule and the tails' DP states, so a replay over the
// packed forest reproduces exactly what the chart scored.
func (e *Ensemble) ReplayEdge(acc Accumulator, edge *hypergraph.Edge, headSpan span.Span, sent *segment.Sentence) {
	if edge.Final() {
		if len(edge.Tails) == 0 {
			return
		}
		for _, f := range e.functions {
			f.ComputeFinal(edge.Tails[0], headSpan, sent, acc)
		}
		return
	}
	ctx := Context{
		Rule:       edge.Rule,
		Tails:      edge.Tails,
		Span:       headSpan,
		SourceCost: edge.SourceCost,
		Sentence:   sent,
	}
	for _, f := range e.functions {
		f.Compute(ctx, acc)
	}
}

// ViterbiFeatures replays the best derivation and returns its feature
// vector.
func (e *Ensemble) ViterbiFeatures(h *hypergraph.HyperGraph, sent *segment.Sentence) FeatureVector {
	acc := NewFeatureAccumulator()
	if h.Goal == nil {
		return acc.Features
	}
	var rec func(n *hypergraph.Node)
	rec = func(n *hypergraph.Node) {
		edge := n.BestEdge
		if edge == nil {
			return
		}
		e.ReplayEdge(acc, edge, n.Span, sent)
		for _, t := range edge.Tails {
			rec(t)
		}
	}
	rec(h.Goal)
	return acc.Features
}
