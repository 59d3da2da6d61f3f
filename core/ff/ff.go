// ===== Feature function interfaces =====

package ff

import (
	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/segment"
	"github.com/forester-mt/forester/core/span"
	"github.com/forester-mt/forester/core/tm"
)

// Context is everything a feature function may inspect when scoring one
// rule application.
type Context struct {
	Rule       *tm.Rule
	Tails      []*hypergraph.Node
	Span       span.Span
	SourceCost float64
	Sentence   *segment.Sentence
}

// Function scores rule applications. Implementations also serve as rule
// estimators for grammar sorting, so EstimateCost must return a weighted
// score comparable across rules.
type Function interface {
	// Name identifies the function in logs and feature prefixes.
	Name() string

	// Compute scores one rule application, firing features into acc, and
	// returns the DP state the head node carries for this function.
	// Stateless functions return nil.
	Compute(ctx Context, acc Accumulator) hypergraph.DPState

	// ComputeFinal scores the transition from a top-level node into the
	// goal. Most functions have nothing to add here.
	ComputeFinal(tail *hypergraph.Node, sp span.Span, sent *segment.Sentence, acc Accumulator) hypergraph.DPState

	// EstimateCost scores a rule in isolation, with no tails bound. Rule
	// collections sort on the summed estimates.
	EstimateCost(r *tm.Rule) float64

	// EstimateFutureCost estimates the score a DP state still owes
	// outside its span. Only stateful functions return nonzero.
	EstimateFutureCost(state hypergraph.DPState) float64

	// Stateful reports whether the function contributes a DP state.
	Stateful() bool
}

// StatefulFunction is a Function that owns a slot in every node's state
// list. The ensemble assigns the slot at registration.
type StatefulFunction interface {
	Function
	StateIndex() int
	setStateIndex(i int)
}

// Stateless is the base for functions with no DP state. Embed it and
// implement Name, Compute, and EstimateCost.
type Stateless struct{}

func (Stateless) ComputeFinal(*hypergraph.Node, span.Span, *segment.Sentence, Accumulator) hypergraph.DPState {
	return nil
}
func (Stateless) EstimateFutureCost(hypergraph.DPState) float64 { return 0 }
func (Stateless) Stateful() bool                                { return false }

// StateBase carries the state slot for stateful functions. Embed it and
// implement the rest of StatefulFunction.
type StateBase struct {
	index int
}

func (b *StateBase) StateIndex() int     { return b.index }
func (b *StateBase) setStateIndex(i int) { b.index = i }
func (*StateBase) Stateful() bool        { return true }
