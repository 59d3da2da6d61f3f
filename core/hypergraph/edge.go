// ===== Hyperedges =====

package hypergraph

import (
	"github.com/forester-mt/forester/core/tm"
)

// Edge is one rule application: Rule rewrites the head node's label into
// the tail nodes and the rule's terminals. A nil Rule marks a final edge
// into the goal node, which simply accepts its single tail.
type Edge struct {
	Rule  *tm.Rule
	Tails []*Node

	// Transition is the score this edge contributes by itself: weighted
	// rule features, stateful transition scores, and source-path cost.
	Transition float64

	// Score is the best derivation score through this edge, Transition
	// plus the tails' Viterbi scores at construction time.
	Score float64

	// SourceCost is the lattice path cost under the edge's terminals.
	SourceCost float64
}

// NewEdge builds an edge and fixes its derivation score from the tails'
// current Viterbi scores. Tails belong to strictly smaller spans by the
// time the chart applies a rule, so those scores are final.
func NewEdge(rule *tm.Rule, tails []*Node, transition, sourceCost float64) *Edge {
	e := &Edge{
		Rule:       rule,
		Tails:      tails,
		Transition: transition,
		SourceCost: sourceCost,
	}
	e.Score = transition
	for _, t := range tails {
		e.Score += t.Score
	}
	return e
}

// Final reports whether this is a goal edge with no rule of its own.
func (e *Edge) Final() bool { return e.Rule == nil }
