// ===== Nodes and DP states =====

package hypergraph

import (
	"strconv"
	"strings"

	"github.com/forester-mt/forester/core/span"
)

// DPState is the decoding state a stateful feature function pins on a
// node: whatever part of a derivation's history the feature still needs to
// score future combinations. Nodes over the same span and label whose
// states all agree are recombined into one.
type DPState interface {
	// Signature returns a stable key for equivalence. Two states with
	// equal signatures must score identically against any continuation.
	Signature() string
}

// Signature builds the recombination key for a label and state list. The
// span is implicit: cells key their node tables with it separately.
func Signature(lhs int, states []DPState) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(lhs))
	for _, s := range states {
		sb.WriteByte('|')
		sb.WriteString(s.Signature())
	}
	return sb.String()
}

// Node is one item in the forest: a nonterminal label over a span,
// carrying one DP state per stateful feature and every hyperedge that
// derived it.
type Node struct {
	Span   span.Span
	LHS    int
	States []DPState

	// InEdges lists every way this node was built. The slice order is the
	// discovery order of the chart.
	InEdges []*Edge

	// BestEdge is the incoming edge with the highest derivation score.
	BestEdge *Edge

	// Score is the Viterbi (best inside) score.
	Score float64

	// Future estimates the cost the node's states still owe, outside the
	// span. It depends only on States, so recombination keeps it intact.
	Future float64

	sig string
}

// NewNode creates a node with no edges yet.
func NewNode(sp span.Span, lhs int, states []DPState, future float64) *Node {
	return &Node{
		Span:   sp,
		LHS:    lhs,
		States: states,
		Future: future,
		sig:    Signature(lhs, states),
	}
}

// Signature returns the recombination key computed at construction.
func (n *Node) Signature() string { return n.sig }

// AddEdge attaches an incoming edge, promoting it to BestEdge when it
// improves on the current Viterbi score.
func (n *Node) AddEdge(e *Edge) {
	n.InEdges = append(n.InEdges, e)
	if n.BestEdge == nil || e.Score > n.Score {
		n.BestEdge = e
		n.Score = e.Score
	}
}

// EstScore is the pruning score: best inside score plus the outside
// estimate. Cells order their beams with it.
func (n *Node) EstScore() float64 { return n.Score + n.Future }
