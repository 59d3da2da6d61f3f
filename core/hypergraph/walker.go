// ===== Forest walkers =====

package hypergraph

import (
	"github.com/forester-mt/forester/core/span"
)

// Traversal selects when a walker sees a node relative to its descendants.
type Traversal int

const (
	Preorder Traversal = iota
	Postorder
)

// WalkerFunc receives each visited node once, with the tail position the
// node occupied in the edge that first reached it (0 for the goal).
type WalkerFunc func(n *Node, tailIndex int)

// Walk visits every node reachable from the goal exactly once, across all
// edges of the forest, in the given order.
func (h *HyperGraph) Walk(order Traversal, fn WalkerFunc) {
	if h.Goal == nil {
		return
	}
	visited := make(map[*Node]struct{})
	var rec func(n *Node, tailIndex int)
	rec = func(n *Node, tailIndex int) {
		if _, ok := visited[n]; ok {
			return
		}
		visited[n] = struct{}{}
		if order == Preorder {
			fn(n, tailIndex)
		}
		for _, e := range n.InEdges {
			for i, t := range e.Tails {
				rec(t, i)
			}
		}
		if order == Postorder {
			fn(n, tailIndex)
		}
	}
	rec(h.Goal, 0)
}

// WalkBest visits the nodes of the single best derivation, following
// BestEdge only, in the given order.
func (h *HyperGraph) WalkBest(order Traversal, fn WalkerFunc) {
	if h.Goal == nil {
		return
	}
	var rec func(n *Node, tailIndex int)
	rec = func(n *Node, tailIndex int) {
		if order == Preorder {
			fn(n, tailIndex)
		}
		if n.BestEdge != nil {
			for i, t := range n.BestEdge.Tails {
				rec(t, i)
			}
		}
		if order == Postorder {
			fn(n, tailIndex)
		}
	}
	rec(h.Goal, 0)
}

// WalkSpans applies fn to the first node discovered over each distinct
// span. Later nodes over a span already seen are skipped, so fn sees one
// representative per span; which node that is depends on walk order and
// is not specified.
func (h *HyperGraph) WalkSpans(fn func(sp span.Span, n *Node)) {
	seen := make(map[span.Span]struct{})
	h.Walk(Preorder, func(n *Node, _ int) {
		if _, ok := seen[n.Span]; ok {
			return
		}
		seen[n.Span] = struct{}{}
		fn(n.Span, n)
	})
}
