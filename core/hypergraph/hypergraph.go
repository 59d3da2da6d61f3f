// Package hypergraph holds the packed forest a chart produces: nodes keyed
// by span, label, and dynamic-programming state, and hyperedges recording
// every rule application that built them. The forest is the decoder's
// output contract; k-best extraction, feature replay, and tree rendering
// all walk it without touching the chart again.
package hypergraph

// HyperGraph is a packed forest rooted at its goal node.
type HyperGraph struct {
	// Goal is the root. Every complete derivation of the input ends here.
	Goal *Node

	// SourceLen is the number of source words the forest covers.
	SourceLen int

	nodes int
	edges int
}

// New wraps a goal node produced by the chart.
func New(goal *Node, sourceLen int) *HyperGraph {
	h := &HyperGraph{Goal: goal, SourceLen: sourceLen}
	h.count()
	return h
}

// NumNodes returns the number of distinct nodes reachable from the goal.
func (h *HyperGraph) NumNodes() int { return h.nodes }

// NumEdges returns the number of hyperedges reachable from the goal.
func (h *HyperGraph) NumEdges() int { return h.edges }

// BestScore returns the score of the best derivation in the forest.
func (h *HyperGraph) BestScore() float64 {
	if h.Goal == nil {
		return 0
	}
	return h.Goal.Score
}

func (h *HyperGraph) count() {
	h.nodes, h.edges = 0, 0
	h.Walk(Postorder, func(n *Node, _ int) {
		h.nodes++
		h.edges += len(n.InEdges)
	})
}
