// ===== Chart cells =====

package chart

import (
	"sort"

	"github.com/forester-mt/forester/core/ff"
	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/span"
)

// superNode groups a cell's nodes under one nonterminal label, the unit
// the dot chart binds when a rule crosses a nonterminal gap.
type superNode struct {
	lhs   int
	nodes []*hypergraph.Node
}

// cell holds every node built over one span, keyed by recombination
// signature. Once the span is finished the cell is sealed: its node lists
// are sorted best-first and larger spans read them as cube dimensions.
type cell struct {
	span  span.Span
	nodes map[string]*hypergraph.Node
	order map[*hypergraph.Node]int
	super map[int]*superNode

	// allowed restricts node labels when a hard LHS constraint pins the
	// span; nil admits everything.
	allowed map[int]struct{}

	sorted []*hypergraph.Node
	sealed bool
}

func newCell(sp span.Span, allowed map[int]struct{}) *cell {
	return &cell{
		span:    sp,
		nodes:   make(map[string]*hypergraph.Node),
		order:   make(map[*hypergraph.Node]int),
		super:   make(map[int]*superNode),
		allowed: allowed,
	}
}

// addEdge merges one scored rule application into the cell. The head node
// is looked up by signature and created on first sight; the edge always
// attaches to the surviving node. Returns the node and whether it is new,
// or (nil, false) when the label is constrained away.
func (c *cell) addEdge(lhs int, res ff.Result, edge *hypergraph.Edge) (*hypergraph.Node, bool) {
	if c.allowed != nil {
		if _, ok := c.allowed[lhs]; !ok {
			return nil, false
		}
	}
	sig := hypergraph.Signature(lhs, res.States)
	n := c.nodes[sig]
	created := false
	if n == nil {
		n = hypergraph.NewNode(c.span, lhs, res.States, res.Future)
		c.nodes[sig] = n
		c.order[n] = len(c.order)
		sn := c.super[lhs]
		if sn == nil {
			sn = &superNode{lhs: lhs}
			c.super[lhs] = sn
		}
		sn.nodes = append(sn.nodes, n)
		created = true
	}
	n.AddEdge(edge)
	return n, created
}

// seal freezes the cell: nodes and supernode lists are ordered by pruning
// score, ties broken by insertion order so decoding is deterministic.
func (c *cell) seal() {
	if c.sealed {
		return
	}
	c.sorted = make([]*hypergraph.Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		c.sorted = append(c.sorted, n)
	}
	c.sortNodes(c.sorted)
	for _, sn := range c.super {
		c.sortNodes(sn.nodes)
	}
	c.sealed = true
}

func (c *cell) sortNodes(nodes []*hypergraph.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.EstScore() != b.EstScore() {
			return a.EstScore() > b.EstScore()
		}
		return c.order[a] < c.order[b]
	})
}

// superNode returns the cell's label group for lhs, nil when absent.
func (c *cell) superNode(lhs int) *superNode { return c.super[lhs] }

func (c *cell) allSuperNodes() []*superNode {
	out := make([]*superNode, 0, len(c.super))
	for _, sn := range c.super {
		out = append(out, sn)
	}
	// Stable order for deterministic dot expansion.
	sort.Slice(out, func(i, j int) bool { return out[i].lhs > out[j].lhs })
	return out
}

// size returns the number of distinct nodes in the cell.
func (c *cell) size() int { return len(c.nodes) }
