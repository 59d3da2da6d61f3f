// Package kbest extracts ranked derivations from a packed forest. The
// extraction is lazy: every forest node carries a virtual best list that
// grows only as far as callers ask, so the k-best of a large forest costs
// little more than Viterbi for small k. Distinct mode keeps one
// derivation per target string in each list.
package kbest

import (
	"container/heap"
	"strconv"
	"strings"

	"github.com/forester-mt/forester/core/ff"
	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/segment"
	"github.com/forester-mt/forester/core/vocab"
)

// Extractor ranks the derivations of one forest. Best lists are memoized
// per node, so asking for rank k after rank k-1 does only the marginal
// work. An extractor serves one goroutine, like the chart that fed it.
type Extractor struct {
	forest   *hypergraph.HyperGraph
	v        *vocab.Table
	ens      *ff.Ensemble
	sent     *segment.Sentence
	distinct bool

	virtual map[*hypergraph.Node]*virtualNode
	seq     int
}

// New builds an extractor over forest. ens and sent feed feature replay
// on extracted derivations; ens may be nil when no replay is wanted.
// distinct filters every best list down to one derivation per target
// string.
func New(forest *hypergraph.HyperGraph, v *vocab.Table, ens *ff.Ensemble, sent *segment.Sentence, distinct bool) *Extractor {
	return &Extractor{
		forest:   forest,
		v:        v,
		ens:      ens,
		sent:     sent,
		distinct: distinct,
		virtual:  make(map[*hypergraph.Node]*virtualNode),
	}
}

// Derivation returns the rank-th best derivation of the goal, counting
// from 1, or nil when the forest holds fewer.
func (e *Extractor) Derivation(rank int) *Derivation {
	if e.forest == nil || e.forest.Goal == nil || rank < 1 {
		return nil
	}
	return e.kth(e.node(e.forest.Goal), rank)
}

// Derivations returns up to k goal derivations, best first.
func (e *Extractor) Derivations(k int) []*Derivation {
	var out []*Derivation
	for rank := 1; rank <= k; rank++ {
		d := e.Derivation(rank)
		if d == nil {
			break
		}
		out = append(out, d)
	}
	return out
}

// virtualNode is the materialized best list of one forest node.
type virtualNode struct {
	node   *hypergraph.Node
	nbests []*Derivation
	cand   *candidateHeap
	pushed map[string]struct{}
	yields map[string]struct{}
}

func (e *Extractor) node(n *hypergraph.Node) *virtualNode {
	vn := e.virtual[n]
	if vn == nil {
		vn = &virtualNode{node: n, pushed: make(map[string]struct{})}
		e.virtual[n] = vn
	}
	return vn
}

// kth extends vn's best list through rank and returns that entry, or nil
// once the node's derivations are exhausted. Candidates pop in
// non-increasing score order: a successor never outscores the corner it
// came from.
func (e *Extractor) kth(vn *virtualNode, rank int) *Derivation {
	if vn.cand == nil {
		e.seed(vn)
	}
	for len(vn.nbests) < rank && vn.cand.Len() > 0 {
		d := heap.Pop(vn.cand).(*Derivation)
		e.pushSuccessors(vn, d)
		if e.distinct && !e.admit(vn, d) {
			continue
		}
		vn.nbests = append(vn.nbests, d)
	}
	if rank <= len(vn.nbests) {
		return vn.nbests[rank-1]
	}
	return nil
}

// seed pushes every in-edge's all-ones corner. A corner of ones scores
// exactly the edge's Viterbi score, so nothing underneath needs
// materializing yet.
func (e *Extractor) seed(vn *virtualNode) {
	vn.cand = &candidateHeap{}
	for pos, edge := range vn.node.InEdges {
		ranks := make([]int, len(edge.Tails))
		for i := range ranks {
			ranks[i] = 1
		}
		e.push(vn, &Derivation{ex: e, node: vn.node, edge: edge, pos: pos, ranks: ranks, score: edge.Score})
	}
}

// pushSuccessors advances the popped corner one rank along each tail.
func (e *Extractor) pushSuccessors(vn *virtualNode, d *Derivation) {
	for i, t := range d.edge.Tails {
		ranks := append([]int(nil), d.ranks...)
		ranks[i]++
		key := cornerKey(d.pos, ranks)
		if _, ok := vn.pushed[key]; ok {
			continue
		}
		vn.pushed[key] = struct{}{}

		tn := e.node(t)
		next := e.kth(tn, ranks[i])
		if next == nil {
			continue
		}
		prev := e.kth(tn, d.ranks[i])
		e.pushRaw(vn, &Derivation{
			ex:    e,
			node:  vn.node,
			edge:  d.edge,
			pos:   d.pos,
			ranks: ranks,
			score: d.score - prev.score + next.score,
		})
	}
}

func (e *Extractor) push(vn *virtualNode, d *Derivation) {
	key := cornerKey(d.pos, d.ranks)
	if _, ok := vn.pushed[key]; ok {
		return
	}
	vn.pushed[key] = struct{}{}
	e.pushRaw(vn, d)
}

func (e *Extractor) pushRaw(vn *virtualNode, d *Derivation) {
	d.seq = e.seq
	e.seq++
	heap.Push(vn.cand, d)
}

// admit records d's target yield, rejecting strings the list already
// holds.
func (e *Extractor) admit(vn *virtualNode, d *Derivation) bool {
	if vn.yields == nil {
		vn.yields = make(map[string]struct{})
	}
	key := yieldKey(d.Words())
	if _, ok := vn.yields[key]; ok {
		return false
	}
	vn.yields[key] = struct{}{}
	return true
}

// cornerKey identifies one (edge, tail ranks) corner for the pushed set.
func cornerKey(pos int, ranks []int) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(pos))
	for _, r := range ranks {
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(r))
	}
	return sb.String()
}

func yieldKey(words []int) string {
	var sb strings.Builder
	for i, w := range words {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(w))
	}
	return sb.String()
}

// candidateHeap orders corners best first, push order breaking ties.
type candidateHeap []*Derivation

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	return h[i].seq < h[j].seq
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(*Derivation)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return d
}
