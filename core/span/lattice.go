package span

import "fmt"

// Arc is one labeled transition of the input lattice. Head and Tail are
// boundary node indices with Head < Tail; Word is the interned word ID
// carried by the transition and Cost its (log-domain) input cost, zero for
// plain sentence arcs.
type Arc struct {
	Head int
	Tail int
	Word int
	Cost float64
}

// Lattice is a finite acyclic word lattice over boundary nodes 0..Size().
// Arcs are indexed by their head node. A plain sentence is the chain
// lattice with one zero-cost arc per word.
type Lattice struct {
	size int
	arcs [][]Arc
}

// NewChain builds the linear lattice for a tokenized sentence: node i is
// the boundary before word i, every arc spans exactly one boundary step.
func NewChain(words []int) *Lattice {
	l := &Lattice{
		size: len(words),
		arcs: make([][]Arc, len(words)+1),
	}
	for i, w := range words {
		l.arcs[i] = append(l.arcs[i], Arc{Head: i, Tail: i + 1, Word: w, Cost: 0})
	}
	return l
}

// NewLattice builds a lattice from explicit arcs over size+1 boundary
// nodes. Arcs outside [0, size] or with Tail <= Head are rejected.
func NewLattice(size int, arcs []Arc) (*Lattice, error) {
	l := &Lattice{
		size: size,
		arcs: make([][]Arc, size+1),
	}
	for _, a := range arcs {
		if a.Head < 0 || a.Tail > size || a.Tail <= a.Head {
			return nil, fmt.Errorf("span: invalid lattice arc %d->%d over %d nodes", a.Head, a.Tail, size)
		}
		l.arcs[a.Head] = append(l.arcs[a.Head], a)
	}
	return l, nil
}

// Size returns the number of boundary steps (words, for a chain lattice).
func (l *Lattice) Size() int {
	return l.size
}

// ArcsFrom returns the arcs leaving boundary node i. The returned slice is
// owned by the lattice and must not be mutated.
func (l *Lattice) ArcsFrom(i int) []Arc {
	if i < 0 || i >= len(l.arcs) {
		return nil
	}
	return l.arcs[i]
}

// Words returns the word IDs along the single path of a chain lattice.
// For general lattices it returns the words of the lowest-head ordering of
// arcs, which is only meaningful for diagnostics.
func (l *Lattice) Words() []int {
	words := make([]int, 0, l.size)
	for i := 0; i < len(l.arcs); i++ {
		for _, a := range l.arcs[i] {
			words = append(words, a.Word)
		}
	}
	return words
}

// SourcePath records the input cost of the lattice arcs a rule application
// consumed. The zero value is the empty path with no cost.
type SourcePath struct {
	cost float64
}

// Extend returns the path extended by one arc.
func (p SourcePath) Extend(a Arc) SourcePath {
	return SourcePath{cost: p.cost + a.Cost}
}

// Join returns the path combining this path with a completed sub-path,
// used when a nonterminal gap is crossed.
func (p SourcePath) Join(other SourcePath) SourcePath {
	return SourcePath{cost: p.cost + other.cost}
}

// Cost returns the accumulated input cost.
func (p SourcePath) Cost() float64 {
	return p.cost
}
