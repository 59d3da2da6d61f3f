// ===== Dot chart =====

package chart

import (
	"github.com/forester-mt/forester/core/span"
	"github.com/forester-mt/forester/core/tm"
	"github.com/forester-mt/forester/core/vocab"
)

// dotNode is a partial match of one grammar's trie against the span
// [i, j): the trie node reached so far, the supernodes bound to the
// nonterminal gaps already crossed, and the lattice cost of the terminals
// consumed. depth counts consumed source symbols, terminals and gaps both.
type dotNode struct {
	id    int
	trie  *tm.Trie
	i, j  int
	depth int
	tails []*superNode
	path  span.SourcePath
}

// dotChart tracks the partial matches of one grammar over every span.
// Terminal extensions follow lattice arcs; nonterminal extensions bind the
// supernodes of completed inner cells.
type dotChart struct {
	grammar tm.Grammar
	lattice *span.Lattice
	fuzzy   bool

	// cells[i][j] holds the dot nodes spanning [i, j).
	cells  [][][]*dotNode
	nextID *int
}

func newDotChart(g tm.Grammar, l *span.Lattice, fuzzy bool, nextID *int) *dotChart {
	n := l.Size()
	d := &dotChart{
		grammar: g,
		lattice: l,
		fuzzy:   fuzzy,
		cells:   make([][][]*dotNode, n+1),
		nextID:  nextID,
	}
	for i := range d.cells {
		d.cells[i] = make([][]*dotNode, n+1)
	}
	// Seed an empty match at every boundary node.
	for i := 0; i <= n; i++ {
		d.add(i, i, g.TrieRoot(), 0, nil, span.SourcePath{})
	}
	return d
}

func (d *dotChart) add(i, j int, trie *tm.Trie, depth int, tails []*superNode, path span.SourcePath) {
	dn := &dotNode{id: *d.nextID, trie: trie, i: i, j: j, depth: depth, tails: tails, path: path}
	*d.nextID++
	d.cells[i][j] = append(d.cells[i][j], dn)
}

// canGrow bounds matches by the grammar's longest source pattern.
func (d *dotChart) canGrow(dn *dotNode) bool {
	max := d.grammar.MaxSourceLen()
	return max <= 0 || dn.depth < max
}

// expandToSpan grows dot nodes whose right edge reaches j for the span
// [i, j): first across lattice arcs ending at j, then across the
// supernodes of every completed proper suffix cell [k, j).
func (d *dotChart) expandToSpan(i, j int, suffix func(k int) *cell) {
	// Terminal shifts: a dot node over [i, k) plus an arc k -> j.
	for k := i; k < j; k++ {
		for _, arc := range d.lattice.ArcsFrom(k) {
			if arc.Tail != j {
				continue
			}
			for _, dn := range d.cells[i][k] {
				if !d.canGrow(dn) {
					continue
				}
				next := dn.trie.Match(arc.Word)
				if next == nil {
					continue
				}
				d.add(i, j, next, dn.depth+1, dn.tails, dn.path.Extend(arc))
			}
		}
	}

	// Nonterminal shifts: a dot node over [i, k) plus a completed cell
	// [k, j). k stays strictly inside the span; same-span nodes are the
	// unary pass's business.
	for k := i + 1; k < j; k++ {
		inner := suffix(k)
		if inner == nil || inner.size() == 0 {
			continue
		}
		for _, dn := range d.cells[i][k] {
			if !d.canGrow(dn) {
				continue
			}
			d.extendOverCell(dn, inner, j)
		}
	}
}

func (d *dotChart) extendOverCell(dn *dotNode, inner *cell, j int) {
	if d.fuzzy {
		// Soft label matching tries every nonterminal edge against every
		// label group; the label-substitution feature prices the liberty.
		for sym, next := range dn.trie.Extensions() {
			if !vocab.IsNonterminal(sym) {
				continue
			}
			for _, sn := range inner.allSuperNodes() {
				d.add(dn.i, j, next, dn.depth+1, appendTail(dn.tails, sn), dn.path)
			}
		}
		return
	}
	for _, sn := range inner.allSuperNodes() {
		next := dn.trie.Match(sn.lhs)
		if next == nil {
			continue
		}
		d.add(dn.i, j, next, dn.depth+1, appendTail(dn.tails, sn), dn.path)
	}
}

// startWithCell extends the seed at i over the sealed cell [i, j), so
// patterns opening with a nonterminal that spans [i, j) exist for larger
// spans to continue.
func (d *dotChart) startWithCell(i, j int, sealed *cell) {
	for _, dn := range d.cells[i][i] {
		if !d.canGrow(dn) {
			continue
		}
		d.extendOverCell(dn, sealed, j)
	}
}

// complete returns the dot nodes over [i, j) whose trie node ends a rule.
func (d *dotChart) complete(i, j int) []*dotNode {
	var out []*dotNode
	for _, dn := range d.cells[i][j] {
		if dn.trie.HasRules() {
			out = append(out, dn)
		}
	}
	return out
}

func appendTail(tails []*superNode, sn *superNode) []*superNode {
	out := make([]*superNode, len(tails)+1)
	copy(out, tails)
	out[len(tails)] = sn
	return out
}
