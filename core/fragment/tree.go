// Package fragment models phrase-structure tree fragments and rebuilds
// full trees from decoder derivations. A fragment is a tree whose frontier
// may mix terminals with open nonterminal slots; terminals are written in
// double quotes so the two are distinguishable in bracket notation, e.g.
// (S (NP (DT "the") NN) VP). The rule-to-fragment table maps a rule's
// flattened target side back to the fragment it was extracted from, and
// substitution at the open slots reconstructs the syntax tree of a whole
// derivation.
package fragment

import (
	"strings"

	"github.com/forester-mt/forester/core/vocab"
)

// Tree is one fragment node: an interned label and an ordered child list.
// Trees are never mutated after construction; substitution and marker
// insertion build new nodes and share untouched subtrees.
type Tree struct {
	// Label is the node's interned symbol, unbracketed for nonterminals.
	Label int

	// Terminal marks a leaf as a surface word rather than an open slot.
	Terminal bool

	// Boundary marks nodes where separate fragments were joined.
	Boundary bool

	Children []*Tree
}

// Leaf reports whether the node has no children.
func (t *Tree) Leaf() bool { return len(t.Children) == 0 }

// PreTerminal reports whether the node dominates exactly one leaf.
func (t *Tree) PreTerminal() bool {
	return len(t.Children) == 1 && t.Children[0].Leaf()
}

// Yield returns every leaf, left to right.
func (t *Tree) Yield() []*Tree {
	var out []*Tree
	t.walkLeaves(func(n *Tree) bool { return true }, &out)
	return out
}

// Frontier returns the open nonterminal leaves, left to right. These are
// the substitution points when the fragment joins a derivation.
func (t *Tree) Frontier() []*Tree {
	var out []*Tree
	t.walkLeaves(func(n *Tree) bool { return !n.Terminal }, &out)
	return out
}

// Terminals returns the lexical leaves, left to right.
func (t *Tree) Terminals() []*Tree {
	var out []*Tree
	t.walkLeaves(func(n *Tree) bool { return n.Terminal }, &out)
	return out
}

func (t *Tree) walkLeaves(keep func(*Tree) bool, out *[]*Tree) {
	if t.Leaf() {
		if keep(t) {
			*out = append(*out, t)
		}
		return
	}
	for _, c := range t.Children {
		c.walkLeaves(keep, out)
	}
}

// Depth returns the longest path from the root to any leaf, in edges.
func (t *Tree) Depth() int {
	if t.Leaf() {
		return 0
	}
	max := 0
	for _, c := range t.Children {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// Lexicalized reports whether any frontier leaf is a terminal. Complete
// trees always are; fragments may bottom out in open slots only.
func (t *Tree) Lexicalized() bool {
	if t.Leaf() {
		return t.Terminal
	}
	for _, c := range t.Children {
		if c.Lexicalized() {
			return true
		}
	}
	return false
}

// Clone copies the whole tree.
func (t *Tree) Clone() *Tree {
	n := &Tree{Label: t.Label, Terminal: t.Terminal, Boundary: t.Boundary}
	if len(t.Children) > 0 {
		n.Children = make([]*Tree, len(t.Children))
		for i, c := range t.Children {
			n.Children[i] = c.Clone()
		}
	}
	return n
}

// Render writes the tree in bracket notation, terminals quoted, so the
// output reads back into an identical tree.
func (t *Tree) Render(v *vocab.Table) string {
	var sb strings.Builder
	t.render(&sb, v)
	return sb.String()
}

// Unquoted renders the tree with bare terminals, the form used in decoder
// output. The result is display-only: reading it back would turn every
// terminal into an open slot.
func (t *Tree) Unquoted(v *vocab.Table) string {
	return strings.ReplaceAll(t.Render(v), `"`, "")
}

func (t *Tree) render(sb *strings.Builder, v *vocab.Table) {
	if !t.Leaf() {
		sb.WriteByte('(')
	}
	if t.Terminal {
		sb.WriteByte('"')
		sb.WriteString(v.Word(t.Label))
		sb.WriteByte('"')
	} else {
		sb.WriteString(v.Word(t.Label))
	}
	if !t.Leaf() {
		for _, c := range t.Children {
			sb.WriteByte(' ')
			c.render(sb, v)
		}
		sb.WriteByte(')')
	}
}

// WithSentenceMarkers returns a copy with sos attached as a left sibling
// of the leftmost preterminal and eos as a right sibling of the rightmost,
// the shape language models expect. Trees too small to carry markers are
// returned unchanged.
func (t *Tree) WithSentenceMarkers(v *vocab.Table, sos, eos string) *Tree {
	if t.Leaf() || t.PreTerminal() {
		return t
	}
	out := t.Clone()
	out.insertMarker(&Tree{Label: v.ID(sos), Terminal: true}, false)
	out.insertMarker(&Tree{Label: v.ID(eos), Terminal: true}, true)
	return out
}

func (t *Tree) insertMarker(marker *Tree, last bool) {
	if t.Leaf() || t.PreTerminal() {
		return
	}
	idx := 0
	if last {
		idx = len(t.Children) - 1
	}
	child := t.Children[idx]
	if !child.PreTerminal() {
		child.insertMarker(marker, last)
		return
	}
	if last {
		t.Children = append(t.Children, marker)
		return
	}
	t.Children = append([]*Tree{marker}, t.Children...)
}
