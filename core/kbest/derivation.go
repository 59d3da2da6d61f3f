// ===== Derivations =====

package kbest

import (
	"strings"

	"github.com/forester-mt/forester/core/ff"
	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/tm"
)

// Derivation is one ranked way of deriving a forest node. The yield, tree
// and feature artifacts are rebuilt on demand by walking the chosen edges
// through the extractor's best lists.
type Derivation struct {
	ex    *Extractor
	node  *hypergraph.Node
	edge  *hypergraph.Edge
	pos   int
	ranks []int
	score float64
	seq   int
}

// Score returns the derivation's full weighted score.
func (d *Derivation) Score() float64 { return d.score }

// Edge returns the hyperedge taken at the derivation's root.
func (d *Derivation) Edge() *hypergraph.Edge { return d.edge }

// Tail returns the derivation chosen under the i-th tail.
func (d *Derivation) Tail(i int) hypergraph.Derivation { return d.child(i) }

func (d *Derivation) child(i int) *Derivation {
	return d.ex.kth(d.ex.node(d.edge.Tails[i]), d.ranks[i])
}

// Words returns the derivation's target yield as symbol IDs, in target
// order.
func (d *Derivation) Words() []int {
	var out []int
	d.appendWords(&out)
	return out
}

func (d *Derivation) appendWords(out *[]int) {
	if d.edge.Final() {
		for i := range d.edge.Tails {
			d.child(i).appendWords(out)
		}
		return
	}
	for _, sym := range d.edge.Rule.Target {
		if sym < 0 {
			d.child(tm.TailIndex(sym)).appendWords(out)
			continue
		}
		*out = append(*out, sym)
	}
}

// String renders the yield as a sentence.
func (d *Derivation) String() string {
	return strings.Join(d.ex.v.Words(d.Words()), " ")
}

// Tree renders the derivation as a bracketed parse over the target side,
// labels without their square brackets.
func (d *Derivation) Tree() string {
	var sb strings.Builder
	d.tree(&sb)
	return sb.String()
}

func (d *Derivation) tree(sb *strings.Builder) {
	if d.edge.Final() {
		// Goal edges add no structure of their own.
		for i := range d.edge.Tails {
			if i > 0 {
				sb.WriteByte(' ')
			}
			d.child(i).tree(sb)
		}
		return
	}
	sb.WriteByte('(')
	sb.WriteString(hypergraph.Label(d.ex.v, d.node.LHS))
	for _, sym := range d.edge.Rule.Target {
		sb.WriteByte(' ')
		if sym < 0 {
			d.child(tm.TailIndex(sym)).tree(sb)
			continue
		}
		sb.WriteString(d.ex.v.Word(sym))
	}
	sb.WriteByte(')')
}

// Features replays the derivation edge by edge and returns its named
// feature vector. Returns nil when the extractor has no ensemble.
func (d *Derivation) Features() ff.FeatureVector {
	if d.ex.ens == nil {
		return nil
	}
	acc := ff.NewFeatureAccumulator()
	d.replay(acc)
	return acc.Features
}

func (d *Derivation) replay(acc ff.Accumulator) {
	d.ex.ens.ReplayEdge(acc, d.edge, d.node.Span, d.ex.sent)
	for i := range d.edge.Tails {
		d.child(i).replay(acc)
	}
}
