// ===== Viterbi extraction =====

package hypergraph

import (
	"strings"

	"github.com/forester-mt/forester/core/tm"
	"github.com/forester-mt/forester/core/vocab"
)

// ViterbiYield returns the target-side word IDs of the best derivation, in
// target order.
func ViterbiYield(h *HyperGraph) []int {
	if h.Goal == nil || h.Goal.BestEdge == nil {
		return nil
	}
	var out []int
	yieldEdge(h.Goal.BestEdge, &out)
	return out
}

// ViterbiString renders the best derivation's target side as a sentence.
func ViterbiString(h *HyperGraph, v *vocab.Table) string {
	return strings.Join(v.Words(ViterbiYield(h)), " ")
}

// ViterbiTree renders the best derivation as a bracketed parse over the
// target side, labels without their square brackets.
func ViterbiTree(h *HyperGraph, v *vocab.Table) string {
	if h.Goal == nil || h.Goal.BestEdge == nil {
		return ""
	}
	var sb strings.Builder
	treeNode(&sb, h.Goal, v)
	return sb.String()
}

func yieldEdge(e *Edge, out *[]int) {
	if e.Final() {
		for _, t := range e.Tails {
			yieldEdge(t.BestEdge, out)
		}
		return
	}
	for _, sym := range e.Rule.Target {
		if sym < 0 {
			yieldEdge(e.Tails[tm.TailIndex(sym)].BestEdge, out)
			continue
		}
		*out = append(*out, sym)
	}
}

func treeNode(sb *strings.Builder, n *Node, v *vocab.Table) {
	e := n.BestEdge
	if e.Final() {
		// Goal edges add no structure of their own.
		for i, t := range e.Tails {
			if i > 0 {
				sb.WriteByte(' ')
			}
			treeNode(sb, t, v)
		}
		return
	}
	sb.WriteByte('(')
	sb.WriteString(Label(v, n.LHS))
	for _, sym := range e.Rule.Target {
		sb.WriteByte(' ')
		if sym < 0 {
			treeNode(sb, e.Tails[tm.TailIndex(sym)], v)
			continue
		}
		sb.WriteString(v.Word(sym))
	}
	sb.WriteByte(')')
}

// Label strips the brackets from a nonterminal's vocabulary entry, so [NP]
// renders as NP in trees.
func Label(v *vocab.Table, lhs int) string {
	w := v.Word(lhs)
	if vocab.IsNonterminalLabel(w) {
		return w[1 : len(w)-1]
	}
	return w
}
