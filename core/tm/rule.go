// Package tm models the translation grammar consumed by the chart: rules,
// the source-side trie they are indexed under, sorted rule collections, and
// the Grammar interface specialized by in-memory, glue, and OOV grammars.
//
// Symbol conventions follow the interning table in core/vocab: positive IDs
// are terminals, negative IDs on a rule's source side are nonterminal
// labels, and negative values on the target side are tail references where
// value v addresses tail index -(v+1).
package tm

import (
	"fmt"
	"strings"

	"github.com/forester-mt/forester/core/vocab"
)

// OwnerID names the grammar a rule belongs to. Feature weights for dense
// rule features are resolved per owner, so rules from different grammars
// can carry dense blocks of different widths.
type OwnerID string

// Estimator scores a rule in isolation, before any tail nodes are known.
// Feature functions satisfy this with their weighted estimate; the sum over
// the ensemble orders rule lists for cube pruning.
type Estimator interface {
	EstimateCost(r *Rule) float64
}

// TailIndex decodes a target-side nonterminal reference: value v (< 0)
// addresses tail index -(v+1).
func TailIndex(v int) int {
	return -(v + 1)
}

// Rule is one synchronous grammar rule. Rules are immutable once their
// grammar has been sorted; they are shared by every hyperedge that applies
// them.
type Rule struct {
	// LHS is the left-hand-side nonterminal ID (negative).
	LHS int

	// Source holds the source pattern: terminal word IDs (positive) and
	// nonterminal label IDs (negative), in source order.
	Source []int

	// Target holds the target pattern: terminal word IDs (positive) and
	// tail references (negative, see TailIndex).
	Target []int

	// Dense holds the dense feature block, aligned with the owning
	// grammar's weight block.
	Dense []float64

	// Sparse holds named feature values, merged with ensemble features at
	// scoring time.
	Sparse map[string]float64

	// Arity is the number of nonterminals in the source pattern.
	Arity int

	// Owner identifies the grammar this rule was loaded into.
	Owner OwnerID

	estimate  float64
	estimated bool
}

// EstimateCost returns the cached ensemble estimate, computing it with the
// given models on first call. Callers racing on first touch must hold the
// owning collection's sort guard; after a grammar is sorted the value is
// read-only.
func (r *Rule) EstimateCost(models []Estimator) float64 {
	if r.estimated {
		return r.estimate
	}
	var est float64
	for _, m := range models {
		est += m.EstimateCost(r)
	}
	r.estimate = est
	r.estimated = true
	return est
}

// EstimatedCost returns the cached estimate without computing it. Valid
// only after the owning collection has been sorted.
func (r *Rule) EstimatedCost() float64 {
	return r.estimate
}

// String renders the rule in grammar-file notation using v for symbols.
func (r *Rule) String(v *vocab.Table) string {
	var sb strings.Builder
	sb.WriteString(v.Word(r.LHS))
	sb.WriteString(" |||")
	nt := 0
	for _, s := range r.Source {
		sb.WriteByte(' ')
		if vocab.IsNonterminal(s) {
			nt++
			sb.WriteString(fmt.Sprintf("%s,%d", strings.TrimSuffix(v.Word(s), "]"), nt))
			sb.WriteByte(']')
			continue
		}
		sb.WriteString(v.Word(s))
	}
	sb.WriteString(" |||")
	for _, t := range r.Target {
		sb.WriteByte(' ')
		if t < 0 {
			sb.WriteString(fmt.Sprintf("[%d]", TailIndex(t)+1))
			continue
		}
		sb.WriteString(v.Word(t))
	}
	return sb.String()
}

// TargetYield renders the target side alone, tail references tagged with
// their source nonterminal labels, e.g. "[NP,1] said [SBAR,2]".
func (r *Rule) TargetYield(v *vocab.Table) string {
	var srcNT []int
	for _, s := range r.Source {
		if vocab.IsNonterminal(s) {
			srcNT = append(srcNT, s)
		}
	}
	var sb strings.Builder
	for i, t := range r.Target {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if t < 0 {
			idx := TailIndex(t)
			sb.WriteString(strings.TrimSuffix(v.Word(srcNT[idx]), "]"))
			sb.WriteString(fmt.Sprintf(",%d]", idx+1))
			continue
		}
		sb.WriteString(v.Word(t))
	}
	return sb.String()
}

// TargetTerminalCount returns the number of terminal words the target side
// produces directly, excluding tail substitutions.
func (r *Rule) TargetTerminalCount() int {
	n := 0
	for _, t := range r.Target {
		if t > 0 {
			n++
		}
	}
	return n
}

// Inverting reports whether the target side reorders the rule's tails, i.e.
// the tail references do not appear in ascending order.
func (r *Rule) Inverting() bool {
	prev := -1
	for _, t := range r.Target {
		if t >= 0 {
			continue
		}
		idx := TailIndex(t)
		if idx < prev {
			return true
		}
		prev = idx
	}
	return false
}
