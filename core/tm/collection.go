// ===== Rule collections =====

package tm

import (
	"sort"
	"sync"
	"sync/atomic"
)

// RuleCollection holds every rule sharing one source pattern. Collections
// sort lazily on first touch: cube pruning only ever needs the best few
// rules of the spans it actually visits, so whole-grammar sorting is
// deferred until a caller asks for the ordered view.
type RuleCollection struct {
	source []int
	arity  int

	mu     sync.Mutex
	sorted atomic.Bool
	rules  []*Rule
}

func newRuleCollection(source []int, arity int) *RuleCollection {
	return &RuleCollection{source: source, arity: arity}
}

// Source returns the shared source pattern.
func (c *RuleCollection) Source() []int { return c.source }

// Arity returns the number of nonterminals in the source pattern.
func (c *RuleCollection) Arity() int { return c.arity }

// Len returns the number of rules collected.
func (c *RuleCollection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rules)
}

// Add appends a rule. Adding to an already-sorted collection clears the
// sorted flag so the next ordered read re-sorts.
func (c *RuleCollection) Add(r *Rule) {
	c.mu.Lock()
	c.rules = append(c.rules, r)
	c.sorted.Store(false)
	c.mu.Unlock()
}

// Rules returns the rules in load order, without sorting.
func (c *RuleCollection) Rules() []*Rule {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rules
}

// Sorted returns the rules ordered best-first by their ensemble estimate.
// The sort runs at most once per generation of the collection; concurrent
// first readers serialize on the guard, and readers arriving after the flag
// is set never block.
func (c *RuleCollection) Sorted(models []Estimator) []*Rule {
	if c.sorted.Load() {
		return c.rules
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sorted.Load() {
		return c.rules
	}
	for _, r := range c.rules {
		r.estimated = false
		r.EstimateCost(models)
	}
	sort.SliceStable(c.rules, func(i, j int) bool {
		return c.rules[i].estimate > c.rules[j].estimate
	})
	c.sorted.Store(true)
	return c.rules
}

// IsSorted reports whether the ordered view is current.
func (c *RuleCollection) IsSorted() bool { return c.sorted.Load() }

// Invalidate clears the sorted flag; the next ordered read re-estimates
// every rule, picking up changed weights.
func (c *RuleCollection) Invalidate() { c.sorted.Store(false) }
