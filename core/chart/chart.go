// Package chart parses one input into a packed forest. It runs a CYK pass
// over the spans of the input lattice, matching every grammar's trie with
// a dot chart, and fills each span's cell with cube pruning: one best-first
// frontier per span over (rule rank, tail ranks) corners, capped by the
// pop limit. Equivalent items recombine through their DP-state signatures,
// so the forest stays packed no matter how many derivations survive.
package chart

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/forester-mt/forester/core/ff"
	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/segment"
	"github.com/forester-mt/forester/core/span"
	"github.com/forester-mt/forester/core/tm"
	"github.com/forester-mt/forester/core/vocab"
)

// ErrNoDerivation reports that no goal item covers the whole input.
var ErrNoDerivation = errors.New("chart: no derivation")

// Config carries the knobs of a single parse.
type Config struct {
	// PopLimit caps cube-pruning pops per span; zero or less pops every
	// candidate, which makes the search exhaustive.
	PopLimit int

	// GoalSymbol is the label complete analyses must carry, bracketed.
	GoalSymbol string

	// DefaultNT labels synthesized rules that have no label of their own,
	// bracketed.
	DefaultNT string

	// FuzzyMatching lets rule nonterminals bind nodes of any label, with
	// the label-substitution feature pricing mismatches.
	FuzzyMatching bool
}

func (c Config) withDefaults() Config {
	if c.GoalSymbol == "" {
		c.GoalSymbol = "[GOAL]"
	}
	if c.DefaultNT == "" {
		c.DefaultNT = "[X]"
	}
	return c
}

// Chart is the working state of one parse. Charts are single-use: build
// one per input, call Parse once.
type Chart struct {
	cfg    Config
	vocab  *vocab.Table
	ens    *ff.Ensemble
	est    []tm.Estimator
	sent   *segment.Sentence
	lat    *span.Lattice
	logger *slog.Logger

	n           int
	goalID      int
	cells       [][]*cell
	dots        []*dotChart
	constraints map[span.Span]*spanConstraint

	dotSeq   int
	stateSeq int
	pops     int
}

// New prepares a chart over the sentence's chain lattice, or over lattice
// when one is passed explicitly. Constraint annotations are compiled here,
// so malformed ones fail before any search runs.
func New(v *vocab.Table, ens *ff.Ensemble, grammars []tm.Grammar, sent *segment.Sentence, lattice *span.Lattice, cfg Config, logger *slog.Logger) (*Chart, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if lattice == nil {
		lattice = span.NewChain(v.IDs(sent.Words))
	}

	constraints, err := compileConstraints(v, sent, cfg.DefaultNT, constraintWidth(grammars))
	if err != nil {
		return nil, err
	}

	c := &Chart{
		cfg:         cfg,
		vocab:       v,
		ens:         ens,
		est:         ens.Estimators(),
		sent:        sent,
		lat:         lattice,
		logger:      logger,
		n:           lattice.Size(),
		goalID:      v.ID(cfg.GoalSymbol),
		constraints: constraints,
	}
	c.cells = make([][]*cell, c.n+1)
	for i := range c.cells {
		c.cells[i] = make([]*cell, c.n+1)
	}
	for _, g := range grammars {
		c.dots = append(c.dots, newDotChart(g, lattice, cfg.FuzzyMatching, &c.dotSeq))
	}
	return c, nil
}

// Parse fills the chart bottom-up and returns the packed forest, or
// ErrNoDerivation when nothing with the goal label covers the input.
func (c *Chart) Parse(ctx context.Context) (*hypergraph.HyperGraph, error) {
	start := time.Now()
	for width := 1; width <= c.n; width++ {
		for i := 0; i+width <= c.n; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			c.buildSpan(i, i+width)
		}
	}
	forest, err := c.finish()
	if err != nil {
		return nil, err
	}
	c.logger.Debug("chart parsed",
		"words", c.n,
		"nodes", forest.NumNodes(),
		"edges", forest.NumEdges(),
		"pops", c.pops,
		"elapsed", time.Since(start))
	return forest, nil
}

// Pops returns the cube-pruning pops spent so far, across all spans.
func (c *Chart) Pops() int { return c.pops }

func (c *Chart) buildSpan(i, j int) {
	sp := span.New(i, j)
	sc := c.constraints[sp]
	var allowed map[int]struct{}
	if sc != nil {
		allowed = sc.allowed
	}
	cl := newCell(sp, allowed)
	c.cells[i][j] = cl

	// Dot charts grow over every span, even constrained ones: a larger
	// span's match may pass through here without building anything here.
	for _, d := range c.dots {
		d.expandToSpan(i, j, func(k int) *cell { return c.cells[k][j] })
	}

	frontier := &cubeHeap{}
	visited := make(map[string]struct{})

	if !sc.hardRules() {
		for _, d := range c.dots {
			if !d.grammar.HasRuleForSpan(i, j, j-i) {
				continue
			}
			for _, dn := range d.complete(i, j) {
				c.seedDotNode(frontier, visited, dn)
			}
		}
	}

	// Constraint rules apply outside the beam: annotations must survive
	// regardless of how crowded the span is.
	if sc != nil {
		for _, r := range sc.rules {
			c.applyRule(cl, r, nil, span.SourcePath{})
		}
	}

	pops := 0
	for frontier.Len() > 0 {
		if c.cfg.PopLimit > 0 && pops >= c.cfg.PopLimit {
			break
		}
		st := heap.Pop(frontier).(*cubeState)
		pops++
		c.applyState(cl, st)
		c.pushNeighbors(frontier, visited, st)
	}
	c.pops += pops

	if !sc.hardRules() {
		c.applyUnaryRules(cl, i, j)
	}
	cl.seal()

	for _, d := range c.dots {
		d.startWithCell(i, j, cl)
	}
}

// seedDotNode pushes the best corner of one dot node's cube.
func (c *Chart) seedDotNode(frontier *cubeHeap, visited map[string]struct{}, dn *dotNode) {
	rules := dn.trie.RuleCollection().Sorted(c.est)
	if len(rules) == 0 {
		return
	}
	ranks := make([]int, 1+len(dn.tails))
	for i := range ranks {
		ranks[i] = 1
	}
	c.pushState(frontier, visited, dn, rules, ranks)
}

// pushState scores one cube corner and pushes it, once.
func (c *Chart) pushState(frontier *cubeHeap, visited map[string]struct{}, dn *dotNode, rules []*tm.Rule, ranks []int) {
	st := &cubeState{dot: dn, rules: rules, ranks: ranks}
	key := st.key()
	if _, ok := visited[key]; ok {
		return
	}
	visited[key] = struct{}{}

	if ranks[0] > len(rules) {
		return
	}
	tails := make([]*hypergraph.Node, len(dn.tails))
	for t, sn := range dn.tails {
		if ranks[1+t] > len(sn.nodes) {
			return
		}
		tails[t] = sn.nodes[ranks[1+t]-1]
	}

	rule := rules[ranks[0]-1]
	res := c.ens.Compute(ff.Context{
		Rule:       rule,
		Tails:      tails,
		Span:       span.New(dn.i, dn.j),
		SourceCost: dn.path.Cost(),
		Sentence:   c.sent,
	})
	st.tails = tails
	st.result = res
	st.priority = res.Transition + res.Future + sumScores(tails)
	st.seq = c.stateSeq
	c.stateSeq++
	heap.Push(frontier, st)
}

// pushNeighbors advances the popped corner by one along each axis.
func (c *Chart) pushNeighbors(frontier *cubeHeap, visited map[string]struct{}, st *cubeState) {
	for d := range st.ranks {
		ranks := append([]int(nil), st.ranks...)
		ranks[d]++
		c.pushState(frontier, visited, st.dot, st.rules, ranks)
	}
}

func (c *Chart) applyState(cl *cell, st *cubeState) {
	rule := st.rule()
	edge := hypergraph.NewEdge(rule, st.tails, st.result.Transition, st.dot.path.Cost())
	cl.addEdge(rule.LHS, st.result, edge)
}

// applyRule scores and adds one rule application directly, outside cube
// pruning.
func (c *Chart) applyRule(cl *cell, r *tm.Rule, tails []*hypergraph.Node, path span.SourcePath) (*hypergraph.Node, bool) {
	res := c.ens.Compute(ff.Context{
		Rule:       r,
		Tails:      tails,
		Span:       cl.span,
		SourceCost: path.Cost(),
		Sentence:   c.sent,
	})
	edge := hypergraph.NewEdge(r, tails, res.Transition, path.Cost())
	return cl.addEdge(r.LHS, res, edge)
}

// applyUnaryRules closes the cell under single-nonterminal rules. New
// nodes join the work queue; recombination bounds the closure because a
// repeat signature never queues again. A unary edge never lands on a node
// in its own tail's closure chain, so inverse pass-through rule pairs
// cannot make the forest cyclic.
func (c *Chart) applyUnaryRules(cl *cell, i, j int) {
	queue := make([]*hypergraph.Node, 0, cl.size())
	for _, n := range cl.nodes {
		queue = append(queue, n)
	}
	sort.Slice(queue, func(a, b int) bool { return cl.order[queue[a]] < cl.order[queue[b]] })

	chains := make(map[*hypergraph.Node]map[*hypergraph.Node]struct{}, len(queue))
	for _, n := range queue {
		chains[n] = map[*hypergraph.Node]struct{}{n: {}}
	}

	for idx := 0; idx < len(queue); idx++ {
		node := queue[idx]
		chain := chains[node]
		for _, d := range c.dots {
			if !d.grammar.HasRuleForSpan(i, j, j-i) {
				continue
			}
			for _, coll := range c.unaryCollections(d, node) {
				for _, r := range coll.Sorted(c.est) {
					res := c.ens.Compute(ff.Context{
						Rule:     r,
						Tails:    []*hypergraph.Node{node},
						Span:     cl.span,
						Sentence: c.sent,
					})
					if target := cl.nodes[hypergraph.Signature(r.LHS, res.States)]; target != nil {
						if _, cyclic := chain[target]; cyclic {
							continue
						}
					}
					edge := hypergraph.NewEdge(r, []*hypergraph.Node{node}, res.Transition, 0)
					added, created := cl.addEdge(r.LHS, res, edge)
					if !created || added == nil {
						continue
					}
					next := make(map[*hypergraph.Node]struct{}, len(chain)+1)
					for a := range chain {
						next[a] = struct{}{}
					}
					next[added] = struct{}{}
					chains[added] = next
					queue = append(queue, added)
				}
			}
		}
	}
}

// unaryCollections finds rule collections one nonterminal step below the
// grammar root that can consume the node.
func (c *Chart) unaryCollections(d *dotChart, node *hypergraph.Node) []*tm.RuleCollection {
	root := d.grammar.TrieRoot()
	if !c.cfg.FuzzyMatching {
		child := root.Match(node.LHS)
		if child == nil || !child.HasRules() {
			return nil
		}
		return []*tm.RuleCollection{child.RuleCollection()}
	}
	var out []*tm.RuleCollection
	for sym, child := range root.Extensions() {
		if vocab.IsNonterminal(sym) && child.HasRules() {
			out = append(out, child.RuleCollection())
		}
	}
	return out
}

// finish connects every goal-labeled node over the full span to a single
// goal node.
func (c *Chart) finish() (*hypergraph.HyperGraph, error) {
	top := c.cells[0][c.n]
	if top == nil {
		return nil, ErrNoDerivation
	}
	var goal *hypergraph.Node
	for _, node := range top.sorted {
		if node.LHS != c.goalID {
			continue
		}
		final := c.ens.ComputeFinal(node, span.New(0, c.n), c.sent)
		if goal == nil {
			goal = hypergraph.NewNode(span.New(0, c.n), c.goalID, nil, 0)
		}
		goal.AddEdge(hypergraph.NewEdge(nil, []*hypergraph.Node{node}, final, 0))
	}
	if goal == nil {
		return nil, ErrNoDerivation
	}
	return hypergraph.New(goal, c.n), nil
}

func constraintWidth(grammars []tm.Grammar) int {
	for _, g := range grammars {
		switch g.Owner() {
		case tm.GlueOwner, tm.OOVOwner, segment.ConstraintOwner:
			continue
		}
		return g.NumDenseFeatures()
	}
	return 0
}

func sumScores(tails []*hypergraph.Node) float64 {
	var s float64
	for _, t := range tails {
		s += t.Score
	}
	return s
}
