// ===== Rule-to-fragment table =====

package fragment

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dgraph-io/ristretto"

	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/lineio"
	"github.com/forester-mt/forester/core/tm"
	"github.com/forester-mt/forester/core/vocab"
)

// ErrFrontierMismatch reports a fragment whose open slots cannot host its
// rule's tails.
var ErrFrontierMismatch = errors.New("fragment: frontier does not cover rule arity")

const (
	cacheNumCounters = 1e5
	cacheMaxCost     = 1e7 // bytes of fragment text held parsed
	cacheBufferItems = 64
)

// Fragments maps the flattened target side of grammar rules back to the
// syntax fragments they were extracted from. Fragment text is stored raw
// and parsed on demand through a ristretto cache, so hot rules pay the
// bracket reader once. Parsed trees are shared and never mutated, which
// makes the table safe for concurrent decoders.
type Fragments struct {
	v       *vocab.Table
	byYield map[string]string
	cache   *ristretto.Cache
	logger  *slog.Logger
}

// NewFragments builds an empty table.
func NewFragments(v *vocab.Table, logger *slog.Logger) (*Fragments, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Fragments{
		v:       v,
		byYield: make(map[string]string),
		cache:   cache,
		logger:  logger,
	}, nil
}

// Close releases the parse cache.
func (f *Fragments) Close() { f.cache.Close() }

// Len returns the number of mappings loaded.
func (f *Fragments) Len() int { return len(f.byYield) }

// Load reads mapping lines of the form "fragment ||| target yield".
// Malformed lines are logged and skipped; grammar extraction tooling
// leaves occasional junk in these files. name labels the source in
// errors.
func (f *Fragments) Load(name string, r io.Reader) error {
	in := lineio.NewReader(name, r)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, " ||| ")
		if len(fields) != 2 || !strings.HasPrefix(fields[0], "(") {
			f.logger.Warn("skipping malformed fragment mapping", "source", name, "line", in.Lineno())
			continue
		}
		if err := f.Add(fields[0], fields[1]); err != nil {
			f.logger.Warn("skipping unparseable fragment", "source", name, "line", in.Lineno(), "error", err)
		}
	}
	return in.Err()
}

// Add registers one fragment against a flattened target yield. The text
// must parse before it is accepted.
func (f *Fragments) Add(text, yield string) error {
	text = strings.TrimSpace(text)
	if _, err := Parse(f.v, text); err != nil {
		return err
	}
	f.byYield[strings.TrimSpace(yield)] = text
	return nil
}

// Fragment returns the parsed fragment for the rule's target side, or
// false when none was registered.
func (f *Fragments) Fragment(r *tm.Rule) (*Tree, bool) {
	yield := r.TargetYield(f.v)
	text, ok := f.byYield[yield]
	if !ok {
		return nil, false
	}
	if cached, hit := f.cache.Get(yield); hit {
		if t, ok := cached.(*Tree); ok {
			return t, true
		}
	}
	t, err := Parse(f.v, text)
	if err != nil {
		// Add validated the text, so only a corrupted table lands here.
		return nil, false
	}
	f.cache.Set(yield, t, int64(len(text)))
	return t, true
}

// BuildTree reconstructs the syntax tree of a derivation by substituting
// each tail's tree at its matching frontier slot. Rules with no registered
// fragment contribute a flat one-level tree. maxDepth bounds how deep
// substitution descends; zero or less means no bound.
func (f *Fragments) BuildTree(d hypergraph.Derivation, maxDepth int) (*Tree, error) {
	depth := maxDepth
	if depth <= 0 {
		depth = -1
	}
	return f.build(d, depth)
}

func (f *Fragments) build(d hypergraph.Derivation, depth int) (*Tree, error) {
	edge := d.Edge()
	if edge.Final() {
		// Goal edges carry no rule and add no structure.
		return f.build(d.Tail(0), depth)
	}
	rule := edge.Rule
	frag, ok := f.Fragment(rule)
	if !ok {
		frag = f.flatTree(rule)
	}
	if rule.Arity == 0 || depth == 0 {
		return frag, nil
	}

	tails := targetTailOrder(rule)
	frontier := frag.Frontier()
	if len(frontier) < len(tails) {
		return nil, fmt.Errorf("%w: %q has %d slots for %d tails",
			ErrFrontierMismatch, frag.Render(f.v), len(frontier), len(tails))
	}

	next := depth
	if next > 0 {
		next--
	}
	subs := make(map[*Tree]*Tree, len(tails))
	for j, src := range tails {
		sub, err := f.build(d.Tail(src), next)
		if err != nil {
			return nil, err
		}
		// The slot keeps its own label and takes over the subtree's
		// children, the splice point marked as a fragment boundary.
		slot := frontier[j]
		subs[slot] = &Tree{Label: slot.Label, Boundary: true, Children: sub.Children}
	}
	return substitute(frag, subs), nil
}

// flatTree synthesizes a one-level tree for rules without fragments: the
// rule's label over its target side.
func (f *Fragments) flatTree(r *tm.Rule) *Tree {
	var srcNT []int
	for _, s := range r.Source {
		if vocab.IsNonterminal(s) {
			srcNT = append(srcNT, s)
		}
	}
	root := &Tree{Label: f.v.ID(hypergraph.Label(f.v, r.LHS))}
	for _, t := range r.Target {
		if t < 0 {
			lbl := hypergraph.Label(f.v, srcNT[tm.TailIndex(t)])
			root.Children = append(root.Children, &Tree{Label: f.v.ID(lbl)})
			continue
		}
		root.Children = append(root.Children, &Tree{Label: t, Terminal: true})
	}
	return root
}

// targetTailOrder lists tail indices in target order, the order fragment
// slots appear on the frontier.
func targetTailOrder(r *tm.Rule) []int {
	var out []int
	for _, t := range r.Target {
		if t < 0 {
			out = append(out, tm.TailIndex(t))
		}
	}
	return out
}

// substitute rebuilds t with subs applied, sharing every untouched
// subtree.
func substitute(t *Tree, subs map[*Tree]*Tree) *Tree {
	if r, ok := subs[t]; ok {
		return r
	}
	if t.Leaf() {
		return t
	}
	children := make([]*Tree, len(t.Children))
	changed := false
	for i, c := range t.Children {
		children[i] = substitute(c, subs)
		if children[i] != c {
			changed = true
		}
	}
	if !changed {
		return t
	}
	return &Tree{Label: t.Label, Terminal: t.Terminal, Boundary: t.Boundary, Children: children}
}
