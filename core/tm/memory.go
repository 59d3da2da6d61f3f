// ===== In-memory grammar =====

package tm

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/forester-mt/forester/core/lineio"
	"github.com/forester-mt/forester/core/vocab"
)

// ErrBadRule reports a malformed grammar line.
var ErrBadRule = errors.New("tm: malformed rule")

const fieldSep = " ||| "

// MemoryGrammar keeps its whole rule set in a source-side trie. It is the
// store behind regular translation grammars and the base for the glue and
// OOV specializations.
type MemoryGrammar struct {
	vocab     *vocab.Table
	owner     OwnerID
	spanLimit int

	root         *Trie
	numRules     int
	numDense     int
	maxSourceLen int

	mu     sync.Mutex
	sorted atomic.Bool
}

// NewMemoryGrammar returns an empty grammar. A spanLimit of zero or less
// disables span gating.
func NewMemoryGrammar(v *vocab.Table, owner OwnerID, spanLimit int) *MemoryGrammar {
	return &MemoryGrammar{
		vocab:     v,
		owner:     owner,
		spanLimit: spanLimit,
		root:      NewTrie(),
	}
}

// LoadText reads rules in pipe-delimited text form, one per line. Blank
// lines and lines starting with '#' are skipped. name labels the source in
// error messages.
func (g *MemoryGrammar) LoadText(name string, r io.Reader) error {
	in := lineio.NewReader(name, r)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, err := ParseRule(g.vocab, g.owner, line)
		if err != nil {
			return in.Errorf("%w", err)
		}
		g.AddRule(rule)
	}
	return in.Err()
}

// TrieRoot implements Grammar.
func (g *MemoryGrammar) TrieRoot() *Trie { return g.root }

// Sort implements Grammar by walking every collection in the trie.
func (g *MemoryGrammar) Sort(models []Estimator) {
	if g.sorted.Load() {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sorted.Load() {
		return
	}
	sortTrie(g.root, models)
	g.sorted.Store(true)
}

// IsSorted implements Grammar.
func (g *MemoryGrammar) IsSorted() bool { return g.sorted.Load() }

// Invalidate marks every collection unsorted. Call when the models change;
// the caller must quiesce readers first, since the following re-sort
// reorders collections in place.
func (g *MemoryGrammar) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.root.walk(func(t *Trie) {
		if t.rules != nil {
			t.rules.Invalidate()
		}
	})
	g.sorted.Store(false)
}

// HasRuleForSpan implements Grammar: spans whose source path exceeds the
// span limit are rejected, everything else is fair game.
func (g *MemoryGrammar) HasRuleForSpan(start, end, pathLength int) bool {
	if g.spanLimit <= 0 {
		return true
	}
	return pathLength <= g.spanLimit
}

// NumRules implements Grammar.
func (g *MemoryGrammar) NumRules() int { return g.numRules }

// NumDenseFeatures implements Grammar.
func (g *MemoryGrammar) NumDenseFeatures() int { return g.numDense }

// Owner implements Grammar.
func (g *MemoryGrammar) Owner() OwnerID { return g.owner }

// MaxSourceLen implements Grammar.
func (g *MemoryGrammar) MaxSourceLen() int { return g.maxSourceLen }

// AddRule implements Grammar. Adding rules invalidates a previous sort.
func (g *MemoryGrammar) AddRule(r *Rule) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.root.insert(r.Source, r.Arity).Add(r)
	g.numRules++
	if len(r.Source) > g.maxSourceLen {
		g.maxSourceLen = len(r.Source)
	}
	if len(r.Dense) > g.numDense {
		g.numDense = len(r.Dense)
	}
	g.sorted.Store(false)
}

// AddOOVRules implements Grammar as a no-op; see OOVGrammar.
func (g *MemoryGrammar) AddOOVRules(word int, models []Estimator) {}

// ParseRule parses one pipe-delimited grammar line:
//
//	[LHS] ||| source side ||| target side ||| features [||| alignment]
//
// Source nonterminals may carry a coindex ("[X,1]"), which is stripped;
// target nonterminals must carry one, naming the source nonterminal they
// substitute. Features are whitespace separated, either bare dense values
// in rule order or name=value sparse pairs. A trailing alignment field is
// accepted and ignored.
func ParseRule(v *vocab.Table, owner OwnerID, line string) (*Rule, error) {
	fields := strings.Split(line, fieldSep)
	if len(fields) < 3 || len(fields) > 5 {
		return nil, fmt.Errorf("%w: expected 3 to 5 fields, got %d", ErrBadRule, len(fields))
	}

	lhs := strings.TrimSpace(fields[0])
	if !vocab.IsNonterminalLabel(lhs) {
		return nil, fmt.Errorf("%w: left-hand side %q is not a nonterminal", ErrBadRule, lhs)
	}

	r := &Rule{
		LHS:   v.ID(lhs),
		Owner: owner,
	}

	for _, tok := range strings.Fields(fields[1]) {
		label, _, isNT := splitCoindex(tok)
		if isNT {
			r.Source = append(r.Source, v.ID(label))
			r.Arity++
			continue
		}
		r.Source = append(r.Source, v.ID(tok))
	}

	for _, tok := range strings.Fields(fields[2]) {
		label, idx, isNT := splitCoindex(tok)
		if !isNT {
			r.Target = append(r.Target, v.ID(tok))
			continue
		}
		if idx < 1 || idx > r.Arity {
			return nil, fmt.Errorf("%w: target nonterminal %q references source nonterminal %d of %d",
				ErrBadRule, label, idx, r.Arity)
		}
		r.Target = append(r.Target, -idx)
	}

	if len(fields) > 3 {
		for _, tok := range strings.Fields(fields[3]) {
			if name, val, ok := strings.Cut(tok, "="); ok {
				f, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: sparse feature %q: %v", ErrBadRule, tok, err)
				}
				if r.Sparse == nil {
					r.Sparse = make(map[string]float64)
				}
				r.Sparse[name] = f
				continue
			}
			f, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: dense feature %q: %v", ErrBadRule, tok, err)
			}
			r.Dense = append(r.Dense, f)
		}
	}

	return r, nil
}

// splitCoindex takes a token like "[X,1]" and returns the bare label
// ("[X]"), the coindex (0 when absent), and whether the token is a
// nonterminal at all.
func splitCoindex(tok string) (label string, idx int, isNT bool) {
	if !vocab.IsNonterminalLabel(tok) {
		return "", 0, false
	}
	inner := tok[1 : len(tok)-1]
	name, num, ok := strings.Cut(inner, ",")
	if !ok {
		return tok, 0, true
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return tok, 0, true
	}
	return "[" + name + "]", n, true
}
