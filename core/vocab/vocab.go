// Package vocab implements the shared word-interning table. Terminal words
// are assigned positive IDs, nonterminal labels (bracketed, e.g. "[X]")
// negative IDs, so symbol class is recoverable from the sign alone. The
// table is append-only and safe for concurrent readers during decoding.
package vocab

import (
	"strings"
	"sync"
)

// IsNonterminal reports whether an interned symbol ID names a nonterminal.
func IsNonterminal(id int) bool {
	return id < 0
}

// IsNonterminalLabel reports whether a surface string is written as a
// nonterminal label.
func IsNonterminalLabel(s string) bool {
	return len(s) >= 3 && strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
}

// Table interns words and nonterminal labels. The zero value is not usable;
// construct with New.
type Table struct {
	mu       sync.RWMutex
	words    map[string]int
	terms    []string // index i holds the word with ID i+1
	nonterms []string // index i holds the label with ID -(i+1)
}

// New returns an empty interning table.
func New() *Table {
	return &Table{
		words: make(map[string]int),
	}
}

// ID interns s, returning its stable symbol ID. Bracketed labels receive
// negative nonterminal IDs, everything else positive terminal IDs.
func (t *Table) ID(s string) int {
	t.mu.RLock()
	id, ok := t.words[s]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.words[s]; ok {
		return id
	}
	if IsNonterminalLabel(s) {
		t.nonterms = append(t.nonterms, s)
		id = -len(t.nonterms)
	} else {
		t.terms = append(t.terms, s)
		id = len(t.terms)
	}
	t.words[s] = id
	return id
}

// IDs interns every member of a token sequence.
func (t *Table) IDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = t.ID(tok)
	}
	return ids
}

// Word returns the surface form of an interned ID, or the empty string for
// unknown IDs.
func (t *Table) Word(id int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch {
	case id > 0 && id <= len(t.terms):
		return t.terms[id-1]
	case id < 0 && -id <= len(t.nonterms):
		return t.nonterms[-id-1]
	default:
		return ""
	}
}

// Words maps a symbol sequence back to surface forms.
func (t *Table) Words(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = t.Word(id)
	}
	return out
}

// Has reports whether s is already interned, without interning it.
func (t *Table) Has(s string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.words[s]
	return ok
}

// Size returns the number of interned symbols, terminals and nonterminals
// combined.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.terms) + len(t.nonterms)
}
