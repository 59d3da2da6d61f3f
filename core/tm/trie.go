// ===== Source-side trie =====

package tm

// Trie indexes rules by their source pattern, one symbol per edge. Terminal
// edges carry positive word IDs and nonterminal edges carry negative label
// IDs, so a single child map serves both; the dot chart decides which kind
// of extension it is attempting.
type Trie struct {
	children map[int]*Trie
	rules    *RuleCollection
}

// NewTrie returns an empty trie root.
func NewTrie() *Trie {
	return &Trie{}
}

// Match follows the edge labeled sym, returning nil when the trie has no
// such extension.
func (t *Trie) Match(sym int) *Trie {
	if t.children == nil {
		return nil
	}
	return t.children[sym]
}

// HasExtensions reports whether any edge leaves this node.
func (t *Trie) HasExtensions() bool { return len(t.children) > 0 }

// Extensions returns the child map keyed by edge symbol. Callers must not
// mutate it.
func (t *Trie) Extensions() map[int]*Trie { return t.children }

// HasRules reports whether a complete source pattern ends here.
func (t *Trie) HasRules() bool {
	return t.rules != nil && t.rules.Len() > 0
}

// RuleCollection returns the rules ending at this node, or nil.
func (t *Trie) RuleCollection() *RuleCollection { return t.rules }

// insert walks the source pattern, creating nodes as needed, and returns
// the collection at the pattern's end.
func (t *Trie) insert(source []int, arity int) *RuleCollection {
	node := t
	for _, sym := range source {
		if node.children == nil {
			node.children = make(map[int]*Trie)
		}
		next := node.children[sym]
		if next == nil {
			next = &Trie{}
			node.children[sym] = next
		}
		node = next
	}
	if node.rules == nil {
		node.rules = newRuleCollection(source, arity)
	}
	return node.rules
}

// walk visits every node reachable from t, including t itself.
func (t *Trie) walk(fn func(*Trie)) {
	fn(t)
	for _, child := range t.children {
		child.walk(fn)
	}
}
