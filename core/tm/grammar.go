// ===== Grammar interface =====

package tm

// Grammar is the contract between a rule store and the chart. The chart
// never sees rules directly; it walks the trie, asks whether the grammar
// applies to a span, and reads sorted collections at match nodes.
type Grammar interface {
	// TrieRoot returns the root of the source-side trie.
	TrieRoot() *Trie

	// Sort estimates and orders every rule collection with the given
	// models. Safe to call more than once; later calls after a successful
	// sort are cheap no-ops until rules change.
	Sort(models []Estimator)

	// IsSorted reports whether a whole-grammar sort is current.
	IsSorted() bool

	// HasRuleForSpan reports whether this grammar may build items over the
	// span [start, end) whose shortest source path has the given length.
	HasRuleForSpan(start, end, pathLength int) bool

	// NumRules returns the number of rules loaded.
	NumRules() int

	// NumDenseFeatures returns the width of the dense feature block this
	// grammar's rules carry.
	NumDenseFeatures() int

	// Owner identifies the grammar for weight lookup.
	Owner() OwnerID

	// MaxSourceLen returns the longest source pattern loaded.
	MaxSourceLen() int

	// AddRule inserts a rule into the trie.
	AddRule(r *Rule)

	// AddOOVRules synthesizes rules for an unknown word. Grammars that do
	// not own unknown-word handling implement this as a no-op.
	AddOOVRules(word int, models []Estimator)
}

func sortTrie(root *Trie, models []Estimator) {
	root.walk(func(t *Trie) {
		if t.rules != nil {
			t.rules.Sorted(models)
		}
	})
}
