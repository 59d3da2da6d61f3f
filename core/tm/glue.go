// ===== Glue grammar =====

package tm

import (
	"fmt"

	"github.com/forester-mt/forester/core/vocab"
)

// GlueOwner is the owner the glue grammar loads its rules under.
const GlueOwner OwnerID = "glue"

// GlueGrammar stitches adjacent derivations together left to right when no
// regular rule covers a span. It carries exactly two rules,
//
//	[GOAL] ||| [X,1] ||| [X,1] ||| 0
//	[GOAL] ||| [GOAL,1] [X,2] ||| [GOAL,1] [X,2] ||| -1
//
// with the goal and default nonterminal labels substituted, and only ever
// applies to spans anchored at the left edge of the input.
type GlueGrammar struct {
	*MemoryGrammar
}

// NewGlueGrammar builds the glue grammar for the given goal symbol and
// default nonterminal, both in bracketed label form.
func NewGlueGrammar(v *vocab.Table, goal, defaultNT string) (*GlueGrammar, error) {
	g := &GlueGrammar{MemoryGrammar: NewMemoryGrammar(v, GlueOwner, 0)}
	lines := []string{
		fmt.Sprintf("%s ||| %s ||| %s ||| 0", goal, coindexed(defaultNT, 1), coindexed(defaultNT, 1)),
		fmt.Sprintf("%s ||| %s %s ||| %s %s ||| -1",
			goal, coindexed(goal, 1), coindexed(defaultNT, 2), coindexed(goal, 1), coindexed(defaultNT, 2)),
	}
	for _, line := range lines {
		r, err := ParseRule(v, GlueOwner, line)
		if err != nil {
			return nil, err
		}
		g.AddRule(r)
	}
	return g, nil
}

// HasRuleForSpan restricts glue application to spans starting at the input
// edge, which keeps monotone concatenation from flooding interior cells.
func (g *GlueGrammar) HasRuleForSpan(start, end, pathLength int) bool {
	return start == 0
}

func coindexed(label string, idx int) string {
	return fmt.Sprintf("%s,%d]", label[:len(label)-1], idx)
}
