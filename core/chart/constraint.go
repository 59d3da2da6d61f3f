// ===== Span constraints =====

package chart

import (
	"github.com/forester-mt/forester/core/segment"
	"github.com/forester-mt/forester/core/span"
	"github.com/forester-mt/forester/core/tm"
	"github.com/forester-mt/forester/core/vocab"
)

// spanConstraint is the compiled form of every annotation pinning one
// span: the rules to apply there, the labels a hard LHS pin admits, and
// whether the span excludes the regular grammars.
type spanConstraint struct {
	hard    bool
	rules   []*tm.Rule
	allowed map[int]struct{}
}

// hardRules reports whether the span admits only its own rules.
func (sc *spanConstraint) hardRules() bool {
	return sc != nil && sc.hard && len(sc.rules) > 0
}

// compileConstraints indexes a sentence's constraint spans for chart
// lookup. Rule-shaped constraints are compiled against denseWidth; spans
// annotated more than once merge.
func compileConstraints(v *vocab.Table, sent *segment.Sentence, defaultNT string, denseWidth int) (map[span.Span]*spanConstraint, error) {
	if sent == nil || len(sent.Constraints) == 0 {
		return nil, nil
	}
	out := make(map[span.Span]*spanConstraint)
	for i := range sent.Constraints {
		cs := &sent.Constraints[i]
		sp := span.New(cs.Start, cs.End)
		rules, err := cs.CompileRules(v, sent.SpanWords(cs.Start, cs.End), defaultNT, denseWidth)
		if err != nil {
			return nil, err
		}
		sc := out[sp]
		if sc == nil {
			sc = &spanConstraint{}
			out[sp] = sc
		}
		sc.hard = sc.hard || cs.Hard
		sc.rules = append(sc.rules, rules...)
		if cs.Hard {
			for lhs := range cs.AllowedLabels(v) {
				if sc.allowed == nil {
					sc.allowed = make(map[int]struct{})
				}
				sc.allowed[lhs] = struct{}{}
			}
		}
	}
	return out, nil
}
