// ===== Constraint spans =====

package segment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forester-mt/forester/core/tm"
	"github.com/forester-mt/forester/core/vocab"
)

// ErrFeatureWidthMismatch reports a constraint rule whose feature vector
// does not match the dense width constraint rules are scored under.
var ErrFeatureWidthMismatch = errors.New("segment: constraint feature width mismatch")

// ConstraintOwner is the grammar owner compiled constraint rules carry.
const ConstraintOwner tm.OwnerID = "custom"

// ConstraintKind distinguishes the three ways a span can be pinned.
type ConstraintKind int

const (
	// KindRule pins a full lexical rule: left-hand side, source, target,
	// and features.
	KindRule ConstraintKind = iota

	// KindLHS pins the nonterminal label every derivation over the span
	// must carry.
	KindLHS

	// KindRHS pins the translation of the span to a fixed string.
	KindRHS
)

func (k ConstraintKind) String() string {
	switch k {
	case KindRule:
		return "rule"
	case KindLHS:
		return "lhs"
	case KindRHS:
		return "rhs"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Constraint is one annotation inside a constraint span. Which fields are
// meaningful depends on Kind: KindRule uses all of them, KindLHS only LHS,
// KindRHS only Target.
type Constraint struct {
	Kind     ConstraintKind
	LHS      string
	Source   string
	Target   string
	Features []float64
}

// ConstraintSpan pins the analysis of the half-open word span [Start, End).
// A hard span suppresses the regular grammars over exactly that span; a
// soft span only adds its rules as extra candidates.
type ConstraintSpan struct {
	Start, End int
	Hard       bool
	Rules      []Constraint
}

// Span constructs a constraint span.
func Span(start, end int, hard bool, rules ...Constraint) ConstraintSpan {
	return ConstraintSpan{Start: start, End: end, Hard: hard, Rules: rules}
}

// CompileRules converts the span's KindRule and KindRHS constraints into
// grammar rules over spanWords, the source words the span covers. Compiled
// rules are lexical, carry ConstraintOwner, and KindRule features must be
// exactly denseWidth wide. defaultNT labels KindRHS rules, which carry no
// features of their own.
func (cs *ConstraintSpan) CompileRules(v *vocab.Table, spanWords []string, defaultNT string, denseWidth int) ([]*tm.Rule, error) {
	var rules []*tm.Rule
	for _, c := range cs.Rules {
		switch c.Kind {
		case KindRule:
			r, err := compileRuleConstraint(v, c, spanWords, denseWidth)
			if err != nil {
				return nil, err
			}
			rules = append(rules, r)
		case KindRHS:
			target := strings.Fields(c.Target)
			if len(target) == 0 {
				return nil, fmt.Errorf("segment: rhs constraint over [%d,%d) has empty target", cs.Start, cs.End)
			}
			rules = append(rules, &tm.Rule{
				LHS:    v.ID(defaultNT),
				Source: v.IDs(spanWords),
				Target: v.IDs(target),
				Dense:  make([]float64, denseWidth),
				Owner:  ConstraintOwner,
			})
		case KindLHS:
			// Label constraints filter nodes, they do not produce rules.
		}
	}
	return rules, nil
}

// AllowedLabels returns the set of nonterminal IDs the span's KindLHS
// constraints admit, or nil when the span carries none.
func (cs *ConstraintSpan) AllowedLabels(v *vocab.Table) map[int]struct{} {
	var labels map[int]struct{}
	for _, c := range cs.Rules {
		if c.Kind != KindLHS {
			continue
		}
		if labels == nil {
			labels = make(map[int]struct{})
		}
		labels[v.ID(c.LHS)] = struct{}{}
	}
	return labels
}

func compileRuleConstraint(v *vocab.Table, c Constraint, spanWords []string, denseWidth int) (*tm.Rule, error) {
	if !vocab.IsNonterminalLabel(c.LHS) {
		return nil, fmt.Errorf("segment: constraint lhs %q is not a nonterminal", c.LHS)
	}
	source := strings.Fields(c.Source)
	target := strings.Fields(c.Target)
	if len(source) == 0 || len(target) == 0 {
		return nil, fmt.Errorf("segment: rule constraint needs both sides, got %q -> %q", c.Source, c.Target)
	}
	for _, tok := range append(append([]string{}, source...), target...) {
		if vocab.IsNonterminalLabel(tok) {
			return nil, fmt.Errorf("segment: rule constraints must be lexical, got %q", tok)
		}
	}
	if !equalTokens(source, spanWords) {
		return nil, fmt.Errorf("segment: constraint source %q does not cover span words %q",
			c.Source, strings.Join(spanWords, " "))
	}
	if len(c.Features) != denseWidth {
		return nil, fmt.Errorf("%w: rule %q -> %q carries %d features, grammar expects %d",
			ErrFeatureWidthMismatch, c.Source, c.Target, len(c.Features), denseWidth)
	}
	return &tm.Rule{
		LHS:    v.ID(c.LHS),
		Source: v.IDs(source),
		Target: v.IDs(target),
		Dense:  append([]float64(nil), c.Features...),
		Owner:  ConstraintOwner,
	}, nil
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
