// Package ff scores rule applications. A feature function inspects one
// hyperedge worth of context (the rule, the tail nodes, the span) and
// writes named feature values to an accumulator; stateful functions also
// return the DP state the new node must carry. The Ensemble runs every
// registered function, assigns state indices, and is the single scoring
// authority for the chart, k-best extraction, and feature replay.
package ff

import (
	"fmt"
	"sort"
	"strings"
)

// FeatureVector collects named feature values. Dense rule features appear
// under their owner-qualified names (see DenseName).
type FeatureVector map[string]float64

// Add accumulates value under name.
func (fv FeatureVector) Add(name string, value float64) {
	fv[name] += value
}

// Merge adds every entry of other into fv.
func (fv FeatureVector) Merge(other FeatureVector) {
	for name, value := range other {
		fv[name] += value
	}
}

// Dot scores the vector against weights.
func (fv FeatureVector) Dot(w *Weights) float64 {
	var score float64
	for name, value := range fv {
		score += w.Get(name) * value
	}
	return score
}

// Names returns the feature names in sorted order.
func (fv FeatureVector) Names() []string {
	names := make([]string, 0, len(fv))
	for name := range fv {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders "name=value" pairs sorted by name, the format the decoder
// prints in its feature column.
func (fv FeatureVector) String() string {
	var sb strings.Builder
	for i, name := range fv.Names() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%.3f", name, fv[name])
	}
	return sb.String()
}
