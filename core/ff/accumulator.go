// ===== Accumulators =====

package ff

import (
	"github.com/forester-mt/forester/core/tm"
)

// Accumulator receives the feature values a function fires. The chart
// scores with a ScoreAccumulator; feature replay collects names with a
// FeatureAccumulator. Separating the two keeps the hot path free of maps.
type Accumulator interface {
	// Add fires a named feature.
	Add(name string, value float64)

	// AddDense fires one dense rule feature of the given owner.
	AddDense(owner tm.OwnerID, index int, value float64)
}

// ScoreAccumulator folds fired features straight into a weighted score.
type ScoreAccumulator struct {
	weights *Weights
	Score   float64
}

// NewScoreAccumulator returns an accumulator scoring against w.
func NewScoreAccumulator(w *Weights) *ScoreAccumulator {
	return &ScoreAccumulator{weights: w}
}

func (a *ScoreAccumulator) Add(name string, value float64) {
	a.Score += a.weights.Get(name) * value
}

func (a *ScoreAccumulator) AddDense(owner tm.OwnerID, index int, value float64) {
	block := a.weights.DenseBlock(owner, index+1)
	a.Score += block[index] * value
}

// FeatureAccumulator collects fired features into a vector, dense ones
// under their owner-qualified names.
type FeatureAccumulator struct {
	Features FeatureVector
}

// NewFeatureAccumulator returns an empty collecting accumulator.
func NewFeatureAccumulator() *FeatureAccumulator {
	return &FeatureAccumulator{Features: make(FeatureVector)}
}

func (a *FeatureAccumulator) Add(name string, value float64) {
	a.Features.Add(name, value)
}

func (a *FeatureAccumulator) AddDense(owner tm.OwnerID, index int, value float64) {
	a.Features.Add(DenseName(owner, index), value)
}
