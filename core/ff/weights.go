// ===== Weights =====

package ff

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/forester-mt/forester/core/lineio"
	"github.com/forester-mt/forester/core/tm"
)

// DenseName is the weight name of a grammar owner's dense feature at the
// given index, "tm_<owner>_<i>".
func DenseName(owner tm.OwnerID, index int) string {
	return fmt.Sprintf("tm_%s_%d", owner, index)
}

// Weights maps feature names to their weights. Missing names weigh zero.
// A Weights value is immutable once built; hot reloads construct a fresh
// one and swap it in, so readers never see a partial update.
type Weights struct {
	byName map[string]float64

	mu    sync.RWMutex
	dense map[tm.OwnerID][]float64
}

// NewWeights copies m into a weight table.
func NewWeights(m map[string]float64) *Weights {
	w := &Weights{
		byName: make(map[string]float64, len(m)),
		dense:  make(map[tm.OwnerID][]float64),
	}
	for name, value := range m {
		w.byName[name] = value
	}
	return w
}

// LoadWeights reads a weight table, one "name value" pair per line. Blank
// lines and '#' comments are skipped; name labels the source in errors.
func LoadWeights(name string, r io.Reader) (*Weights, error) {
	m := make(map[string]float64)
	in := lineio.NewReader(name, r)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, in.Errorf("want \"name value\", got %q", line)
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, in.Errorf("weight %s: %v", fields[0], err)
		}
		m[fields[0]] = value
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return NewWeights(m), nil
}

// Get returns the weight for name, zero when absent.
func (w *Weights) Get(name string) float64 { return w.byName[name] }

// Len returns the number of named weights.
func (w *Weights) Len() int { return len(w.byName) }

// DenseBlock returns the owner's dense weights as a slice at least width
// wide, built from the "tm_<owner>_<i>" names and cached per owner.
func (w *Weights) DenseBlock(owner tm.OwnerID, width int) []float64 {
	w.mu.RLock()
	block, ok := w.dense[owner]
	w.mu.RUnlock()
	if ok && len(block) >= width {
		return block
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	block = w.dense[owner]
	for len(block) < width {
		block = append(block, w.byName[DenseName(owner, len(block))])
	}
	w.dense[owner] = block
	return block
}

// Map returns a copy of the underlying table, for reporting.
func (w *Weights) Map() map[string]float64 {
	out := make(map[string]float64, len(w.byName))
	for name, value := range w.byName {
		out[name] = value
	}
	return out
}
