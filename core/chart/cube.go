// ===== Cube pruning frontier =====

package chart

import (
	"strconv"
	"strings"

	"github.com/forester-mt/forester/core/ff"
	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/tm"
)

// cubeState is one corner of a cube: a dot node, a rule rank, and one rank
// per bound supernode. The state is fully scored at push time so the heap
// orders candidates by their true priority, Viterbi score plus outside
// estimate.
type cubeState struct {
	priority float64
	seq      int

	dot   *dotNode
	rules []*tm.Rule
	// ranks are 1-based: ranks[0] indexes rules, ranks[1+t] indexes the
	// sorted nodes of tail supernode t.
	ranks  []int
	tails  []*hypergraph.Node
	result ff.Result
}

// key identifies the corner for the visited set.
func (s *cubeState) key() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(s.dot.id))
	for _, r := range s.ranks {
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(r))
	}
	return sb.String()
}

// rule returns the rule the state applies.
func (s *cubeState) rule() *tm.Rule { return s.rules[s.ranks[0]-1] }

// cubeHeap orders states best-first, insertion order breaking ties so
// equal-scored corners pop deterministically.
type cubeHeap []*cubeState

func (h cubeHeap) Len() int { return len(h) }

func (h cubeHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h cubeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cubeHeap) Push(x any) { *h = append(*h, x.(*cubeState)) }

func (h *cubeHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return s
}
