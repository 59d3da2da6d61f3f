// ===== N-gram DP state =====

package ff

import (
	"strconv"
	"strings"
)

// NgramState is the boundary-word state an n-gram feature pins on a node:
// the leftmost and rightmost target words of the node's yield, up to the
// context width. Two derivations with the same boundary words score
// identically against any surrounding words, so they recombine.
type NgramState struct {
	Left  []int
	Right []int
}

// Signature implements hypergraph.DPState.
func (s *NgramState) Signature() string {
	var sb strings.Builder
	for i, w := range s.Left {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(w))
	}
	sb.WriteByte('/')
	for i, w := range s.Right {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(w))
	}
	return sb.String()
}

// LeftWord returns the leftmost boundary word, zero when the yield is
// empty.
func (s *NgramState) LeftWord() int {
	if len(s.Left) == 0 {
		return 0
	}
	return s.Left[0]
}

// RightWord returns the rightmost boundary word, zero when the yield is
// empty.
func (s *NgramState) RightWord() int {
	if len(s.Right) == 0 {
		return 0
	}
	return s.Right[len(s.Right)-1]
}
