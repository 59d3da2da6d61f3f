package hypergraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forester-mt/forester/core/span"
	"github.com/forester-mt/forester/core/tm"
	"github.com/forester-mt/forester/core/vocab"
)

type fakeState string

func (f fakeState) Signature() string { return string(f) }

func mustRule(t *testing.T, v *vocab.Table, line string) *tm.Rule {
	t.Helper()
	r, err := tm.ParseRule(v, "pt", line)
	require.NoError(t, err)
	return r
}

// buildForest assembles a tiny forest for "le chat dort": an NP over [0,2),
// a VP over [2,3), an S with a monotone and a reordering edge, and a goal.
func buildForest(t *testing.T, v *vocab.Table) *HyperGraph {
	t.Helper()
	rNP := mustRule(t, v, "[NP] ||| le chat ||| the cat ||| 1")
	rVP := mustRule(t, v, "[VP] ||| dort ||| sleeps ||| 1")
	rMono := mustRule(t, v, "[S] ||| [NP,1] [VP,2] ||| [NP,1] [VP,2] ||| 0.5")
	rSwap := mustRule(t, v, "[S] ||| [NP,1] [VP,2] ||| [VP,2] [NP,1] ||| 0.2")

	np := NewNode(span.New(0, 2), v.ID("[NP]"), nil, 0)
	np.AddEdge(NewEdge(rNP, nil, 1, 0))
	vp := NewNode(span.New(2, 3), v.ID("[VP]"), nil, 0)
	vp.AddEdge(NewEdge(rVP, nil, 1, 0))

	s := NewNode(span.New(0, 3), v.ID("[S]"), nil, 0)
	s.AddEdge(NewEdge(rSwap, []*Node{np, vp}, 0.2, 0))
	s.AddEdge(NewEdge(rMono, []*Node{np, vp}, 0.5, 0))

	goal := NewNode(span.New(0, 3), v.ID("[GOAL]"), nil, 0)
	goal.AddEdge(NewEdge(nil, []*Node{s}, 0, 0))

	return New(goal, 3)
}

func TestForestCounts(t *testing.T) {
	v := vocab.New()
	h := buildForest(t, v)
	assert.Equal(t, 4, h.NumNodes())
	assert.Equal(t, 5, h.NumEdges())
	assert.InDelta(t, 2.5, h.BestScore(), 1e-9)
}

func TestAddEdgePromotesBest(t *testing.T) {
	v := vocab.New()
	h := buildForest(t, v)
	s := h.Goal.BestEdge.Tails[0]
	require.Len(t, s.InEdges, 2)
	assert.Same(t, s.InEdges[1], s.BestEdge, "later, better edge wins")
	assert.InDelta(t, 2.5, s.Score, 1e-9)
}

func TestViterbiExtraction(t *testing.T) {
	v := vocab.New()
	h := buildForest(t, v)
	assert.Equal(t, "the cat sleeps", ViterbiString(h, v))
	assert.Equal(t, "(S (NP the cat) (VP sleeps))", ViterbiTree(h, v))
}

func TestViterbiFollowsReorderingEdge(t *testing.T) {
	v := vocab.New()
	h := buildForest(t, v)
	s := h.Goal.BestEdge.Tails[0]
	// Force the swap edge to be best.
	s.BestEdge = s.InEdges[0]
	assert.Equal(t, "sleeps the cat", ViterbiString(h, v))
	assert.Equal(t, "(S (VP sleeps) (NP the cat))", ViterbiTree(h, v))
}

func TestEmptyForest(t *testing.T) {
	h := &HyperGraph{}
	assert.Nil(t, ViterbiYield(h))
	assert.Equal(t, "", ViterbiString(h, vocab.New()))
	assert.Equal(t, 0.0, h.BestScore())
}

func TestWalkVisitsEachNodeOnce(t *testing.T) {
	v := vocab.New()
	h := buildForest(t, v)

	visits := make(map[*Node]int)
	tails := make(map[int]int)
	h.Walk(Postorder, func(n *Node, tailIndex int) {
		visits[n]++
		tails[tailIndex]++
	})
	assert.Len(t, visits, 4)
	for n, c := range visits {
		assert.Equal(t, 1, c, "node %v visited once", n.Span)
	}
	// np arrives at tail 0, vp at tail 1, s at tail 0, goal at tail 0.
	assert.Equal(t, 3, tails[0])
	assert.Equal(t, 1, tails[1])
}

func TestWalkBestSkipsLoserEdges(t *testing.T) {
	v := vocab.New()
	h := buildForest(t, v)
	var n int
	h.WalkBest(Preorder, func(*Node, int) { n++ })
	assert.Equal(t, 4, n)
}

func TestWalkSpansFirstNodeWins(t *testing.T) {
	v := vocab.New()
	h := buildForest(t, v)

	got := make(map[span.Span]int)
	h.WalkSpans(func(sp span.Span, n *Node) {
		got[sp] = n.LHS
	})
	require.Len(t, got, 3)
	// The goal and S share [0,3); preorder from the goal reaches the goal
	// first, so it is the span's representative.
	assert.Equal(t, v.ID("[GOAL]"), got[span.New(0, 3)])
	assert.Equal(t, v.ID("[NP]"), got[span.New(0, 2)])
	assert.Equal(t, v.ID("[VP]"), got[span.New(2, 3)])
}

func TestSignatureMergesEqualStates(t *testing.T) {
	v := vocab.New()
	lhs := v.ID("[X]")
	a := NewNode(span.New(0, 1), lhs, []DPState{fakeState("the cat")}, 0)
	b := NewNode(span.New(0, 1), lhs, []DPState{fakeState("the cat")}, 0)
	c := NewNode(span.New(0, 1), lhs, []DPState{fakeState("a cat")}, 0)
	d := NewNode(span.New(0, 1), v.ID("[NP]"), []DPState{fakeState("the cat")}, 0)

	assert.Equal(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Signature(), c.Signature())
	assert.NotEqual(t, a.Signature(), d.Signature())
}

func TestNodeEstScore(t *testing.T) {
	n := NewNode(span.New(0, 1), -1, nil, -0.5)
	n.AddEdge(&Edge{Score: 2})
	assert.InDelta(t, 1.5, n.EstScore(), 1e-9)
}

func TestFinalEdge(t *testing.T) {
	assert.True(t, (&Edge{}).Final())
	assert.False(t, (&Edge{Rule: &tm.Rule{}}).Final())
}
