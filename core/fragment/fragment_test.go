package fragment

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forester-mt/forester/core/chart"
	"github.com/forester-mt/forester/core/ff"
	"github.com/forester-mt/forester/core/hypergraph"
	"github.com/forester-mt/forester/core/kbest"
	"github.com/forester-mt/forester/core/segment"
	"github.com/forester-mt/forester/core/tm"
	"github.com/forester-mt/forester/core/vocab"
)

func mustRule(t *testing.T, v *vocab.Table, line string) *tm.Rule {
	t.Helper()
	r, err := tm.ParseRule(v, "pt", line)
	require.NoError(t, err)
	return r
}

func mustParse(t *testing.T, v *vocab.Table, s string) *Tree {
	t.Helper()
	tree, err := Parse(v, s)
	require.NoError(t, err)
	return tree
}

type fakeDeriv struct {
	edge  *hypergraph.Edge
	tails []*fakeDeriv
}

func (d *fakeDeriv) Edge() *hypergraph.Edge { return d.edge }

func (d *fakeDeriv) Tail(i int) hypergraph.Derivation { return d.tails[i] }

func TestParseRenderRoundTrip(t *testing.T) {
	v := vocab.New()
	for _, s := range []string{
		`(S (NP (DT "the") NN) VP)`,
		`(NN "mat")`,
		`(S NP (VP (VBD "said") SBAR))`,
		`NP`,
	} {
		tree, err := Parse(v, s)
		require.NoError(t, err, s)
		assert.Equal(t, s, tree.Render(v))
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	v := vocab.New()
	for _, s := range []string{
		"",
		"(S (NP",
		")",
		"(S) extra",
		`("x" y)`,
		`(S "")`,
		`(S "unterminated)`,
	} {
		_, err := Parse(v, s)
		assert.ErrorIs(t, err, ErrMalformedTree, "input %q", s)
	}
}

func TestYieldsAndShape(t *testing.T) {
	v := vocab.New()
	tree := mustParse(t, v, `(S (NP (DT "the") NN) VP)`)

	yield := tree.Yield()
	require.Len(t, yield, 3)
	assert.Equal(t, "the", v.Word(yield[0].Label))
	assert.True(t, yield[0].Terminal)

	frontier := tree.Frontier()
	require.Len(t, frontier, 2)
	assert.Equal(t, "NN", v.Word(frontier[0].Label))
	assert.Equal(t, "VP", v.Word(frontier[1].Label))

	terms := tree.Terminals()
	require.Len(t, terms, 1)
	assert.Equal(t, "the", v.Word(terms[0].Label))

	assert.Equal(t, 3, tree.Depth())
	assert.True(t, tree.Lexicalized())
	assert.True(t, tree.Children[0].Children[0].PreTerminal())

	bare := mustParse(t, v, `(S NP VP)`)
	assert.Equal(t, 1, bare.Depth())
	assert.False(t, bare.Lexicalized())
}

func TestSentenceMarkers(t *testing.T) {
	v := vocab.New()
	src := `(TOP (S (NP (DT "the") (NN "boy")) (VP (VB "ate"))))`
	tree := mustParse(t, v, src)

	marked := tree.WithSentenceMarkers(v, "<s>", "</s>")
	want := `(TOP (S (NP "<s>" (DT "the") (NN "boy")) (VP (VB "ate") "</s>")))`
	assert.Equal(t, want, marked.Render(v))
	// The source tree is untouched.
	assert.Equal(t, src, tree.Render(v))
}

func TestLoadSkipsJunkLines(t *testing.T) {
	v := vocab.New()
	f, err := NewFragments(v, nil)
	require.NoError(t, err)
	defer f.Close()

	mapping := strings.Join([]string{
		`(S NP (VP (VBD "said") SBAR)) ||| [NP,1] said [SBAR,2]`,
		"# extracted 2026-03-14",
		"",
		"not a fragment ||| x",
		`(S ||| broken ||| y`,
		`(NP (DT "the") (NN "cat")) ||| the cat`,
	}, "\n")
	require.NoError(t, f.Load("map", strings.NewReader(mapping)))
	assert.Equal(t, 2, f.Len())

	rule := mustRule(t, v, "[S] ||| [NP,1] a dit [SBAR,2] ||| [NP,1] said [SBAR,2] ||| 1")
	tree, ok := f.Fragment(rule)
	require.True(t, ok)
	assert.Equal(t, `(S NP (VP (VBD "said") SBAR))`, tree.Render(v))

	missing := mustRule(t, v, "[X] ||| le ||| the ||| 1")
	_, ok = f.Fragment(missing)
	assert.False(t, ok)
}

func TestAddRejectsBadTree(t *testing.T) {
	v := vocab.New()
	f, err := NewFragments(v, nil)
	require.NoError(t, err)
	defer f.Close()
	assert.ErrorIs(t, f.Add("(S", "x"), ErrMalformedTree)
}

// reorderingFixture wires the derivation for "le chat dort" under a rule
// that swaps its tails, by hand so the tree builder is tested in
// isolation.
func reorderingFixture(t *testing.T, v *vocab.Table) (*fakeDeriv, *tm.Rule) {
	t.Helper()
	np := mustRule(t, v, "[NP] ||| le chat ||| the cat ||| 1")
	vp := mustRule(t, v, "[VP] ||| dort ||| sleeps ||| 1")
	s := mustRule(t, v, "[S] ||| [NP,1] [VP,2] ||| [VP,2] [NP,1] ||| 1")

	dNP := &fakeDeriv{edge: hypergraph.NewEdge(np, nil, 0, 0)}
	dVP := &fakeDeriv{edge: hypergraph.NewEdge(vp, nil, 0, 0)}
	dS := &fakeDeriv{edge: hypergraph.NewEdge(s, nil, 0, 0), tails: []*fakeDeriv{dNP, dVP}}
	goal := &fakeDeriv{edge: hypergraph.NewEdge(nil, nil, 0, 0), tails: []*fakeDeriv{dS}}
	return goal, s
}

func TestBuildTreeSwapsSlots(t *testing.T) {
	v := vocab.New()
	f, err := NewFragments(v, nil)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Add(`(NP (DT "the") (NN "cat"))`, "the cat"))
	require.NoError(t, f.Add(`(VP (VBZ "sleeps"))`, "sleeps"))
	require.NoError(t, f.Add(`(S VP NP)`, "[VP,2] [NP,1]"))

	goal, sRule := reorderingFixture(t, v)
	tree, err := f.BuildTree(goal, 0)
	require.NoError(t, err)
	assert.Equal(t, `(S (VP (VBZ "sleeps")) (NP (DT "the") (NN "cat")))`, tree.Render(v))

	// Splice points are marked, and the shared fragments stay pristine.
	assert.True(t, tree.Children[0].Boundary)
	assert.True(t, tree.Children[1].Boundary)
	frag, ok := f.Fragment(sRule)
	require.True(t, ok)
	assert.Equal(t, "(S VP NP)", frag.Render(v))
}

func TestBuildTreeSynthesizesMissingFragments(t *testing.T) {
	v := vocab.New()
	f, err := NewFragments(v, nil)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Add(`(NP (DT "the") (NN "cat"))`, "the cat"))
	require.NoError(t, f.Add(`(VP (VBZ "sleeps"))`, "sleeps"))

	goal, _ := reorderingFixture(t, v)
	tree, err := f.BuildTree(goal, 0)
	require.NoError(t, err)
	// The swap rule has no fragment; its flat stand-in still reorders.
	assert.Equal(t, `(S (VP (VBZ "sleeps")) (NP (DT "the") (NN "cat")))`, tree.Render(v))
}

func TestBuildTreeDepthLimit(t *testing.T) {
	v := vocab.New()
	f, err := NewFragments(v, nil)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Add(`(NP (DT "the") (NN "cat"))`, "the cat"))
	require.NoError(t, f.Add(`(VP (VBZ "sleeps"))`, "sleeps"))
	require.NoError(t, f.Add(`(S VP NP)`, "[VP,2] [NP,1]"))
	require.NoError(t, f.Add(`(ROOT S)`, "[S,1]"))

	inner, _ := reorderingFixture(t, v)
	root := mustRule(t, v, "[ROOT] ||| [S,1] ||| [S,1] ||| 1")
	dRoot := &fakeDeriv{edge: hypergraph.NewEdge(root, nil, 0, 0), tails: inner.tails}
	goal := &fakeDeriv{edge: hypergraph.NewEdge(nil, nil, 0, 0), tails: []*fakeDeriv{dRoot}}

	shallow, err := f.BuildTree(goal, 1)
	require.NoError(t, err)
	assert.Equal(t, "(ROOT (S VP NP))", shallow.Render(v))

	full, err := f.BuildTree(goal, 0)
	require.NoError(t, err)
	assert.Equal(t, `(ROOT (S (VP (VBZ "sleeps")) (NP (DT "the") (NN "cat"))))`, full.Render(v))
}

func TestBuildTreeFrontierMismatch(t *testing.T) {
	v := vocab.New()
	f, err := NewFragments(v, nil)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Add(`(S VP)`, "[VP,2] [NP,1]"))

	goal, _ := reorderingFixture(t, v)
	_, err = f.BuildTree(goal, 0)
	assert.ErrorIs(t, err, ErrFrontierMismatch)
}

func TestBuildTreeFromExtractedDerivation(t *testing.T) {
	v := vocab.New()
	w := ff.NewWeights(map[string]float64{"tm_pt_0": 1})
	ens := ff.NewEnsemble(w, ff.NewPhraseModel(w, "pt", 4))
	g := tm.NewMemoryGrammar(v, "pt", 0)
	require.NoError(t, g.LoadText("test", strings.NewReader(strings.Join([]string{
		"[NP] ||| le chat ||| the cat ||| 1",
		"[VP] ||| dort ||| sleeps ||| 1",
		"[S] ||| [NP,1] [VP,2] ||| [VP,2] [NP,1] ||| 1",
	}, "\n"))))

	sent := segment.New(0, "le chat dort")
	c, err := chart.New(v, ens, []tm.Grammar{g}, sent, nil, chart.Config{GoalSymbol: "[S]"}, nil)
	require.NoError(t, err)
	forest, err := c.Parse(context.Background())
	require.NoError(t, err)

	f, err := NewFragments(v, nil)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Add(`(NP (DT "the") (NN "cat"))`, "the cat"))
	require.NoError(t, f.Add(`(VP (VBZ "sleeps"))`, "sleeps"))
	require.NoError(t, f.Add(`(S VP NP)`, "[VP,2] [NP,1]"))

	best := kbest.New(forest, v, ens, sent, false).Derivation(1)
	require.NotNil(t, best)
	tree, err := f.BuildTree(best, 0)
	require.NoError(t, err)
	assert.Equal(t, `(S (VP (VBZ "sleeps")) (NP (DT "the") (NN "cat")))`, tree.Render(v))
	assert.Equal(t, "sleeps the cat", best.String())
}
