package decoder

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forester-mt/forester/core/chart"
	"github.com/forester-mt/forester/core/config"
	"github.com/forester-mt/forester/core/segment"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type fixture struct {
	d       *Decoder
	weights string
}

// newFixture builds a decoder over a three-rule grammar. With the given
// weights, "le chat dort" decodes to "the cat sleeps" at score 1.
func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	dir := t.TempDir()
	grammar := writeFile(t, dir, "grammar.txt", strings.Join([]string{
		"[X] ||| le chat ||| the cat ||| 1",
		"[X] ||| dort ||| sleeps ||| 1",
		"[X] ||| dort ||| rests ||| 0.5",
	}, "\n"))
	weights := writeFile(t, dir, "weights.txt",
		"tm_pt_0 1\ntm_glue_0 1\nPassThrough 5\n")

	cfg := config.DefaultConfig()
	cfg.Grammars = []config.Grammar{{Path: grammar, Owner: "pt"}}
	cfg.Weights = weights
	if mutate != nil {
		mutate(cfg)
	}
	d, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return &fixture{d: d, weights: weights}
}

func TestDecodeProducesBestTranslation(t *testing.T) {
	fx := newFixture(t, nil)

	tr, err := fx.d.Decode(context.Background(), segment.New(0, "le chat dort"))
	require.NoError(t, err)

	assert.Equal(t, "the cat sleeps", tr.Best())
	assert.InDelta(t, 1.0, tr.Score, 1e-9)
	assert.False(t, tr.Passthrough)
	assert.NotEmpty(t, tr.RequestID)
	require.Len(t, tr.Hypotheses, 1)
	assert.InDelta(t, 1.0, tr.Hypotheses[0].Score, 1e-9)
}

func TestTopNListsAlternatives(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) {
		c.TopN = 5
		c.Distinct = true
	})

	tr, err := fx.d.Decode(context.Background(), segment.New(0, "le chat dort"))
	require.NoError(t, err)

	require.Len(t, tr.Hypotheses, 2)
	assert.Equal(t, "the cat sleeps", tr.Hypotheses[0].Text)
	assert.Equal(t, "the cat rests", tr.Hypotheses[1].Text)
	assert.InDelta(t, 0.5, tr.Hypotheses[1].Score, 1e-9)
}

func TestOOVAndGlueTranslateUnknownInput(t *testing.T) {
	cfg := config.DefaultConfig()
	d, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer d.Close()

	tr, err := d.Decode(context.Background(), segment.New(0, "foo bar"))
	require.NoError(t, err)

	// Every word passes through its own OOV rule; only the glue chain
	// charges anything.
	assert.Equal(t, "foo bar", tr.Best())
	assert.False(t, tr.Passthrough)
	assert.InDelta(t, -200.0, tr.Hypotheses[0].Features["OOVPenalty"], 1e-9)
}

func TestPassthroughOnNoDerivation(t *testing.T) {
	// OOV rules labeled [NP] are unreachable for an [X]-stitching glue
	// grammar, so nothing covers the input.
	fx := newFixture(t, func(c *config.Config) {
		c.OOV.Labels = []string{"[NP]"}
	})

	tr, err := fx.d.Decode(context.Background(), segment.New(0, "xyzzy"))
	require.NoError(t, err)
	assert.True(t, tr.Passthrough)
	assert.Equal(t, "xyzzy", tr.Best())
	assert.Zero(t, tr.Score)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.d.Metrics().Failures))
}

func TestNoDerivationFailsWithoutPassthrough(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) {
		c.OOV.Labels = []string{"[NP]"}
		c.Passthrough = false
	})

	_, err := fx.d.Decode(context.Background(), segment.New(0, "xyzzy"))
	require.ErrorIs(t, err, chart.ErrNoDerivation)
}

func TestEmptyInputPassesThrough(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) { c.Passthrough = false })

	tr, err := fx.d.Decode(context.Background(), segment.New(0, ""))
	require.NoError(t, err)
	assert.True(t, tr.Passthrough)
	assert.Equal(t, "", tr.Best())
}

func TestTrueOOVsOnlyGatesSynthesis(t *testing.T) {
	collect := func(fx *fixture) []string {
		tr, err := fx.d.Decode(context.Background(), segment.New(0, "le chat dort"))
		require.NoError(t, err)
		texts := make([]string, len(tr.Hypotheses))
		for i, h := range tr.Hypotheses {
			texts[i] = h.Text
		}
		return texts
	}

	strict := newFixture(t, func(c *config.Config) {
		c.TopN = 20
		c.Distinct = true
	})
	// "le" and "dort" start grammar patterns, so only "chat" gets OOV
	// rules, and no derivation can reach it.
	assert.Equal(t, []string{"the cat sleeps", "the cat rests"}, collect(strict))

	loose := newFixture(t, func(c *config.Config) {
		c.TopN = 20
		c.Distinct = true
		c.OOV.TrueOOVsOnly = false
	})
	assert.Contains(t, collect(loose), "le chat dort")
}

func TestPassthroughPatternFiresFeature(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) {
		c.OOV.Passthrough = []string{"*[0-9]*"}
	})

	tr, err := fx.d.Decode(context.Background(), segment.New(0, "42"))
	require.NoError(t, err)
	assert.Equal(t, "42", tr.Best())
	assert.InDelta(t, 1.0, tr.Hypotheses[0].Features["PassThrough"], 1e-9)
	assert.InDelta(t, 5.0, tr.Score, 1e-9)
}

func TestCacheHitsShareResult(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	tr1, err := fx.d.Decode(ctx, segment.New(0, "le chat dort"))
	require.NoError(t, err)
	tr2, err := fx.d.Decode(ctx, segment.New(1, "le chat dort"))
	require.NoError(t, err)

	assert.Same(t, tr1, tr2)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.d.Metrics().CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.d.Metrics().Sentences))
}

func TestConstrainedSentencesBypassCache(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	for id := 0; id < 2; id++ {
		s := segment.New(id, "le chat dort")
		require.NoError(t, s.AddConstraint(segment.Span(0, 2, false)))
		_, err := fx.d.Decode(ctx, s)
		require.NoError(t, err)
	}
	assert.Zero(t, testutil.ToFloat64(fx.d.Metrics().CacheHits))
}

func TestMaxInputLenTruncates(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) { c.MaxInputLen = 2 })

	tr, err := fx.d.Decode(context.Background(), segment.New(0, "le chat dort"))
	require.NoError(t, err)
	assert.Equal(t, "the cat", tr.Best())
	assert.Equal(t, "le chat", tr.Source)
}

func TestReloadWeightsRescoresAndPurges(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	tr1, err := fx.d.Decode(ctx, segment.New(0, "le chat dort"))
	require.NoError(t, err)
	assert.Equal(t, "the cat sleeps", tr1.Best())

	// Negated rule weights make the cheaper "rests" rule win.
	require.NoError(t, os.WriteFile(fx.weights, []byte("tm_pt_0 -1\ntm_glue_0 1\n"), 0o644))
	require.NoError(t, fx.d.ReloadWeights())

	tr2, err := fx.d.Decode(ctx, segment.New(0, "le chat dort"))
	require.NoError(t, err)
	assert.NotSame(t, tr1, tr2)
	assert.Equal(t, "the cat rests", tr2.Best())
	assert.InDelta(t, -2.5, tr2.Score, 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.d.Metrics().Reloads))
}

func TestWatchWeightsReloads(t *testing.T) {
	fx := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, fx.d.WatchWeights(ctx))

	tr, err := fx.d.Decode(context.Background(), segment.New(0, "le chat dort"))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, tr.Score, 1e-9)

	require.NoError(t, os.WriteFile(fx.weights, []byte("tm_pt_0 2\ntm_glue_0 1\n"), 0o644))

	require.Eventually(t, func() bool {
		tr, err := fx.d.Decode(context.Background(), segment.New(0, "le chat dort"))
		return err == nil && tr.Score > 2
	}, 5*time.Second, 100*time.Millisecond)
}

func TestDecodeAllKeepsOrder(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) { c.CacheSize = 0 })

	ts, err := fx.d.DecodeAll(context.Background(), []*segment.Sentence{
		segment.New(0, "le chat dort"),
		segment.New(1, "dort"),
		segment.New(2, "le chat dort dort"),
	})
	require.NoError(t, err)
	require.Len(t, ts, 3)
	assert.Equal(t, "the cat sleeps", ts[0].Best())
	assert.Equal(t, "sleeps", ts[1].Best())
	assert.Equal(t, "the cat sleeps sleeps", ts[2].Best())
}

func TestDecodeStreamFormatsNBest(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) {
		c.TopN = 2
		c.Distinct = true
	})

	var out bytes.Buffer
	err := fx.d.DecodeStream(context.Background(), "input",
		strings.NewReader("le chat dort\ndort\n"), &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "0 ||| the cat sleeps ||| "))
	assert.True(t, strings.HasPrefix(lines[1], "0 ||| the cat rests ||| "))
	assert.True(t, strings.HasPrefix(lines[2], "1 ||| sleeps ||| "))
	assert.True(t, strings.HasPrefix(lines[3], "1 ||| rests ||| "))
	assert.True(t, strings.HasSuffix(lines[0], "||| 1.000"))
	assert.Contains(t, lines[0], "tm_pt_0=2.000")
}

func TestTreeOutputFallsBackToDerivation(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) { c.Output.Trees = true })

	tr, err := fx.d.Decode(context.Background(), segment.New(0, "le chat dort"))
	require.NoError(t, err)
	assert.Equal(t, "(GOAL (GOAL (X the cat)) (X sleeps))", tr.Hypotheses[0].Tree)

	lines := tr.Lines(0, true)
	assert.True(t, strings.HasPrefix(lines[0], "0 ||| (GOAL "))
}

func TestFragmentTreeOutput(t *testing.T) {
	dir := t.TempDir()
	frags := writeFile(t, dir, "fragments.txt", strings.Join([]string{
		`(NP (DT "the") (NN "cat")) ||| the cat`,
		`(VP (VBZ "sleeps")) ||| sleeps`,
	}, "\n"))

	fx := newFixture(t, func(c *config.Config) {
		c.Output.Trees = true
		c.Fragments.Path = frags
	})

	tr, err := fx.d.Decode(context.Background(), segment.New(0, "le chat dort"))
	require.NoError(t, err)

	// Glue rules have no fragments and synthesize flat levels; rule
	// fragments splice in under the slot labels.
	assert.Equal(t,
		`(GOAL (GOAL (X (DT "the") (NN "cat"))) (X (VBZ "sleeps")))`,
		tr.Hypotheses[0].Tree)
}

func TestUnknownFeatureRejected(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Features = append(cfg.Features, config.Feature{Name: "Bogus"})

	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.ErrorIs(t, err, ErrUnknownFeature)
}

func TestDecodeAfterCloseFails(t *testing.T) {
	fx := newFixture(t, nil)
	require.NoError(t, fx.d.Close())

	_, err := fx.d.Decode(context.Background(), segment.New(0, "le chat dort"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestBatchErrorNamesSegment(t *testing.T) {
	fx := newFixture(t, func(c *config.Config) {
		c.OOV.Labels = []string{"[NP]"}
		c.Passthrough = false
	})

	_, err := fx.d.DecodeAll(context.Background(), []*segment.Sentence{
		segment.New(0, "le chat dort"),
		segment.New(1, "xyzzy"),
	})
	require.ErrorIs(t, err, chart.ErrNoDerivation)
	assert.ErrorContains(t, err, "segment 1")
}
