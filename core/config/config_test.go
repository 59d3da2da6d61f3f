package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "[GOAL]", cfg.Goal)
	assert.Equal(t, "[X]", cfg.DefaultNT)
	assert.Equal(t, 100, cfg.PopLimit)
	assert.Equal(t, 1, cfg.TopN)
	assert.Greater(t, cfg.Workers, 0)
	assert.True(t, cfg.OOV.TrueOOVsOnly)
	assert.True(t, cfg.Passthrough)

	_, ok := cfg.HasFeature("WordPenalty")
	assert.True(t, ok)
}

func TestParseOverlaysDefaults(t *testing.T) {
	src := `
pop_limit: 20
distinct: true
grammars:
  - path: grammar.txt
  - path: rules.txt
    owner: syntax
    span_limit: 12
oov:
  passthrough: ["*://*", "[0-9]*"]
`
	cfg, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.PopLimit)
	assert.True(t, cfg.Distinct)

	// Untouched keys keep their defaults.
	assert.Equal(t, "[GOAL]", cfg.Goal)
	assert.Equal(t, 1, cfg.TopN)
	assert.True(t, cfg.OOV.TrueOOVsOnly)
	assert.Len(t, cfg.Features, 3)

	require.Len(t, cfg.Grammars, 2)
	assert.Equal(t, "pt", cfg.Grammars[0].Owner)
	assert.Equal(t, "syntax", cfg.Grammars[1].Owner)
	assert.Equal(t, 12, cfg.Grammars[1].SpanLimit)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad goal", "goal: GOAL"},
		{"bad default nt", "default_nt: x"},
		{"negative top_n", "top_n: -2"},
		{"negative cache", "cache_size: -1"},
		{"grammar without path", "grammars: [{owner: pt}]"},
		{"reserved owner", "grammars: [{path: g.txt, owner: glue}]"},
		{"unnamed feature", "features: [{value: 3}]"},
		{"bad oov label", "oov: {labels: [NP]}"},
		{"bad passthrough glob", `oov: {passthrough: ["[a-"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src))
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse(strings.NewReader("pop_limit: [not an int"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestNormalizeClampsRanges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopLimit = -5
	cfg.Workers = 0
	cfg.MaxInputLen = -1
	cfg.Fragments.MaxDepth = -3
	cfg.Normalize()

	assert.Equal(t, 0, cfg.PopLimit)
	assert.Greater(t, cfg.Workers, 0)
	assert.Equal(t, 0, cfg.MaxInputLen)
	assert.Equal(t, 0, cfg.Fragments.MaxDepth)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FORESTER_POP_LIMIT", "7")
	t.Setenv("FORESTER_WEIGHTS", "tuned.txt")

	cfg, err := Parse(strings.NewReader("pop_limit: 500"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.PopLimit)
	assert.Equal(t, "tuned.txt", cfg.Weights)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir() + "/absent.yaml")
	require.Error(t, err)
}

func TestHasFeatureIsCaseInsensitive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Features = append(cfg.Features, Feature{Name: "TargetBigram", Value: 2})

	f, ok := cfg.HasFeature("targetbigram")
	require.True(t, ok)
	assert.Equal(t, 2.0, f.Value)

	_, ok = cfg.HasFeature("LabelSubstitution")
	assert.False(t, ok)
}
