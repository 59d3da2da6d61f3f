// Package config holds the decoder's run configuration: search knobs,
// grammar and weight locations, feature selection, and output shape.
// Files are YAML, unmarshalled over DefaultConfig so absent keys keep
// their defaults, then overridden from FORESTER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/forester-mt/forester/core/vocab"
)

// ErrInvalid reports a configuration that fails validation.
var ErrInvalid = errors.New("config: invalid")

// Reserved grammar owners; loaded grammars may not claim them.
var reservedOwners = []string{"glue", "oov", "custom"}

type Config struct {
	Goal          string `yaml:"goal"`
	DefaultNT     string `yaml:"default_nt"`
	PopLimit      int    `yaml:"pop_limit"`
	TopN          int    `yaml:"top_n"`
	Distinct      bool   `yaml:"distinct"`
	FuzzyMatching bool   `yaml:"fuzzy_matching"`
	MaxInputLen   int    `yaml:"max_input_len"`
	Workers       int    `yaml:"workers"`
	CacheSize     int    `yaml:"cache_size"`
	Passthrough   bool   `yaml:"passthrough_on_failure"`

	Weights      string `yaml:"weights"`
	WatchWeights bool   `yaml:"watch_weights"`
	MetricsAddr  string `yaml:"metrics_addr"`

	Grammars  []Grammar `yaml:"grammars"`
	Features  []Feature `yaml:"features"`
	OOV       OOV       `yaml:"oov"`
	Fragments Fragments `yaml:"fragments"`
	Output    Output    `yaml:"output"`
}

type Grammar struct {
	Path      string `yaml:"path"`
	Owner     string `yaml:"owner"`
	SpanLimit int    `yaml:"span_limit"`
}

// Feature selects a feature function by name. Value carries the single
// numeric argument some functions take and is otherwise ignored.
type Feature struct {
	Name  string  `yaml:"name"`
	Value float64 `yaml:"value,omitempty"`
}

type OOV struct {
	Labels       []string `yaml:"labels"`
	Passthrough  []string `yaml:"passthrough"`
	TrueOOVsOnly bool     `yaml:"true_oovs_only"`
}

type Fragments struct {
	Path     string `yaml:"path"`
	MaxDepth int    `yaml:"max_depth"`
}

type Output struct {
	Trees bool `yaml:"trees"`
}

func DefaultConfig() *Config {
	return &Config{
		Goal:        "[GOAL]",
		DefaultNT:   "[X]",
		PopLimit:    100,
		TopN:        1,
		Workers:     runtime.NumCPU(),
		CacheSize:   256,
		Passthrough: true,
		Features: []Feature{
			{Name: "WordPenalty"},
			{Name: "PhrasePenalty"},
			{Name: "OOVPenalty"},
		},
		OOV: OOV{
			TrueOOVsOnly: true,
		},
	}
}

// Load reads a YAML config file over the defaults. The path must exist;
// callers that treat the file as optional stat it first.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads YAML over the defaults, applies environment overrides,
// normalizes, and validates.
func Parse(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	applyEnvironment(cfg)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvironment(cfg *Config) {
	if v := os.Getenv("FORESTER_POP_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PopLimit = n
		}
	}
	if v := os.Getenv("FORESTER_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TopN = n
		}
	}
	if v := os.Getenv("FORESTER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("FORESTER_WEIGHTS"); v != "" {
		cfg.Weights = v
	}
}

// Normalize replaces out-of-range and unset values with their defaults.
// Parse calls it; callers assembling a Config by hand should too.
func (c *Config) Normalize() {
	if c.PopLimit < 0 {
		c.PopLimit = 0
	}
	if c.TopN == 0 {
		c.TopN = 1
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.MaxInputLen < 0 {
		c.MaxInputLen = 0
	}
	if c.Fragments.MaxDepth < 0 {
		c.Fragments.MaxDepth = 0
	}
	for i := range c.Grammars {
		if c.Grammars[i].Owner == "" {
			c.Grammars[i].Owner = "pt"
		}
		if c.Grammars[i].SpanLimit < 0 {
			c.Grammars[i].SpanLimit = 0
		}
	}
}

func (c *Config) Validate() error {
	if !vocab.IsNonterminalLabel(c.Goal) {
		return fmt.Errorf("%w: goal %q is not a nonterminal label", ErrInvalid, c.Goal)
	}
	if !vocab.IsNonterminalLabel(c.DefaultNT) {
		return fmt.Errorf("%w: default_nt %q is not a nonterminal label", ErrInvalid, c.DefaultNT)
	}
	if c.TopN < 1 {
		return fmt.Errorf("%w: top_n must be positive, got %d", ErrInvalid, c.TopN)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("%w: cache_size must not be negative, got %d", ErrInvalid, c.CacheSize)
	}
	for i, g := range c.Grammars {
		if g.Path == "" {
			return fmt.Errorf("%w: grammar %d has no path", ErrInvalid, i)
		}
		for _, owner := range reservedOwners {
			if g.Owner == owner {
				return fmt.Errorf("%w: grammar %s claims reserved owner %q", ErrInvalid, g.Path, owner)
			}
		}
	}
	for i, f := range c.Features {
		if f.Name == "" {
			return fmt.Errorf("%w: feature %d has no name", ErrInvalid, i)
		}
	}
	for _, l := range c.OOV.Labels {
		if !vocab.IsNonterminalLabel(l) {
			return fmt.Errorf("%w: oov label %q is not a nonterminal label", ErrInvalid, l)
		}
	}
	for _, p := range c.OOV.Passthrough {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("%w: passthrough pattern %q: %v", ErrInvalid, p, err)
		}
	}
	return nil
}

// HasFeature reports whether name is selected, and with what argument.
func (c *Config) HasFeature(name string) (Feature, bool) {
	for _, f := range c.Features {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Feature{}, false
}
