// Package decoder runs the whole translation pipeline. It loads grammars
// and weights per its configuration, assembles the feature ensemble,
// decodes sentences through the chart and k-best extraction on a bounded
// worker pool, and formats n-best output. One Decoder serves many
// concurrent sentences; per-sentence state never escapes a decode.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/forester-mt/forester/core/chart"
	"github.com/forester-mt/forester/core/config"
	"github.com/forester-mt/forester/core/ff"
	"github.com/forester-mt/forester/core/fragment"
	"github.com/forester-mt/forester/core/kbest"
	"github.com/forester-mt/forester/core/segment"
	"github.com/forester-mt/forester/core/tm"
	"github.com/forester-mt/forester/core/vocab"
)

var (
	// ErrUnknownFeature reports a configured feature name the decoder
	// cannot build.
	ErrUnknownFeature = errors.New("decoder: unknown feature function")

	// ErrClosed reports a decode attempted after Close.
	ErrClosed = errors.New("decoder: closed")

	// ErrNoWeightsFile reports a watch request with no weights file
	// configured.
	ErrNoWeightsFile = errors.New("decoder: no weights file configured")
)

type Decoder struct {
	cfg    *config.Config
	logger *slog.Logger
	vocab  *vocab.Table

	weightsPath string

	// mu orders decodes against weight reloads: decodes hold the read
	// side for their whole run, reloads take the write side to swap the
	// ensemble and re-sort grammars in place.
	mu       sync.RWMutex
	weights  *ff.Weights
	ens      *ff.Ensemble
	models   []tm.Estimator
	grammars []tm.Grammar

	fragments *fragment.Fragments
	cache     *lru.Cache[string, *Translation]
	sem       chan struct{}
	metrics   *Metrics

	closed atomic.Bool
}

// New assembles a decoder from cfg, loading every grammar, weight, and
// fragment file it names. A nil cfg decodes with the defaults: no
// grammars beyond glue and OOV synthesis, empty weights.
func New(cfg *config.Config, logger *slog.Logger) (*Decoder, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Decoder{
		cfg:     cfg,
		logger:  logger,
		vocab:   vocab.New(),
		sem:     make(chan struct{}, cfg.Workers),
		metrics: newMetrics(),
	}

	if cfg.Weights != "" {
		w, err := loadWeights(cfg.Weights)
		if err != nil {
			return nil, err
		}
		d.weights = w
		d.weightsPath = cfg.Weights
	} else {
		d.weights = ff.NewWeights(nil)
	}

	if err := d.loadGrammars(); err != nil {
		return nil, err
	}

	ens, err := buildEnsemble(cfg, d.vocab, d.weights, d.grammars)
	if err != nil {
		return nil, err
	}
	d.ens = ens
	d.models = ens.Estimators()

	for _, g := range d.grammars {
		start := time.Now()
		g.Sort(d.models)
		d.logger.Debug("grammar sorted",
			"owner", g.Owner(), "rules", g.NumRules(), "elapsed", time.Since(start))
	}

	if cfg.Fragments.Path != "" {
		if err := d.loadFragments(cfg.Fragments.Path); err != nil {
			return nil, err
		}
	}

	if cfg.CacheSize > 0 {
		c, err := lru.New[string, *Translation](cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		d.cache = c
	}

	return d, nil
}

func (d *Decoder) loadGrammars() error {
	for _, gc := range d.cfg.Grammars {
		g := tm.NewMemoryGrammar(d.vocab, tm.OwnerID(gc.Owner), gc.SpanLimit)
		f, err := os.Open(gc.Path)
		if err != nil {
			return fmt.Errorf("decoder: open grammar: %w", err)
		}
		err = g.LoadText(filepath.Base(gc.Path), f)
		f.Close()
		if err != nil {
			return err
		}
		d.grammars = append(d.grammars, g)
		d.logger.Info("grammar loaded",
			"owner", gc.Owner, "path", gc.Path, "rules", g.NumRules())
	}

	glue, err := tm.NewGlueGrammar(d.vocab, d.cfg.Goal, d.cfg.DefaultNT)
	if err != nil {
		return err
	}
	d.grammars = append(d.grammars, glue)
	return nil
}

func (d *Decoder) loadFragments(path string) error {
	frags, err := fragment.NewFragments(d.vocab, d.logger)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		frags.Close()
		return fmt.Errorf("decoder: open fragments: %w", err)
	}
	err = frags.Load(filepath.Base(path), f)
	f.Close()
	if err != nil {
		frags.Close()
		return err
	}
	d.fragments = frags
	d.logger.Info("fragments loaded", "path", path, "fragments", frags.Len())
	return nil
}

// buildEnsemble wires one phrase model per grammar owner, plus models for
// the synthesized OOV and constraint owners, plus the configured feature
// functions. Grammars sharing an owner share one model; a model per
// grammar would score their rules twice.
func buildEnsemble(cfg *config.Config, v *vocab.Table, w *ff.Weights, grammars []tm.Grammar) (*ff.Ensemble, error) {
	var fns []ff.Function
	seen := make(map[tm.OwnerID]struct{}, len(grammars))
	for _, g := range grammars {
		if _, ok := seen[g.Owner()]; ok {
			continue
		}
		seen[g.Owner()] = struct{}{}
		fns = append(fns, ff.NewPhraseModel(w, g.Owner(), g.NumDenseFeatures()))
	}
	fns = append(fns, ff.NewPhraseModel(w, tm.OOVOwner, 0))
	fns = append(fns, ff.NewPhraseModel(w, segment.ConstraintOwner, constraintWidth(grammars)))

	for _, f := range cfg.Features {
		switch {
		case strings.EqualFold(f.Name, "WordPenalty"):
			fns = append(fns, ff.NewWordPenalty(w))
		case strings.EqualFold(f.Name, "PhrasePenalty"):
			fns = append(fns, ff.NewPhrasePenalty(w))
		case strings.EqualFold(f.Name, "OOVPenalty"):
			fns = append(fns, ff.NewOOVPenalty(w, f.Value))
		case strings.EqualFold(f.Name, "SourcePath"):
			fns = append(fns, ff.NewSourcePathCost())
		case strings.EqualFold(f.Name, "TargetBigram"):
			fns = append(fns, ff.NewTargetBigram(v))
		case strings.EqualFold(f.Name, "LabelSubstitution"):
			fns = append(fns, ff.NewLabelSubstitution(v))
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, f.Name)
		}
	}
	return ff.NewEnsemble(w, fns...), nil
}

// constraintWidth is the dense width constraint rules are checked
// against, taken from the first regular grammar.
func constraintWidth(grammars []tm.Grammar) int {
	for _, g := range grammars {
		switch g.Owner() {
		case tm.GlueOwner, tm.OOVOwner, segment.ConstraintOwner:
			continue
		}
		return g.NumDenseFeatures()
	}
	return 0
}

// Decode translates one sentence. Concurrent callers share the
// configured worker budget; calls past it queue on the semaphore. When
// no derivation covers the input and passthrough is configured, the
// input is returned verbatim instead of an error.
func (d *Decoder) Decode(ctx context.Context, sent *segment.Sentence) (*Translation, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if sent.Empty() {
		return d.passthrough(sent), nil
	}
	if d.cfg.MaxInputLen > 0 && sent.Len() > d.cfg.MaxInputLen {
		d.logger.Warn("input over length limit, truncating",
			"segment", sent.ID, "words", sent.Len(), "limit", d.cfg.MaxInputLen)
		sent = truncate(sent, d.cfg.MaxInputLen)
	}

	select {
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	key := cacheKey(sent)
	if d.cache != nil && key != "" {
		if t, ok := d.cache.Get(key); ok {
			d.metrics.CacheHits.Inc()
			return t, nil
		}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	t, err := d.decode(ctx, sent)
	if err != nil {
		if errors.Is(err, chart.ErrNoDerivation) && d.cfg.Passthrough {
			d.metrics.Failures.Inc()
			d.logger.Warn("no derivation, passing input through", "segment", sent.ID)
			return d.passthrough(sent), nil
		}
		return nil, err
	}
	if d.cache != nil && key != "" {
		d.cache.Add(key, t)
	}
	return t, nil
}

func (d *Decoder) decode(ctx context.Context, sent *segment.Sentence) (*Translation, error) {
	start := time.Now()
	req := uuid.NewString()
	log := d.logger.With("request", req, "segment", sent.ID)

	grammars, err := d.sentenceGrammars(sent)
	if err != nil {
		return nil, err
	}

	c, err := chart.New(d.vocab, d.ens, grammars, sent, nil, chart.Config{
		PopLimit:      d.cfg.PopLimit,
		GoalSymbol:    d.cfg.Goal,
		DefaultNT:     d.cfg.DefaultNT,
		FuzzyMatching: d.cfg.FuzzyMatching,
	}, log)
	if err != nil {
		return nil, err
	}
	forest, err := c.Parse(ctx)
	if err != nil {
		return nil, err
	}
	d.metrics.CubePops.Observe(float64(c.Pops()))
	d.metrics.ForestNodes.Observe(float64(forest.NumNodes()))

	ex := kbest.New(forest, d.vocab, d.ens, sent, d.cfg.Distinct)
	t := &Translation{
		RequestID: req,
		Source:    strings.Join(sent.Words, " "),
		Score:     forest.BestScore(),
	}
	for _, dv := range ex.Derivations(d.cfg.TopN) {
		h := Hypothesis{
			Text:     dv.String(),
			Score:    dv.Score(),
			Features: dv.Features(),
		}
		if d.cfg.Output.Trees {
			if h.Tree, err = d.renderTree(dv); err != nil {
				return nil, err
			}
		}
		t.Hypotheses = append(t.Hypotheses, h)
	}

	elapsed := time.Since(start)
	d.metrics.Sentences.Inc()
	d.metrics.DecodeSeconds.Observe(elapsed.Seconds())
	log.Info("decoded",
		"words", sent.Len(),
		"nodes", forest.NumNodes(),
		"edges", forest.NumEdges(),
		"k", len(t.Hypotheses),
		"score", t.Score,
		"elapsed", elapsed)
	return t, nil
}

// sentenceGrammars extends the shared grammars with a fresh OOV grammar
// holding rules for this sentence's unknown words. The OOV grammar is
// per sentence, so synthesized rules never race other decodes.
func (d *Decoder) sentenceGrammars(sent *segment.Sentence) ([]tm.Grammar, error) {
	oov, err := tm.NewOOVGrammar(d.vocab, d.cfg.OOV.Labels, d.cfg.OOV.Passthrough)
	if err != nil {
		return nil, err
	}
	for _, w := range sent.Words {
		id := d.vocab.ID(w)
		if d.cfg.OOV.TrueOOVsOnly && d.known(id) {
			continue
		}
		oov.AddOOVRules(id, d.models)
	}

	gs := make([]tm.Grammar, len(d.grammars), len(d.grammars)+1)
	copy(gs, d.grammars)
	return append(gs, oov), nil
}

// known reports whether any translation grammar can start a source
// pattern with word.
func (d *Decoder) known(word int) bool {
	for _, g := range d.grammars {
		if g.Owner() == tm.GlueOwner {
			continue
		}
		if g.TrieRoot().Match(word) != nil {
			return true
		}
	}
	return false
}

// passthrough copies the input through as its own translation.
func (d *Decoder) passthrough(sent *segment.Sentence) *Translation {
	text := strings.Join(sent.Words, " ")
	return &Translation{
		RequestID:   uuid.NewString(),
		Source:      text,
		Passthrough: true,
		Hypotheses:  []Hypothesis{{Text: text, Features: ff.FeatureVector{}}},
	}
}

// renderTree prefers the fragment rendering when a table is loaded and
// falls back to the bracketed derivation tree otherwise.
func (d *Decoder) renderTree(dv *kbest.Derivation) (string, error) {
	if d.fragments == nil {
		return dv.Tree(), nil
	}
	t, err := d.fragments.BuildTree(dv, d.cfg.Fragments.MaxDepth)
	if err != nil {
		return "", err
	}
	return t.Render(d.vocab), nil
}

// cacheKey identifies a sentence by its surface text alone. Constrained
// sentences are never cached: their annotations change the search space.
func cacheKey(s *segment.Sentence) string {
	if len(s.Constraints) > 0 {
		return ""
	}
	return strings.Join(s.Words, " ")
}

// truncate copies the first n words of s, keeping the constraints that
// still fit.
func truncate(s *segment.Sentence, n int) *segment.Sentence {
	t := segment.New(s.ID, strings.Join(s.Words[:n], " "))
	for _, cs := range s.Constraints {
		if cs.End <= n {
			t.Constraints = append(t.Constraints, cs)
		}
	}
	return t
}

// Metrics exposes the decoder's counters for scraping and tests.
func (d *Decoder) Metrics() *Metrics { return d.metrics }

// Close releases the fragment cache and fails all later decodes.
// Safe to call more than once.
func (d *Decoder) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	if d.fragments != nil {
		d.fragments.Close()
	}
	return nil
}

func loadWeights(path string) (*ff.Weights, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decoder: open weights: %w", err)
	}
	defer f.Close()
	return ff.LoadWeights(filepath.Base(path), f)
}
