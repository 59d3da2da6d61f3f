// Package cmd provides CLI commands for the forester decoder.
// This file implements the decode command for batch translation.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/forester-mt/forester/core/config"
	"github.com/forester-mt/forester/core/decoder"
	"github.com/forester-mt/forester/core/lineio"
	"github.com/forester-mt/forester/core/segment"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DecodeShutdownGrace is how long the metrics server gets to drain
	// in-flight scrapes on exit.
	DecodeShutdownGrace = 5 * time.Second
)

// =============================================================================
// Decode Command Flags
// =============================================================================

var (
	decodeConfigPath  string
	decodeGrammars    []string
	decodeWeights     string
	decodeTopN        int
	decodePopLimit    int
	decodeDistinct    bool
	decodeTrees       bool
	decodeWorkers     int
	decodeOutput      string
	decodeJSON        bool
	decodeMetricsAddr string
	decodeWatch       bool
)

// =============================================================================
// Decode Command
// =============================================================================

// decodeCmd represents the decode command.
var decodeCmd = &cobra.Command{
	Use:   "decode [input-file]",
	Short: "Translate sentences from a file or stdin",
	Long: `Translate input sentences, one per line, and print n-best lists.

Without an input file (or with "-") sentences are read from stdin.
Output lines follow the format:

  id ||| hypothesis ||| features ||| score

Examples:
  forester decode --config forester.yaml input.txt
  cat input.txt | forester decode -c forester.yaml
  forester decode -c forester.yaml --top-n 5 --distinct input.txt
  forester decode -c forester.yaml --json input.txt | jq '.sentences'
  forester decode -c forester.yaml --metrics-addr :9090 --watch-weights input.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	// Register with root command
	rootCmd.AddCommand(decodeCmd)

	// Define flags
	decodeCmd.Flags().StringVarP(&decodeConfigPath, "config", "c", "", "Path to decoder configuration file")
	decodeCmd.Flags().StringSliceVarP(&decodeGrammars, "grammar", "g", nil, "Grammar file (repeatable, overrides config)")
	decodeCmd.Flags().StringVarP(&decodeWeights, "weights", "w", "", "Weights file (overrides config)")
	decodeCmd.Flags().IntVarP(&decodeTopN, "top-n", "n", 0, "Hypotheses per sentence (overrides config)")
	decodeCmd.Flags().IntVar(&decodePopLimit, "pop-limit", 0, "Cube pruning pop limit per span (overrides config)")
	decodeCmd.Flags().BoolVar(&decodeDistinct, "distinct", false, "Keep only distinct hypothesis strings")
	decodeCmd.Flags().BoolVar(&decodeTrees, "trees", false, "Print derivation trees instead of plain hypotheses")
	decodeCmd.Flags().IntVar(&decodeWorkers, "workers", 0, "Concurrent sentence decodes (overrides config)")
	decodeCmd.Flags().StringVarP(&decodeOutput, "output", "o", "", "Write output to file instead of stdout")
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "Output results as JSON")
	decodeCmd.Flags().StringVar(&decodeMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	decodeCmd.Flags().BoolVar(&decodeWatch, "watch-weights", false, "Reload the weights file when it changes")
}

// =============================================================================
// Decode Execution
// =============================================================================

// runDecode executes the decode command.
func runDecode(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(cmd.OutOrStderr(), "\nInterrupted.")
		cancel()
	}()

	cfg, err := loadDecodeConfig(cmd)
	if err != nil {
		return err
	}

	d, err := decoder.New(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("building decoder: %w", err)
	}
	defer d.Close()

	if decodeWatch || cfg.WatchWeights {
		if err := d.WatchWeights(ctx); err != nil {
			return err
		}
	}

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, d)
		defer stop()
	}

	in, name, err := openInput(args)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := openOutput()
	if err != nil {
		return err
	}
	defer out.Close()

	if decodeJSON {
		return decodeToJSON(ctx, d, name, in, out)
	}
	return d.DecodeStream(ctx, name, in, out)
}

// loadDecodeConfig loads the configuration file and layers the command
// line flags the user actually set over it.
func loadDecodeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if decodeConfigPath != "" {
		var err error
		if cfg, err = config.Load(decodeConfigPath); err != nil {
			return nil, err
		}
	}
	applyDecodeFlags(cmd, cfg)
	cfg.Normalize()
	return cfg, nil
}

// applyDecodeFlags overrides file settings with changed flags only, so
// flag defaults never clobber configured values.
func applyDecodeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("grammar") {
		cfg.Grammars = nil
		for _, path := range decodeGrammars {
			cfg.Grammars = append(cfg.Grammars, config.Grammar{Path: path})
		}
	}
	if flags.Changed("weights") {
		cfg.Weights = decodeWeights
	}
	if flags.Changed("top-n") {
		cfg.TopN = decodeTopN
	}
	if flags.Changed("pop-limit") {
		cfg.PopLimit = decodePopLimit
	}
	if flags.Changed("distinct") {
		cfg.Distinct = decodeDistinct
	}
	if flags.Changed("trees") {
		cfg.Output.Trees = decodeTrees
	}
	if flags.Changed("workers") {
		cfg.Workers = decodeWorkers
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = decodeMetricsAddr
	}
}

// openInput opens the input file named in args, or stdin for no argument
// or "-".
func openInput(args []string) (io.ReadCloser, string, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin), "stdin", nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("opening input: %w", err)
	}
	return f, args[0], nil
}

// openOutput opens the --output file, or stdout.
func openOutput() (io.WriteCloser, error) {
	if decodeOutput == "" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(decodeOutput)
	if err != nil {
		return nil, fmt.Errorf("opening output: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// serveMetrics exposes the decoder's registry over HTTP and returns a
// stop function that drains the server.
func serveMetrics(addr string, d *decoder.Decoder) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(d.Metrics().Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DecodeShutdownGrace)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// JSON Output
// =============================================================================

// decodeToJSON decodes every input line and encodes the batch as JSON.
func decodeToJSON(ctx context.Context, d *decoder.Decoder, name string, r io.Reader, w io.Writer) error {
	in := lineio.NewReader(name, r)
	var sents []*segment.Sentence
	for in.Scan() {
		sents = append(sents, segment.New(len(sents), strings.TrimSpace(in.Text())))
	}
	if err := in.Err(); err != nil {
		return err
	}

	ts, err := d.DecodeAll(ctx, sents)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newDecodeOutput(ts))
}

// decodeOutputDoc is the JSON output structure for a decode run.
type decodeOutputDoc struct {
	Sentences []translationOutput `json:"sentences"`
}

// translationOutput is the JSON output for one decoded sentence.
type translationOutput struct {
	ID          int                `json:"id"`
	Source      string             `json:"source"`
	Passthrough bool               `json:"passthrough,omitempty"`
	Score       float64            `json:"score"`
	Hypotheses  []hypothesisOutput `json:"hypotheses"`
}

// hypothesisOutput is the JSON output for a single hypothesis.
type hypothesisOutput struct {
	Text     string             `json:"text"`
	Tree     string             `json:"tree,omitempty"`
	Score    float64            `json:"score"`
	Features map[string]float64 `json:"features,omitempty"`
}

// newDecodeOutput creates a decodeOutputDoc from decoded translations.
func newDecodeOutput(ts []*decoder.Translation) *decodeOutputDoc {
	out := &decodeOutputDoc{Sentences: make([]translationOutput, 0, len(ts))}
	for i, t := range ts {
		doc := translationOutput{
			ID:          i,
			Source:      t.Source,
			Passthrough: t.Passthrough,
			Score:       t.Score,
			Hypotheses:  make([]hypothesisOutput, 0, len(t.Hypotheses)),
		}
		for _, h := range t.Hypotheses {
			doc.Hypotheses = append(doc.Hypotheses, hypothesisOutput{
				Text:     h.Text,
				Tree:     h.Tree,
				Score:    h.Score,
				Features: h.Features,
			})
		}
		out.Sentences = append(out.Sentences, doc)
	}
	return out
}
