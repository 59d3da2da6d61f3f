// Package cmd provides CLI commands for the forester decoder.
// This file implements the kbest command for inspecting ranked derivations.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forester-mt/forester/core/config"
	"github.com/forester-mt/forester/core/decoder"
	"github.com/forester-mt/forester/core/segment"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// KBestDefaultK is the default number of derivations to show.
	KBestDefaultK = 10

	// KBestTimeout bounds a single inspection decode.
	KBestTimeout = 60 * time.Second
)

// =============================================================================
// KBest Command Flags
// =============================================================================

var (
	kbestConfigPath string
	kbestK          int
	kbestDistinct   bool
	kbestTrees      bool
	kbestJSON       bool
)

// =============================================================================
// KBest Command
// =============================================================================

// kbestCmd represents the kbest command.
var kbestCmd = &cobra.Command{
	Use:   "kbest <sentence>",
	Short: "Show the k-best derivations for one sentence",
	Long: `Decode a single sentence and print its ranked derivations with
scores and feature breakdowns.

Examples:
  forester kbest -c forester.yaml "el gato duerme"
  forester kbest -c forester.yaml -k 25 --distinct "el gato duerme"
  forester kbest -c forester.yaml --trees "el gato duerme"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKBest,
}

func init() {
	// Register with root command
	rootCmd.AddCommand(kbestCmd)

	// Define flags
	kbestCmd.Flags().StringVarP(&kbestConfigPath, "config", "c", "", "Path to decoder configuration file")
	kbestCmd.Flags().IntVarP(&kbestK, "top-k", "k", KBestDefaultK, "Number of derivations to show")
	kbestCmd.Flags().BoolVar(&kbestDistinct, "distinct", false, "Keep only distinct hypothesis strings")
	kbestCmd.Flags().BoolVar(&kbestTrees, "trees", false, "Show derivation trees")
	kbestCmd.Flags().BoolVar(&kbestJSON, "json", false, "Output results as JSON")
}

// =============================================================================
// KBest Execution
// =============================================================================

// runKBest executes the kbest command.
func runKBest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), KBestTimeout)
	defer cancel()

	cfg, err := loadKBestConfig()
	if err != nil {
		return err
	}

	d, err := decoder.New(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("building decoder: %w", err)
	}
	defer d.Close()

	sent := segment.New(0, strings.Join(args, " "))
	t, err := d.Decode(ctx, sent)
	if err != nil {
		return fmt.Errorf("decoding: %w", err)
	}

	if kbestJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(newDecodeOutput([]*decoder.Translation{t}))
	}
	outputKBest(cmd.OutOrStdout(), t)
	return nil
}

// loadKBestConfig loads the configuration file and applies the
// inspection flags.
func loadKBestConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if kbestConfigPath != "" {
		var err error
		if cfg, err = config.Load(kbestConfigPath); err != nil {
			return nil, err
		}
	}
	cfg.TopN = kbestK
	cfg.Distinct = kbestDistinct
	cfg.Output.Trees = cfg.Output.Trees || kbestTrees
	cfg.Normalize()
	return cfg, nil
}

// =============================================================================
// Output Formatting
// =============================================================================

// outputKBest prints ranked derivations, one block per hypothesis.
func outputKBest(w io.Writer, t *decoder.Translation) {
	if t.Passthrough {
		fmt.Fprintf(w, "passthrough: %s\n", t.Source)
		return
	}
	for i, h := range t.Hypotheses {
		fmt.Fprintf(w, "%3d. %s ||| %.3f\n", i+1, h.Text, h.Score)
		if len(h.Features) > 0 {
			fmt.Fprintf(w, "     %s\n", h.Features.String())
		}
		if h.Tree != "" {
			fmt.Fprintf(w, "     %s\n", h.Tree)
		}
	}
}
