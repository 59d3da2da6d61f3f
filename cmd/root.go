package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootVerbose bool

var rootCmd = &cobra.Command{
	Use:   "forester",
	Short: "Forester - a synchronous grammar translation decoder",
	Long: `Forester translates sentences with weighted synchronous context-free
grammars: CYK chart parsing into a packed forest with cube pruning,
pluggable feature functions, and lazy k-best extraction.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
}

// configureLogging routes logs to stderr so translation output on stdout
// stays machine readable.
func configureLogging() {
	level := slog.LevelWarn
	if rootVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
