// Package cmd provides CLI commands for the forester decoder.
// This file contains tests for the decode command.
package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forester-mt/forester/core/config"
)

// =============================================================================
// Decode Command Tests
// =============================================================================

func TestDecodeCmd_Definition(t *testing.T) {
	t.Run("command is defined", func(t *testing.T) {
		assert.NotNil(t, decodeCmd)
		assert.Equal(t, "decode [input-file]", decodeCmd.Use)
		assert.Equal(t, "Translate sentences from a file or stdin", decodeCmd.Short)
	})

	t.Run("command has flags", func(t *testing.T) {
		flags := decodeCmd.Flags()

		configFlag := flags.Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "c", configFlag.Shorthand)

		grammarFlag := flags.Lookup("grammar")
		require.NotNil(t, grammarFlag)
		assert.Equal(t, "g", grammarFlag.Shorthand)

		topNFlag := flags.Lookup("top-n")
		require.NotNil(t, topNFlag)
		assert.Equal(t, "n", topNFlag.Shorthand)

		require.NotNil(t, flags.Lookup("pop-limit"))
		require.NotNil(t, flags.Lookup("distinct"))
		require.NotNil(t, flags.Lookup("trees"))
		require.NotNil(t, flags.Lookup("watch-weights"))
		require.NotNil(t, flags.Lookup("metrics-addr"))

		jsonFlag := flags.Lookup("json")
		require.NotNil(t, jsonFlag)
		assert.Equal(t, "false", jsonFlag.DefValue)
	})
}

// =============================================================================
// Flag Overlay Tests
// =============================================================================

func TestApplyDecodeFlags(t *testing.T) {
	// Reset flag variables touched by the subtests.
	defer func() {
		decodeGrammars = nil
		decodeTopN = 0
		decodeDistinct = false
	}()

	t.Run("unchanged flags keep config values", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.TopN = 7
		applyDecodeFlags(decodeCmd, cfg)
		assert.Equal(t, 7, cfg.TopN)
	})

	t.Run("changed flags override config values", func(t *testing.T) {
		require.NoError(t, decodeCmd.Flags().Set("top-n", "3"))
		require.NoError(t, decodeCmd.Flags().Set("distinct", "true"))
		require.NoError(t, decodeCmd.Flags().Set("grammar", "a.txt,b.txt"))

		cfg := config.DefaultConfig()
		cfg.TopN = 7
		applyDecodeFlags(decodeCmd, cfg)

		assert.Equal(t, 3, cfg.TopN)
		assert.True(t, cfg.Distinct)
		require.Len(t, cfg.Grammars, 2)
		assert.Equal(t, "a.txt", cfg.Grammars[0].Path)
	})
}

// =============================================================================
// Input Selection Tests
// =============================================================================

func TestOpenInput(t *testing.T) {
	t.Run("no argument reads stdin", func(t *testing.T) {
		in, name, err := openInput(nil)
		require.NoError(t, err)
		defer in.Close()
		assert.Equal(t, "stdin", name)
	})

	t.Run("dash reads stdin", func(t *testing.T) {
		in, name, err := openInput([]string{"-"})
		require.NoError(t, err)
		defer in.Close()
		assert.Equal(t, "stdin", name)
	})

	t.Run("file argument opens the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "input.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

		in, name, err := openInput([]string{path})
		require.NoError(t, err)
		defer in.Close()
		assert.Equal(t, path, name)
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, _, err := openInput([]string{filepath.Join(t.TempDir(), "absent.txt")})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "opening input"))
	})
}
