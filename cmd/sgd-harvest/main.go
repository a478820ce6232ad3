// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the sgd-harvest CLI, which harvests
// the Staten-Generaal Digitaal collection into a Hugging Face dataset.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sgd-harvest/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds credentials loaded from .secrets/ at startup.
	loadedSecrets map[string]string

	logger = zerolog.Nop()
)

// rootCmd is the base command for the sgd-harvest CLI.
var rootCmd = &cobra.Command{
	Use:   "sgd-harvest",
	Short: "Harvest Staten-Generaal Digitaal OCR text into dataset shards",
	Long: `sgd-harvest walks the Staten-Generaal Digitaal collection of
repository.overheid.nl, extracts plain text from each document's OCR XML,
and writes it to bounded JSONL shards. Shards can be pushed to a Hugging Face
dataset repository. Progress is kept in a state directory so repeated runs
only fetch what is new.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		logger = newLogger(os.Stderr, verbose, jsonLogs)

		if f := viper.ConfigFileUsed(); f != "" {
			logger.Info().Str("file", f).Msg("using config file")
		}

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./sgd-harvest.yaml or ~/.config/sgd-harvest/config.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of credential files")
	rootCmd.PersistentFlags().String("state-dir", "", "state directory (default \"state\")")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON lines instead of console text")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("sgd-harvest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "sgd-harvest"))
		}
	}

	configureViper(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

// newLogger builds the process logger: human-readable console output by
// default, JSON lines when jsonLogs is set.
func newLogger(w io.Writer, verbose, jsonLogs bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if !jsonLogs {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
