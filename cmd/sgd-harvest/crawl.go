// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/sgd-harvest/internal/harvest"
	"github.com/pdiddy/sgd-harvest/internal/httputil"
	"github.com/pdiddy/sgd-harvest/internal/hub"
	"github.com/pdiddy/sgd-harvest/internal/state"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Harvest new documents into shards",
	Long: `Walk the collection from the saved cursor, fetch and extract every
document not yet visited, and write the text to JSONL shards in the state
directory. With --push the shards are uploaded to the Hugging Face dataset
and the visited set advances only after the upload is confirmed.`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	f := crawlCmd.Flags()
	f.String("mode", string(types.ModePages), "discovery mode: pages or sru")
	f.Int("max-items", 0, "stop after harvesting this many items (0 = no limit)")
	f.Int("workers", 0, "concurrent file fetches per item")
	f.Duration("timeout", 0, "HTTP request timeout")
	f.Duration("delay", 0, "minimum delay between request waves")
	f.Int("retries", 0, "retries for transient HTTP failures")
	f.String("user-agent", "", "User-Agent header")
	f.String("base-url", "", "repository base URL")
	f.Int("recent", 0, "only walk the N most recent year directories (0 = all)")
	f.String("sru-url", "", "SRU endpoint")
	f.String("query", "", "SRU CQL query")
	f.Int("batch-size", 0, "SRU records per page")
	f.String("visited", string(types.VisitedFile), "visited set backend: file or sqlite")
	f.Int("shard-size", 0, "records per shard")
	f.Bool("push", false, "upload shards to the Hugging Face dataset")
	f.String("hf-repo", "", "dataset repository (org/name)")
	f.String("hf-token", "", "Hugging Face write token")
	f.Bool("private", false, "create the dataset repository as private")
	f.String("revision", "", "dataset branch")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.State)
	if err != nil {
		return err
	}
	defer store.Close()

	var sink hub.Sink
	if cfg.Hub.Push {
		sink = hub.NewClient(cfg.Hub, cfg.HTTP, logger)
	}

	h := harvest.New(cfg, httputil.NewClient(cfg.HTTP), store, sink, logger)
	logger.Info().
		Str("run_id", h.RunID).
		Str("mode", string(cfg.Mode)).
		Str("state", cfg.State.Dir).
		Bool("push", cfg.Hub.Push).
		Int("max_items", cfg.MaxItems).
		Msg("starting crawl")

	// Failed items and an unconfirmed push are reported, not fatal: the
	// next run retries them.
	summary, err := h.Run(cmd.Context())
	printSummary(cmd.OutOrStdout(), summary)
	if summary.HasFailures() {
		logger.Warn().Int("failed", summary.Failed).AnErr("push", summary.PushErr).Msg("run finished with failures")
	}
	return err
}

func printSummary(w io.Writer, s harvest.Summary) {
	fmt.Fprintf(w, "run %s\n", s.RunID)
	fmt.Fprintf(w, "  items:     %d harvested, %d skipped, %d failed\n", s.Harvested, s.Skipped, s.Failed)
	fmt.Fprintf(w, "  records:   %d (%d empty)\n", s.Records, s.Empty)
	fmt.Fprintf(w, "  shards:    %d written, %d pushed\n", s.Shards, s.Pushed)
	fmt.Fprintf(w, "  committed: %d\n", s.Committed)
	if s.PushErr != nil {
		fmt.Fprintf(w, "  push:      %v\n", s.PushErr)
	}
}
