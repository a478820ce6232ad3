// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sgd-harvest/internal/harvest"
	"github.com/pdiddy/sgd-harvest/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cursor, visited count, and shards on disk",
	Long: `Show the saved cursor, the number of visited items, and the shards in
the state directory. Pending shards are waiting for a confirmed upload and
their items are not yet visited. Local shards were committed by a run
without --push and remain on disk until the push command uploads them.`,
	Args: cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().String("visited", "", "visited set backend: file or sqlite")
	statusCmd.Flags().Bool("json", false, "print JSON instead of YAML")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := state.Open(cfg.State)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := harvest.ReadStatus(cmd.Context(), store)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(st)
}
