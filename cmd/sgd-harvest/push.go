// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sgd-harvest/internal/harvest"
	"github.com/pdiddy/sgd-harvest/internal/hub"
	"github.com/pdiddy/sgd-harvest/internal/state"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload shards left in the state directory",
	Long: `Upload every complete shard in the state directory to the Hugging Face
dataset without crawling. On success the shards' items are marked visited and
the local files are removed.`,
	Args: cobra.NoArgs,
	RunE: runPush,
}

func init() {
	f := pushCmd.Flags()
	f.String("hf-repo", "", "dataset repository (org/name)")
	f.String("hf-token", "", "Hugging Face write token")
	f.Bool("private", false, "create the dataset repository as private")
	f.String("revision", "", "dataset branch")
	f.String("visited", "", "visited set backend: file or sqlite")
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	viper.Set("hub.push", true)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.State)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := harvest.PushPending(cmd.Context(), hub.NewClient(cfg.Hub, cfg.HTTP, logger), store, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pushed %d shard(s), committed %d item(s)\n", res.Pushed, res.Committed)
	return nil
}
