// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sgd-harvest/internal/secrets"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// flagKeys maps command-line flags to configuration keys. A flag overrides
// the config file and environment only when it is set explicitly.
var flagKeys = map[string]string{
	"mode":       "mode",
	"max-items":  "max_items",
	"workers":    "workers",
	"timeout":    "http.timeout",
	"delay":      "http.delay",
	"retries":    "http.max_retries",
	"user-agent": "http.user_agent",
	"base-url":   "discovery.base_url",
	"recent":     "discovery.recent",
	"sru-url":    "sru.url",
	"query":      "sru.query",
	"batch-size": "sru.batch_size",
	"state-dir":  "state.dir",
	"visited":    "state.visited",
	"shard-size": "state.shard_size",
	"push":       "hub.push",
	"hf-repo":    "hub.repo",
	"hf-token":   "hub.token",
	"private":    "hub.private",
	"revision":   "hub.revision",
}

// configureViper installs defaults and environment bindings on v.
// Environment variables use the SGD_HARVEST_ prefix with dots replaced by
// underscores (SGD_HARVEST_HUB_REPO). HF_TOKEN and HF_DATASET_REPO are
// also honoured.
func configureViper(v *viper.Viper) {
	d := types.DefaultConfig()
	v.SetDefault("mode", string(d.Mode))
	v.SetDefault("max_items", d.MaxItems)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("http.max_retries", d.HTTP.MaxRetries)
	v.SetDefault("http.delay", d.HTTP.Delay)
	v.SetDefault("discovery.base_url", d.Discovery.BaseURL)
	v.SetDefault("discovery.root_path", d.Discovery.RootPath)
	v.SetDefault("discovery.recent", d.Discovery.Recent)
	v.SetDefault("sru.url", d.SRU.URL)
	v.SetDefault("sru.query", d.SRU.Query)
	v.SetDefault("sru.version", d.SRU.Version)
	v.SetDefault("sru.batch_size", d.SRU.BatchSize)
	v.SetDefault("state.dir", d.State.Dir)
	v.SetDefault("state.visited", string(d.State.Visited))
	v.SetDefault("state.shard_size", d.State.ShardSize)
	v.SetDefault("hub.push", d.Hub.Push)
	v.SetDefault("hub.endpoint", d.Hub.Endpoint)
	v.SetDefault("hub.repo", d.Hub.Repo)
	v.SetDefault("hub.token", "")
	v.SetDefault("hub.private", d.Hub.Private)
	v.SetDefault("hub.revision", d.Hub.Revision)
	v.SetDefault("hub.path_prefix", d.Hub.PathPrefix)
	v.SetDefault("hub.max_shard_bytes", d.Hub.MaxShardBytes)

	v.SetEnvPrefix("SGD_HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("hub.token", "SGD_HARVEST_HUB_TOKEN", "HF_TOKEN")
	v.BindEnv("hub.repo", "SGD_HARVEST_HUB_REPO", "HF_DATASET_REPO")
	v.BindEnv("hub.private", "SGD_HARVEST_HUB_PRIVATE", "HF_PRIVATE")
}

// bindFlags binds the flags cmd defines to their configuration keys.
// Binding happens per invoked command because several commands share keys.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}

// decodeConfig builds the run configuration from v, filling the upload
// token from the secrets directory when no other source set it.
func decodeConfig(v *viper.Viper, s map[string]string) (types.HarvestConfig, error) {
	var cfg types.HarvestConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.Hub.Token = secrets.Fill(cfg.Hub.Token, s, secrets.HFToken)
	return cfg, nil
}

// loadConfig binds cmd's flags and returns the validated configuration.
func loadConfig(cmd *cobra.Command) (types.HarvestConfig, error) {
	v := viper.GetViper()
	if err := bindFlags(v, cmd); err != nil {
		return types.HarvestConfig{}, err
	}
	cfg, err := decodeConfig(v, loadedSecrets)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
