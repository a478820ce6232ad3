package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingConfig is returned by Validate when a setting required for the
// requested run is absent.
var ErrMissingConfig = errors.New("missing required configuration")

// HTTPConfig holds transport settings shared by discovery, resolution, and
// upload.
type HTTPConfig struct {
	// Timeout bounds each individual request (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is sent with every request to the repository.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries is the number of retries on 5xx/429 responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Delay is the politeness pause between sequential page and item
	// fetches (default 200ms).
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`
}

// CrawlMode selects the discovery scheme.
type CrawlMode string

const (
	// ModePages walks the /frbr/sgd listing pages by offset.
	ModePages CrawlMode = "pages"
	// ModeSRU pages through the SRU search endpoint by start record.
	ModeSRU CrawlMode = "sru"
)

// DiscoveryConfig holds settings for listing-page discovery.
type DiscoveryConfig struct {
	// BaseURL is the repository origin, e.g. "https://repository.overheid.nl".
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// RootPath is the collection root, e.g. "/frbr/sgd".
	RootPath string `json:"root_path" yaml:"root_path" mapstructure:"root_path"`

	// Recent limits the crawl to the last N subareas in path order.
	// Zero crawls every subarea.
	Recent int `json:"recent" yaml:"recent" mapstructure:"recent"`
}

// SRUConfig holds settings for search-protocol discovery.
type SRUConfig struct {
	// URL is the SRU endpoint, e.g. "https://repository.overheid.nl/sru".
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// Query is the CQL query (default "c.product-area==sgd").
	Query string `json:"query" yaml:"query" mapstructure:"query"`

	// Version is the SRU protocol version (default "2.0").
	Version string `json:"version" yaml:"version" mapstructure:"version"`

	// BatchSize is maximumRecords per request (default 100).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
}

// VisitedBackend selects how the visited set is persisted.
type VisitedBackend string

const (
	VisitedFile   VisitedBackend = "file"
	VisitedSQLite VisitedBackend = "sqlite"
)

// StateConfig holds settings for persisted local state and shards.
type StateConfig struct {
	// Dir holds cursor.yaml, the visited set, and shards/ (default "state").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Visited selects the visited-set backend: file or sqlite.
	Visited VisitedBackend `json:"visited" yaml:"visited" mapstructure:"visited"`

	// ShardSize is the maximum number of records per shard (default 500).
	ShardSize int `json:"shard_size" yaml:"shard_size" mapstructure:"shard_size"`
}

// HubConfig holds settings for the remote dataset store.
type HubConfig struct {
	// Push enables uploading shards at the end of a run.
	Push bool `json:"push" yaml:"push" mapstructure:"push"`

	// Endpoint is the Hub origin (default "https://huggingface.co").
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// Repo is the dataset repository identifier, e.g. "org/name".
	Repo string `json:"repo" yaml:"repo" mapstructure:"repo"`

	// Token is the write token. It is never written back to disk.
	Token string `json:"-" yaml:"-" mapstructure:"token"`

	// Private creates the repository as private when it does not exist.
	Private bool `json:"private" yaml:"private" mapstructure:"private"`

	// Revision is the branch pushed to (default "main").
	Revision string `json:"revision" yaml:"revision" mapstructure:"revision"`

	// PathPrefix is the directory inside the dataset repo (default "data").
	PathPrefix string `json:"path_prefix" yaml:"path_prefix" mapstructure:"path_prefix"`

	// MaxShardBytes rejects shard files larger than this (default 500MB).
	MaxShardBytes int64 `json:"max_shard_bytes" yaml:"max_shard_bytes" mapstructure:"max_shard_bytes"`
}

// HarvestConfig groups every setting for one run. It is built once at
// startup and passed down explicitly.
type HarvestConfig struct {
	Mode      CrawlMode       `json:"mode" yaml:"mode" mapstructure:"mode"`
	HTTP      HTTPConfig      `json:"http" yaml:"http" mapstructure:"http"`
	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery" mapstructure:"discovery"`
	SRU       SRUConfig       `json:"sru" yaml:"sru" mapstructure:"sru"`
	State     StateConfig     `json:"state" yaml:"state" mapstructure:"state"`
	Hub       HubConfig       `json:"hub" yaml:"hub" mapstructure:"hub"`

	// MaxItems caps the number of items resolved per run. Zero is unlimited.
	MaxItems int `json:"max_items" yaml:"max_items" mapstructure:"max_items"`

	// Workers bounds concurrent file fetches within one item (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() HarvestConfig {
	return HarvestConfig{
		Mode: ModePages,
		HTTP: HTTPConfig{
			Timeout:    30 * time.Second,
			UserAgent:  "sgd-harvest/0.1 (+https://repository.overheid.nl/frbr/sgd)",
			MaxRetries: 3,
			Delay:      200 * time.Millisecond,
		},
		Discovery: DiscoveryConfig{
			BaseURL:  "https://repository.overheid.nl",
			RootPath: "/frbr/sgd",
		},
		SRU: SRUConfig{
			URL:       "https://repository.overheid.nl/sru",
			Query:     "c.product-area==sgd",
			Version:   "2.0",
			BatchSize: 100,
		},
		State: StateConfig{
			Dir:       "state",
			Visited:   VisitedFile,
			ShardSize: 500,
		},
		Hub: HubConfig{
			Endpoint:      "https://huggingface.co",
			Revision:      "main",
			PathPrefix:    "data",
			MaxShardBytes: 500 << 20,
		},
		MaxItems: 500,
		Workers:  4,
	}
}

// Validate reports configuration that would make the run fail or waste
// network activity. Missing upload credentials are only an error when Push
// is set.
func (c HarvestConfig) Validate() error {
	switch c.Mode {
	case ModePages, ModeSRU:
	default:
		return fmt.Errorf("unsupported mode %q: use %s or %s", c.Mode, ModePages, ModeSRU)
	}
	switch c.State.Visited {
	case VisitedFile, VisitedSQLite:
	default:
		return fmt.Errorf("unsupported visited backend %q: use %s or %s", c.State.Visited, VisitedFile, VisitedSQLite)
	}
	if c.State.ShardSize <= 0 {
		return fmt.Errorf("shard size must be positive, got %d", c.State.ShardSize)
	}
	if strings.TrimSpace(c.State.Dir) == "" {
		return fmt.Errorf("%w: state directory", ErrMissingConfig)
	}
	if c.Mode == ModePages && strings.TrimSpace(c.Discovery.BaseURL) == "" {
		return fmt.Errorf("%w: discovery base URL", ErrMissingConfig)
	}
	if c.Mode == ModeSRU && strings.TrimSpace(c.SRU.URL) == "" {
		return fmt.Errorf("%w: SRU URL", ErrMissingConfig)
	}
	if c.Hub.Push {
		var missing []string
		if strings.TrimSpace(c.Hub.Repo) == "" {
			missing = append(missing, "hub repo")
		}
		if strings.TrimSpace(c.Hub.Token) == "" {
			missing = append(missing, "hub token")
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
		}
	}
	return nil
}
