// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hub publishes shard files to a Hugging Face dataset repository
// through the Hub HTTP API. Every push is a single commit, so a shard set
// is either fully published or not at all.
package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/sgd-harvest/internal/shard"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// ErrPushFailed marks an upload the Hub did not confirm.
var ErrPushFailed = errors.New("push failed")

// Sink is a destination for shard files.
type Sink interface {
	// EnsureRepo creates the destination when it does not exist.
	EnsureRepo(ctx context.Context) error
	// Push publishes files in one all-or-nothing commit. It returns nil
	// only once the destination has confirmed the commit.
	Push(ctx context.Context, files []shard.File, summary string) error
}

// Client talks to the Hugging Face Hub.
type Client struct {
	HTTP          *http.Client
	Endpoint      string
	Repo          string
	Token         string
	Private       bool
	Revision      string
	PathPrefix    string
	MaxShardBytes int64
	MaxRetries    int
	Log           zerolog.Logger
}

// NewClient builds a Client from cfg.
func NewClient(cfg types.HubConfig, httpCfg types.HTTPConfig, log zerolog.Logger) *Client {
	return &Client{
		HTTP:          &http.Client{},
		Endpoint:      strings.TrimSuffix(cfg.Endpoint, "/"),
		Repo:          cfg.Repo,
		Token:         cfg.Token,
		Private:       cfg.Private,
		Revision:      cfg.Revision,
		PathPrefix:    cfg.PathPrefix,
		MaxShardBytes: cfg.MaxShardBytes,
		MaxRetries:    httpCfg.MaxRetries,
		Log:           log,
	}
}

type createRepoRequest struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Private      bool   `json:"private"`
}

// EnsureRepo creates the dataset repository. An existing repository is not
// an error.
func (c *Client) EnsureRepo(ctx context.Context) error {
	org, name := splitRepo(c.Repo)
	body, err := json.Marshal(createRepoRequest{Type: "dataset", Name: name, Organization: org, Private: c.Private})
	if err != nil {
		return fmt.Errorf("marshaling repo request: %w", err)
	}

	resp, err := c.post(ctx, c.Endpoint+"/api/repos/create", "application/json", body)
	if err != nil {
		return fmt.Errorf("creating repo %s: %w", c.Repo, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		c.Log.Debug().Str("repo", c.Repo).Msg("dataset repo exists")
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		c.Log.Info().Str("repo", c.Repo).Bool("private", c.Private).Msg("created dataset repo")
		return nil
	default:
		return fmt.Errorf("creating repo %s: %s", c.Repo, describe(resp))
	}
}

type commitLine struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type commitHeader struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
}

type commitFile struct {
	Content  string `json:"content"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
}

// Push uploads the data files of files as one commit. Shards without
// records have nothing to upload and are skipped. The Hub's preupload
// answer decides per file between an inline base64 entry and an LFS
// upload referenced from the commit.
func (c *Client) Push(ctx context.Context, files []shard.File, summary string) error {
	var upload []shard.File
	for _, f := range files {
		if f.Manifest.Records == 0 {
			continue
		}
		info, err := os.Stat(f.Path)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPushFailed, err)
		}
		if c.MaxShardBytes > 0 && info.Size() > c.MaxShardBytes {
			return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrPushFailed, f.Name(), info.Size(), c.MaxShardBytes)
		}
		upload = append(upload, f)
	}
	if len(upload) == 0 {
		return nil
	}

	modes, err := c.uploadModes(ctx, upload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	var inline, large []shard.File
	for _, f := range upload {
		if modes[c.RepoPath(f)] == modeLFS {
			large = append(large, f)
		} else {
			inline = append(inline, f)
		}
	}
	var lfs []lfsFile
	if len(large) > 0 {
		if lfs, err = c.uploadLFS(ctx, large); err != nil {
			return fmt.Errorf("%w: %w", ErrPushFailed, err)
		}
	}

	payload, err := c.commitPayload(inline, lfs, summary)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}

	endpoint := fmt.Sprintf("%s/api/datasets/%s/commit/%s", c.Endpoint, c.Repo, url.PathEscape(c.revision()))
	resp, err := c.post(ctx, endpoint, "application/x-ndjson", payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrPushFailed, describe(resp))
	}
	io.Copy(io.Discard, resp.Body)

	c.Log.Info().Str("repo", c.Repo).Int("files", len(upload)).Msg("pushed shards")
	return nil
}

// RepoPath returns the path of a shard inside the dataset repository.
func (c *Client) RepoPath(f shard.File) string {
	if c.PathPrefix == "" {
		return f.Name()
	}
	return path.Join(c.PathPrefix, f.Name())
}

// commitPayload renders the NDJSON commit: a header line, one inline "file"
// line per entry of files, and one "lfsFile" line per entry of lfs.
func (c *Client) commitPayload(files []shard.File, lfs []lfsFile, summary string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	records := 0
	for _, f := range files {
		records += f.Manifest.Records
	}
	description := fmt.Sprintf("%d shard files, %d records", len(files)+len(lfs), records)
	if len(lfs) > 0 {
		description = fmt.Sprintf("%d shard files (%d via LFS)", len(files)+len(lfs), len(lfs))
	}
	header := commitHeader{
		Summary:     summary,
		Description: description,
	}
	if err := enc.Encode(commitLine{Key: "header", Value: header}); err != nil {
		return nil, err
	}
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name(), err)
		}
		line := commitLine{Key: "file", Value: commitFile{
			Content:  base64.StdEncoding.EncodeToString(data),
			Path:     c.RepoPath(f),
			Encoding: "base64",
		}}
		if err := enc.Encode(line); err != nil {
			return nil, err
		}
	}
	for _, f := range lfs {
		if err := enc.Encode(commitLine{Key: "lfsFile", Value: f}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, body []byte) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, endpoint, contentType, nil, bytes.NewReader(body), int64(len(body)), nil)
}

func (c *Client) revision() string {
	if c.Revision == "" {
		return "main"
	}
	return c.Revision
}

// splitRepo splits "org/name" into its parts; a bare name has no org.
func splitRepo(repo string) (org, name string) {
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		return repo[:i], repo[i+1:]
	}
	return "", repo
}

// describe summarizes an error response without its full body.
func describe(resp *http.Response) string {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		return fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, msg)
}
