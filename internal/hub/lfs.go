// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hub

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/pdiddy/sgd-harvest/internal/httputil"
	"github.com/pdiddy/sgd-harvest/internal/shard"
)

// Upload modes reported by the preupload endpoint.
const (
	modeRegular = "regular"
	modeLFS     = "lfs"
)

const (
	lfsMediaType = "application/vnd.git-lfs+json"
	sampleBytes  = 512
)

type preuploadFile struct {
	Path   string `json:"path"`
	Sample string `json:"sample"`
	Size   int64  `json:"size"`
}

type preuploadRequest struct {
	Files []preuploadFile `json:"files"`
}

type preuploadResponse struct {
	Files []struct {
		Path       string `json:"path"`
		UploadMode string `json:"uploadMode"`
	} `json:"files"`
}

// uploadModes asks the Hub which files must go through LFS. Files the
// response does not mention are sent inline.
func (c *Client) uploadModes(ctx context.Context, files []shard.File) (map[string]string, error) {
	req := preuploadRequest{}
	for _, f := range files {
		sample, size, err := readSample(f.Path)
		if err != nil {
			return nil, err
		}
		req.Files = append(req.Files, preuploadFile{
			Path:   c.RepoPath(f),
			Sample: base64.StdEncoding.EncodeToString(sample),
			Size:   size,
		})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling preupload request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/datasets/%s/preupload/%s", c.Endpoint, c.Repo, url.PathEscape(c.revision()))
	resp, err := c.post(ctx, endpoint, "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("preupload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("preupload: %s", describe(resp))
	}

	var out preuploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding preupload response: %w", err)
	}
	modes := make(map[string]string, len(out.Files))
	for _, f := range out.Files {
		modes[f.Path] = f.UploadMode
	}
	return modes, nil
}

func readSample(path string) ([]byte, int64, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer fh.Close()
	info, err := fh.Stat()
	if err != nil {
		return nil, 0, err
	}
	sample := make([]byte, sampleBytes)
	n, err := io.ReadFull(fh, sample)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return sample[:n], info.Size(), nil
}

// lfsObject identifies a file by content hash.
type lfsObject struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

type lfsAction struct {
	Href   string            `json:"href"`
	Header map[string]string `json:"header,omitempty"`
}

type lfsBatchRequest struct {
	Operation string      `json:"operation"`
	Transfers []string    `json:"transfers"`
	Objects   []lfsObject `json:"objects"`
	HashAlgo  string      `json:"hash_algo"`
	Ref       struct {
		Name string `json:"name"`
	} `json:"ref"`
}

type lfsBatchResponse struct {
	Objects []struct {
		lfsObject
		Actions map[string]lfsAction `json:"actions"`
		Error   *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"objects"`
}

// lfsFile is the commit entry for a file uploaded through LFS.
type lfsFile struct {
	Path string `json:"path"`
	Algo string `json:"algo"`
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

// hashFile returns the sha256 object id and size of path.
func hashFile(path string) (lfsObject, error) {
	fh, err := os.Open(path)
	if err != nil {
		return lfsObject{}, err
	}
	defer fh.Close()
	h := sha256.New()
	n, err := io.Copy(h, fh)
	if err != nil {
		return lfsObject{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return lfsObject{OID: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// uploadLFS stores files in the repository's LFS storage and returns their
// commit entries. Objects the Hub already holds are not uploaded again.
func (c *Client) uploadLFS(ctx context.Context, files []shard.File) ([]lfsFile, error) {
	objects := make([]lfsObject, len(files))
	byOID := make(map[string]shard.File, len(files))
	entries := make([]lfsFile, len(files))
	for i, f := range files {
		obj, err := hashFile(f.Path)
		if err != nil {
			return nil, err
		}
		objects[i] = obj
		byOID[obj.OID] = f
		entries[i] = lfsFile{Path: c.RepoPath(f), Algo: "sha256", OID: obj.OID, Size: obj.Size}
	}

	batch := lfsBatchRequest{Operation: "upload", Transfers: []string{"basic"}, Objects: objects, HashAlgo: "sha256"}
	batch.Ref.Name = c.revision()
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshaling LFS batch: %w", err)
	}

	endpoint := fmt.Sprintf("%s/datasets/%s.git/info/lfs/objects/batch", c.Endpoint, c.Repo)
	resp, err := c.send(ctx, http.MethodPost, endpoint, lfsMediaType, nil, bytes.NewReader(body), int64(len(body)), nil)
	if err != nil {
		return nil, fmt.Errorf("LFS batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("LFS batch: %s", describe(resp))
	}
	var out lfsBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding LFS batch response: %w", err)
	}

	for _, obj := range out.Objects {
		if obj.Error != nil {
			return nil, fmt.Errorf("LFS object %s: %d %s", obj.OID, obj.Error.Code, obj.Error.Message)
		}
		f, ok := byOID[obj.OID]
		if !ok {
			continue
		}
		if up, ok := obj.Actions["upload"]; ok {
			if err := c.putObject(ctx, up, f.Path, obj.Size); err != nil {
				return nil, err
			}
		}
		if verify, ok := obj.Actions["verify"]; ok {
			if err := c.verifyObject(ctx, verify, obj.lfsObject); err != nil {
				return nil, err
			}
		}
	}
	c.Log.Debug().Int("files", len(files)).Msg("LFS objects stored")
	return entries, nil
}

func (c *Client) putObject(ctx context.Context, action lfsAction, path string, size int64) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	reopen := func() (io.ReadCloser, error) { return os.Open(path) }
	resp, err := c.send(ctx, http.MethodPut, action.Href, "application/octet-stream", action.Header, fh, size, reopen)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("uploading %s: %s", path, describe(resp))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) verifyObject(ctx context.Context, action lfsAction, obj lfsObject) error {
	body, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodPost, action.Href, lfsMediaType, action.Header, bytes.NewReader(body), int64(len(body)), nil)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", obj.OID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("verifying %s: %s", obj.OID, describe(resp))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// send issues a request with retry. Headers from an LFS action replace the
// Hub bearer token, since pre-signed storage URLs carry their own auth.
func (c *Client) send(ctx context.Context, method, endpoint, contentType string, header map[string]string, body io.Reader, size int64, reopen func() (io.ReadCloser, error)) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.ContentLength = size
	if reopen != nil {
		req.GetBody = reopen
	}
	req.Header.Set("Content-Type", contentType)
	if contentType == lfsMediaType {
		req.Header.Set("Accept", lfsMediaType)
	}
	if len(header) > 0 {
		for k, v := range header {
			req.Header.Set(k, v)
		}
	} else if method != http.MethodPut {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	return httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
}
