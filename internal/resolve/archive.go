// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"

	"github.com/pdiddy/sgd-harvest/internal/httputil"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// maxEntryBytes caps a single decompressed archive entry.
const maxEntryBytes = 256 << 20

// ArchiveStrategy downloads a document's bundle (<doc>/?format=zip) and
// yields its OCR XML entries.
type ArchiveStrategy struct {
	Client  Fetcher
	BaseURL string
}

func (a *ArchiveStrategy) Name() string { return "archive" }

// ArchiveURL returns the bundle URL of a document path.
func (a *ArchiveStrategy) ArchiveURL(docPath string) string {
	return documentURL(a.BaseURL, docPath) + "/?format=zip"
}

// Resolve fetches and opens the bundle. A 404, an unreadable archive, or an
// archive without OCR entries falls back.
func (a *ArchiveStrategy) Resolve(ctx context.Context, item types.Item) (iter.Seq2[types.Source, error], error) {
	zipURL := a.ArchiveURL(item.Path)
	resp, err := a.Client.Get(ctx, zipURL)
	if err != nil {
		if errors.Is(err, httputil.ErrNotFound) {
			return nil, fallback(err)
		}
		return nil, fmt.Errorf("fetching archive: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(resp.Body), int64(len(resp.Body)))
	if err != nil {
		return nil, fallback(fmt.Errorf("opening archive %s: %w", zipURL, err))
	}

	var entries []*zip.File
	for _, f := range zr.File {
		if IsOCREntry(f.Name) {
			entries = append(entries, f)
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: archive %s has no OCR entries", ErrNoLink, zipURL)
	}

	return func(yield func(types.Source, error) bool) {
		for _, f := range entries {
			body, err := readEntry(f)
			if err != nil {
				yield(types.Source{}, fmt.Errorf("reading %s#%s: %w", zipURL, f.Name, err))
				return
			}
			src := types.Source{URL: zipURL + "#" + f.Name, ContentType: "application/xml", Body: body}
			if !yield(src, nil) {
				return
			}
		}
	}, nil
}

// IsOCREntry reports whether an archive entry holds OCR text: an .xml file
// that is not a metadata, manifest, or DIDL descriptor.
func IsOCREntry(name string) bool {
	if strings.HasSuffix(name, "/") {
		return false
	}
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".xml") {
		return false
	}
	if strings.Contains(lower, "metadata") {
		return false
	}
	switch path.Base(lower) {
	case "manifest.xml", "didl.xml":
		return false
	}
	return true
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	body, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxEntryBytes {
		return nil, fmt.Errorf("entry larger than %d bytes", maxEntryBytes)
	}
	return body, nil
}
