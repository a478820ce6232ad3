// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package shard groups records into bounded NDJSON files. Each file has a
// YAML manifest naming the items it completes and the cursor reached, so a
// later run can finish committing shards an earlier run left behind.
package shard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sgd-harvest/internal/state"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

const (
	dataExt     = ".jsonl"
	manifestExt = ".manifest.yaml"
)

// Manifest describes one flushed shard.
type Manifest struct {
	Shard   int `yaml:"shard"`
	Records int `yaml:"records"`
	// Items are the identifiers whose last record is in this shard or an
	// earlier one of the same run.
	Items     []string     `yaml:"items"`
	Cursor    types.Cursor `yaml:"cursor"`
	RunID     string       `yaml:"run_id,omitempty"`
	CreatedAt time.Time    `yaml:"created_at"`
}

// File is a shard durable on local disk.
type File struct {
	// Path is the NDJSON file. It does not exist when Manifest.Records is 0.
	Path         string
	ManifestPath string
	Manifest     Manifest
}

// Name returns the base name of the data file.
func (f File) Name() string {
	return filepath.Base(f.Path)
}

// FileName returns the data file name of shard n.
func FileName(n int) string {
	return fmt.Sprintf("shard-%05d%s", n, dataExt)
}

// Writer buffers records and writes them out Size at a time.
type Writer struct {
	Dir   string
	Size  int
	RunID string
	// OnFlush runs after each shard is durable. An error stops the writer.
	OnFlush func(File) error

	next    int
	records []types.Record
	items   []string
	cursor  types.Cursor
	flushed []File
	err     error
}

// NewWriter returns a writer numbering its first shard next.
func NewWriter(dir string, size, next int, runID string) *Writer {
	if next < 1 {
		next = 1
	}
	return &Writer{Dir: dir, Size: size, RunID: runID, next: next, cursor: types.NewCursor()}
}

// Add buffers records. A buffer that reached Size is flushed before the
// next record is accepted, so Complete calls made right after the last
// record of an item land in the same shard.
func (w *Writer) Add(recs ...types.Record) error {
	if w.err != nil {
		return w.err
	}
	for _, r := range recs {
		if w.Size > 0 && len(w.records) >= w.Size {
			if err := w.flush(); err != nil {
				return err
			}
		}
		w.records = append(w.records, r)
	}
	return nil
}

// Complete records that every record of item id has been added.
func (w *Writer) Complete(id string) {
	w.items = append(w.items, id)
}

// SetCursor sets the cursor stored in the next manifest.
func (w *Writer) SetCursor(c types.Cursor) {
	w.cursor = c
}

// Buffered returns the number of records not yet flushed.
func (w *Writer) Buffered() int {
	return len(w.records)
}

// Flushed returns the shards written so far.
func (w *Writer) Flushed() []File {
	return w.flushed
}

// Close flushes whatever is buffered. Completed items without buffered
// records still get a manifest so they can be committed.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if len(w.records) == 0 && len(w.items) == 0 {
		return nil
	}
	return w.flush()
}

func (w *Writer) flush() error {
	n := w.next
	f := File{
		Path:         filepath.Join(w.Dir, FileName(n)),
		ManifestPath: filepath.Join(w.Dir, strings.TrimSuffix(FileName(n), dataExt)+manifestExt),
	}
	cursor := w.cursor
	cursor.NextShard = n + 1
	f.Manifest = Manifest{
		Shard:     n,
		Records:   len(w.records),
		Items:     append([]string(nil), w.items...),
		Cursor:    cursor,
		RunID:     w.RunID,
		CreatedAt: time.Now().UTC(),
	}

	if err := w.write(f); err != nil {
		w.err = err
		return err
	}

	w.next++
	w.records = w.records[:0]
	w.items = w.items[:0]
	w.flushed = append(w.flushed, f)

	if w.OnFlush != nil {
		if err := w.OnFlush(f); err != nil {
			w.err = fmt.Errorf("after flushing %s: %w", f.Name(), err)
			return w.err
		}
	}
	return nil
}

// write stores the data file and then the manifest. A data file without a
// manifest is an interrupted flush and is never treated as a shard.
func (w *Writer) write(f File) error {
	if f.Manifest.Records > 0 {
		data, err := Encode(w.records)
		if err != nil {
			return err
		}
		if err := state.WriteFileAtomic(f.Path, data); err != nil {
			return fmt.Errorf("writing shard: %w", err)
		}
	}
	meta, err := yaml.Marshal(f.Manifest)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := state.WriteFileAtomic(f.ManifestPath, meta); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Encode renders records as NDJSON with non-ASCII and HTML characters
// left unescaped.
func Encode(recs []types.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encoding record %s: %w", r.URL, err)
		}
	}
	return buf.Bytes(), nil
}

// Pending returns the shards in dir that have a manifest, in shard order.
// A missing directory has none.
func Pending(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading shard directory: %w", err)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), manifestExt) {
			continue
		}
		mpath := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(mpath)
		if err != nil {
			return nil, fmt.Errorf("reading manifest: %w", err)
		}
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing manifest %s: %w", e.Name(), err)
		}
		files = append(files, File{
			Path:         filepath.Join(dir, strings.TrimSuffix(e.Name(), manifestExt)+dataExt),
			ManifestPath: mpath,
			Manifest:     m,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Manifest.Shard < files[j].Manifest.Shard })
	return files, nil
}

// NextNumber returns the shard number following both the cursor and any
// pending shard.
func NextNumber(cursor types.Cursor, pending []File) int {
	n := cursor.NextShard
	for _, f := range pending {
		if f.Manifest.Shard >= n {
			n = f.Manifest.Shard + 1
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Items returns the item identifiers listed by files.
func Items(files []File) []string {
	var ids []string
	for _, f := range files {
		ids = append(ids, f.Manifest.Items...)
	}
	return ids
}

// Cursor returns the furthest cursor recorded by files, starting at base.
func Cursor(base types.Cursor, files []File) types.Cursor {
	c := base
	for _, f := range files {
		c = c.Advance(f.Manifest.Cursor)
	}
	return c
}

// Remove deletes the manifest and data files of shards. The manifest goes
// first so a shard is never pending without its data.
func Remove(files []File) error {
	var errs []error
	for _, f := range files {
		if err := os.Remove(f.ManifestPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
