// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package shard

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/sgd-harvest/pkg/types"
)

func rec(i int) types.Record {
	return types.Record{URL: fmt.Sprintf("https://h/%d.xml", i), Content: fmt.Sprintf("tekst %d", i), Source: types.SourceName}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	require.NoError(t, sc.Err())
	return n
}

func TestWriter_BoundedShards(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 250, 1, "run")
	for i := 0; i < 501; i++ {
		require.NoError(t, w.Add(rec(i)))
	}
	require.NoError(t, w.Close())

	files := w.Flushed()
	require.Len(t, files, 3)
	assert.Equal(t, 250, countLines(t, files[0].Path))
	assert.Equal(t, 250, countLines(t, files[1].Path))
	assert.Equal(t, 1, countLines(t, files[2].Path))
	assert.Equal(t, "shard-00001.jsonl", files[0].Name())
	assert.Equal(t, "shard-00003.jsonl", files[2].Name())
}

func TestWriter_CompleteLandsWithLastRecord(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 2, 5, "")

	require.NoError(t, w.Add(rec(1), rec(2)))
	w.Complete("doc-a")
	assert.Empty(t, w.Flushed())

	require.NoError(t, w.Add(rec(3)))
	require.Len(t, w.Flushed(), 1)
	assert.Equal(t, []string{"doc-a"}, w.Flushed()[0].Manifest.Items)

	w.Complete("doc-b")
	require.NoError(t, w.Close())
	require.Len(t, w.Flushed(), 2)
	assert.Equal(t, []string{"doc-b"}, w.Flushed()[1].Manifest.Items)
	assert.Equal(t, 6, w.Flushed()[1].Manifest.Shard)
	assert.Equal(t, 7, w.Flushed()[1].Manifest.Cursor.NextShard)
}

func TestWriter_ItemWithoutRecords(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 10, 1, "")
	w.Complete("empty-doc")
	require.NoError(t, w.Close())

	files := w.Flushed()
	require.Len(t, files, 1)
	assert.Equal(t, 0, files[0].Manifest.Records)
	_, err := os.Stat(files[0].Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	pending, err := Pending(dir)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, []string{"empty-doc"}, pending[0].Manifest.Items)
}

func TestWriter_CloseWithNothing(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 10, 1, "")
	require.NoError(t, w.Close())
	assert.Empty(t, w.Flushed())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriter_OnFlushErrorStops(t *testing.T) {
	w := NewWriter(t.TempDir(), 1, 1, "")
	w.OnFlush = func(File) error { return errors.New("commit failed") }

	require.NoError(t, w.Add(rec(1)))
	err := w.Add(rec(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit failed")
	assert.Error(t, w.Add(rec(3)))
	assert.Error(t, w.Close())
}

func TestEncode_NoEscaping(t *testing.T) {
	data, err := Encode([]types.Record{{URL: "https://h/a?x=1&y=2", Content: "café <b> ĳ", Source: types.SourceName}})
	require.NoError(t, err)
	assert.Equal(t, `{"url":"https://h/a?x=1&y=2","content":"café <b> ĳ","source":"Statengeneraal Digitaal"}`+"\n", string(data))

	var back types.Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "café <b> ĳ", back.Content)
}

func TestPending_ManifestsOnlyInOrder(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 1, 9, "r1")
	w.SetCursor(types.Cursor{Start: 11, NextShard: 1})
	require.NoError(t, w.Add(rec(1)))
	w.Complete("a")
	require.NoError(t, w.Add(rec(2)))
	w.Complete("b")
	require.NoError(t, w.Close())

	// An interrupted flush leaves a data file with no manifest.
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName(42)), []byte("{}\n"), 0o644))

	pending, err := Pending(dir)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 9, pending[0].Manifest.Shard)
	assert.Equal(t, 10, pending[1].Manifest.Shard)
	assert.Equal(t, []string{"a", "b"}, Items(pending))
	assert.Equal(t, "r1", pending[0].Manifest.RunID)

	c := Cursor(types.NewCursor(), pending)
	assert.Equal(t, 11, c.Start)
	assert.Equal(t, 11, c.NextShard)
	assert.Equal(t, 11, NextNumber(types.Cursor{Start: 1, NextShard: 3}, pending))
	assert.Equal(t, 20, NextNumber(types.Cursor{Start: 1, NextShard: 20}, pending))

	require.NoError(t, Remove(pending))
	pending, err = Pending(dir)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPending_MissingDir(t *testing.T) {
	pending, err := Pending(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Nil(t, pending)
}
