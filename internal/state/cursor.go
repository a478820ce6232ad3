// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// LoadCursor reads the cursor at path. A missing file yields the initial
// cursor.
func LoadCursor(path string) (types.Cursor, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.NewCursor(), nil
	}
	if err != nil {
		return types.Cursor{}, fmt.Errorf("reading cursor: %w", err)
	}

	c := types.NewCursor()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return types.Cursor{}, fmt.Errorf("parsing cursor %s: %w", path, err)
	}
	if c.Start < 1 {
		c.Start = 1
	}
	if c.NextShard < 1 {
		c.NextShard = 1
	}
	return c, nil
}

// SaveCursor writes c to path atomically.
func SaveCursor(path string, c types.Cursor) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling cursor: %w", err)
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a temporary file beside path, syncs it,
// and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
