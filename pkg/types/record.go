// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SourceName is the constant source field of every emitted Record.
const SourceName = "Statengeneraal Digitaal"

// Record is one extracted document text as written to shards and pushed to
// the dataset store.
type Record struct {
	// URL identifies the origin resource. Entries read from a ZIP bundle
	// carry the entry name as a fragment ("...?format=zip#ocr/page1.xml").
	URL string `json:"url" yaml:"url"`

	// Content is the extracted plain text. Never empty.
	Content string `json:"content" yaml:"content"`

	// Source is always SourceName.
	Source string `json:"source" yaml:"source"`
}

// Item is a unit of discovery: a document path in pages mode, or a search
// record in SRU mode.
type Item struct {
	// ID is the identifier recorded in the visited set.
	ID string `json:"id" yaml:"id"`

	// Path is the document path ("/frbr/sgd/<subarea>/<document>") in
	// pages mode.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// URLs are absolute content locators in SRU mode.
	URLs []string `json:"urls,omitempty" yaml:"urls,omitempty"`
}

// Source is one raw OCR or markup payload produced by resolution.
type Source struct {
	URL         string
	ContentType string
	Body        []byte
}

// Cursor is the resumable position persisted between runs.
type Cursor struct {
	// Start is the next SRU startRecord (1-based).
	Start int `json:"start" yaml:"start"`

	// NextShard is the number given to the next shard file.
	NextShard int `json:"next_shard" yaml:"next_shard"`

	// Subarea is the last subarea whose documents were all committed.
	Subarea string `json:"subarea,omitempty" yaml:"subarea,omitempty"`
}

// NewCursor returns the cursor of a fresh harvest.
func NewCursor() Cursor {
	return Cursor{Start: 1, NextShard: 1}
}

// Advance merges other into c. Numeric positions never move backwards;
// Subarea follows other when set.
func (c Cursor) Advance(other Cursor) Cursor {
	if other.Start > c.Start {
		c.Start = other.Start
	}
	if other.NextShard > c.NextShard {
		c.NextShard = other.NextShard
	}
	if other.Subarea != "" {
		c.Subarea = other.Subarea
	}
	return c
}
