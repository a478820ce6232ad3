// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns OCR XML and HTML markup into normalised plain text.
//
// Text nodes are taken in document order, each trimmed, empty nodes dropped,
// and the remainder joined with a single space; runs of whitespace inside a
// node collapse to one space. The result is NFC-normalised. Extraction never
// fails: markup that cannot be parsed at all yields "", which callers treat
// as "skip, do not emit".
package extract

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"
)

// Kind identifies the markup dialect of a payload.
type Kind int

const (
	KindUnknown Kind = iota
	KindXML
	KindHTML
)

func (k Kind) String() string {
	switch k {
	case KindXML:
		return "xml"
	case KindHTML:
		return "html"
	default:
		return "unknown"
	}
}

// removedHTML lists elements that carry no visible text.
const removedHTML = "script, style, noscript, template, head, meta, link, title"

// DetectKind classifies a payload from its Content-Type header, falling back
// to sniffing the first bytes.
func DetectKind(contentType string, raw []byte) Kind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "html"):
		return KindHTML
	case strings.Contains(ct, "xml"):
		return KindXML
	}

	head := bytes.TrimLeft(raw, "\ufeff \t\r\n")
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	switch {
	case bytes.HasPrefix(lower, []byte("<?xml")):
		return KindXML
	case bytes.HasPrefix(lower, []byte("<!doctype html")), bytes.HasPrefix(lower, []byte("<html")):
		return KindHTML
	case bytes.HasPrefix(lower, []byte("<")):
		return KindXML
	}
	return KindUnknown
}

// Text extracts plain text from raw markup of the given kind.
func Text(raw []byte, kind Kind) string {
	switch kind {
	case KindXML:
		return FromXML(raw)
	case KindHTML:
		return FromHTML(raw)
	default:
		return ""
	}
}

// FromXML extracts the text of every element, in document order, recovering
// from malformed markup. Element names carry no meaning here: OCR dialects
// such as TEI use <head> for headings. A syntax error part-way through keeps
// the text collected up to that point.
func FromXML(raw []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	var parts []string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if t, ok := tok.(xml.CharData); ok {
			parts = appendText(parts, string(t))
		}
	}
	return join(parts)
}

// FromHTML extracts visible text from an HTML page after removing scripts,
// styles, and metadata-only elements.
func FromHTML(raw []byte) string {
	if enc, _, _ := charset.DetermineEncoding(raw, ""); enc != nil {
		if decoded, err := enc.NewDecoder().Bytes(raw); err == nil {
			raw = decoded
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	doc.Find(removedHTML).Remove()

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = appendText(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return join(parts)
}

// appendText collapses whitespace in s and appends it when non-empty.
func appendText(parts []string, s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return parts
	}
	return append(parts, strings.Join(fields, " "))
}

func join(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return norm.NFC.String(strings.Join(parts, " "))
}
