// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Segments returns the path segments of p beyond root, or nil when p does
// not lie under root.
func Segments(root, p string) []string {
	root = strings.TrimSuffix(root, "/")
	p = strings.TrimSuffix(p, "/")
	if !strings.HasPrefix(p, root+"/") {
		return nil
	}
	rest := strings.Trim(p[len(root):], "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

// IsSubarea reports whether p is exactly one segment below root.
func IsSubarea(root, p string) bool {
	return len(Segments(root, p)) == 1
}

// IsDocument reports whether p is exactly two segments below root.
func IsDocument(root, p string) bool {
	return len(Segments(root, p)) == 2
}

// SubareaOf returns the subarea path containing document path p, or "".
func SubareaOf(root, p string) string {
	segs := Segments(root, p)
	if len(segs) < 1 {
		return ""
	}
	return strings.TrimSuffix(root, "/") + "/" + segs[0]
}

// Links returns the same-host link paths on an HTML page, resolved against
// base, with query string, fragment, and trailing slash removed. Links are
// returned in page order and may repeat.
func Links(body []byte, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing listing page: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if p, ok := resolvePath(base, href); ok {
			links = append(links, p)
		}
	})
	return links, nil
}

// resolvePath resolves href against base and returns its path when it stays
// on base's host.
func resolvePath(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Host != base.Host {
		return "", false
	}
	p := strings.TrimSuffix(resolved.Path, "/")
	if p == "" {
		return "", false
	}
	return p, true
}

// dirURL returns origin+path with a trailing slash, so relative links such
// as "1815/" resolve beneath the listing rather than beside it.
func dirURL(origin, path string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSuffix(origin, "/") + strings.TrimSuffix(path, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing listing URL: %w", err)
	}
	return u, nil
}
