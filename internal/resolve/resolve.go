// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve turns a discovered item into the markup sources that hold
// its text. Strategies are tried in order; a strategy that cannot serve an
// item reports ErrFallback and the next one is tried.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/pdiddy/sgd-harvest/internal/httputil"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

var (
	// ErrFallback marks a strategy failure that should move on to the next
	// strategy instead of aborting the item.
	ErrFallback = errors.New("strategy not applicable")

	// ErrNoLink means the expected link was absent from a page.
	ErrNoLink = fmt.Errorf("%w: no matching link", ErrFallback)

	// ErrUnresolved means every strategy fell back.
	ErrUnresolved = errors.New("no strategy could resolve item")
)

// Fetcher retrieves a URL. *httputil.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*httputil.Response, error)
}

// Strategy locates the sources of one item. Resolve does the lookups that
// decide whether the strategy applies and returns a sequence that fetches
// the sources. An error matching ErrFallback hands the item to the next
// strategy; any other error, from Resolve or from the sequence, aborts it.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, item types.Item) (iter.Seq2[types.Source, error], error)
}

// Resolver tries Strategies in order and uses the first that applies.
type Resolver struct {
	Strategies []Strategy
	Log        zerolog.Logger
}

// NewResolver returns a resolver over strategies.
func NewResolver(log zerolog.Logger, strategies ...Strategy) *Resolver {
	return &Resolver{Strategies: strategies, Log: log}
}

// Resolve returns the sources of item and the name of the strategy that
// produced them.
func (r *Resolver) Resolve(ctx context.Context, item types.Item) (iter.Seq2[types.Source, error], string, error) {
	for _, s := range r.Strategies {
		seq, err := s.Resolve(ctx, item)
		if err == nil {
			return seq, s.Name(), nil
		}
		if !errors.Is(err, ErrFallback) {
			return nil, s.Name(), fmt.Errorf("%s: %w", s.Name(), err)
		}
		r.Log.Debug().Str("item", item.ID).Str("strategy", s.Name()).Err(err).Msg("falling back")
	}
	return nil, "", fmt.Errorf("%s: %w", item.ID, ErrUnresolved)
}

// fallback marks err as a reason to try the next strategy.
func fallback(err error) error {
	return fmt.Errorf("%w: %w", ErrFallback, err)
}

// documentURL joins the repository origin and an item path.
func documentURL(baseURL, path string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.Trim(path, "/")
}

// findLinks returns the absolute URLs of the links on an HTML page whose
// path ends in suffix (case-insensitive), in page order without repeats.
func findLinks(body []byte, pageURL string, suffix string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page URL: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	suffix = strings.ToLower(suffix)
	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		u := base.ResolveReference(ref)
		u.Fragment = ""
		if !strings.HasSuffix(strings.ToLower(strings.TrimSuffix(u.Path, "/")), suffix) {
			return
		}
		abs := u.String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, abs)
	})
	return links, nil
}
