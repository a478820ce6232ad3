// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover walks the repository's listing pages and SRU search
// results and yields item locators without loading the whole collection.
package discover

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pdiddy/sgd-harvest/internal/httputil"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// PageStep is the listing offset increment. The repository serves a fixed
// number of entries per listing page and addresses pages by start offset.
const PageStep = 11

// Fetcher retrieves a URL. *httputil.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*httputil.Response, error)
}

// Pages discovers subareas and documents through offset-paginated listing
// pages under a collection root.
type Pages struct {
	Client  Fetcher
	Pacer   *httputil.Pacer
	BaseURL string
	Root    string
	// Recent limits Items to the last N subareas in path order; zero
	// means all.
	Recent int
	Log    zerolog.Logger
}

// NewPages builds a Pages walker from cfg.
func NewPages(client Fetcher, pacer *httputil.Pacer, cfg types.DiscoveryConfig, log zerolog.Logger) *Pages {
	return &Pages{
		Client:  client,
		Pacer:   pacer,
		BaseURL: cfg.BaseURL,
		Root:    cfg.RootPath,
		Recent:  cfg.Recent,
		Log:     log,
	}
}

// PageURL returns the URL of the listing page at offset start.
func (p *Pages) PageURL(path string, start int) string {
	u := p.BaseURL + path
	if start > 0 {
		u += "?start=" + strconv.Itoa(start)
	}
	return u
}

// Listing walks the pages of the listing at path and yields each accepted
// link once. The walk ends at the first page contributing no new accepted
// link. A failure on the first page is yielded as an error. A failure on a
// later page is logged and ends the walk with the links found so far.
func (p *Pages) Listing(ctx context.Context, path string, accept func(string) bool) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		base, err := dirURL(p.BaseURL, path)
		if err != nil {
			yield("", err)
			return
		}

		seen := make(map[string]bool)
		for start := 0; ; start += PageStep {
			if err := p.Pacer.Wait(ctx); err != nil {
				yield("", err)
				return
			}
			pageURL := p.PageURL(path, start)
			links, err := p.page(ctx, pageURL, base)
			if err != nil {
				if start > 0 && ctx.Err() == nil {
					p.Log.Warn().Err(err).Str("page", pageURL).Msg("listing page failed; ending listing")
					return
				}
				yield("", err)
				return
			}

			fresh := 0
			for _, link := range links {
				if seen[link] || !accept(link) {
					continue
				}
				seen[link] = true
				fresh++
				if !yield(link, nil) {
					return
				}
			}
			p.Log.Debug().Str("page", pageURL).Int("new", fresh).Msg("listing page")
			if fresh == 0 {
				return
			}
		}
	}
}

func (p *Pages) page(ctx context.Context, pageURL string, base *url.URL) ([]string, error) {
	resp, err := p.Client.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", pageURL, err)
	}
	links, err := Links(resp.Body, base)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", pageURL, err)
	}
	return links, nil
}

// Subareas yields the subarea paths directly under the collection root.
func (p *Pages) Subareas(ctx context.Context) iter.Seq2[string, error] {
	return p.Listing(ctx, p.Root, func(link string) bool {
		return IsSubarea(p.Root, link)
	})
}

// Documents returns the document paths of one subarea in path order. On a
// fetch failure part-way through, the documents found so far are returned
// together with the error.
func (p *Pages) Documents(ctx context.Context, subarea string) ([]string, error) {
	var docs []string
	for doc, err := range p.Listing(ctx, subarea, func(link string) bool {
		return IsDocument(p.Root, link) && SubareaOf(p.Root, link) == subarea
	}) {
		if err != nil {
			sort.Strings(docs)
			return docs, err
		}
		docs = append(docs, doc)
	}
	sort.Strings(docs)
	return docs, nil
}

// Items yields every document of every subarea as an Item. Subareas are
// visited in discovery order, or, when Recent is set, the last Recent
// subareas in path order. A failed subarea listing is logged and the
// documents found before the failure are still yielded; only a failure of
// the root listing is yielded as an error.
func (p *Pages) Items(ctx context.Context) iter.Seq2[types.Item, error] {
	return func(yield func(types.Item, error) bool) {
		subareas, err := p.subareaOrder(ctx)
		if err != nil {
			yield(types.Item{}, err)
			return
		}
		for subarea, err := range subareas {
			if err != nil {
				yield(types.Item{}, err)
				return
			}
			docs, err := p.Documents(ctx, subarea)
			if err != nil {
				if ctx.Err() != nil {
					yield(types.Item{}, ctx.Err())
					return
				}
				p.Log.Warn().Err(err).Str("subarea", subarea).Int("documents", len(docs)).Msg("subarea listing incomplete")
			}
			p.Log.Info().Str("subarea", subarea).Int("documents", len(docs)).Msg("subarea listed")
			for _, doc := range docs {
				if !yield(types.Item{ID: doc, Path: doc}, nil) {
					return
				}
			}
		}
	}
}

// subareaOrder returns the subarea sequence Items walks. With Recent unset
// the root listing stays lazy.
func (p *Pages) subareaOrder(ctx context.Context) (iter.Seq2[string, error], error) {
	if p.Recent <= 0 {
		return p.Subareas(ctx), nil
	}
	var all []string
	for s, err := range p.Subareas(ctx) {
		if err != nil {
			return nil, err
		}
		all = append(all, s)
	}
	sort.Strings(all)
	if len(all) > p.Recent {
		all = all[len(all)-p.Recent:]
	}
	return func(yield func(string, error) bool) {
		for _, s := range all {
			if !yield(s, nil) {
				return
			}
		}
	}, nil
}
