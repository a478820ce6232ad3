// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"iter"

	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// OCRPageStrategy follows the OCR link on a document's first expression
// page (<doc>/1) and fetches the XML files listed there.
type OCRPageStrategy struct {
	Client  Fetcher
	Pool    *Pool
	BaseURL string
}

func (o *OCRPageStrategy) Name() string { return "ocr-page" }

func (o *OCRPageStrategy) Resolve(ctx context.Context, item types.Item) (iter.Seq2[types.Source, error], error) {
	exprURL := documentURL(o.BaseURL, item.Path) + "/1"
	resp, err := o.Client.Get(ctx, exprURL)
	if err != nil {
		return nil, fmt.Errorf("fetching expression page: %w", err)
	}
	links, err := findLinks(resp.Body, resp.URL, "/ocr")
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%w: no OCR link on %s", ErrNoLink, exprURL)
	}
	return ocrListing(ctx, o.Client, o.Pool, links[0])
}

// ocrListing fetches an OCR listing page and returns a sequence over the XML
// files it links to.
func ocrListing(ctx context.Context, client Fetcher, pool *Pool, listingURL string) (iter.Seq2[types.Source, error], error) {
	resp, err := client.Get(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("fetching OCR listing: %w", err)
	}
	files, err := findLinks(resp.Body, resp.URL, ".xml")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no XML files on %s", ErrNoLink, listingURL)
	}
	return pool.Fetch(ctx, files), nil
}
