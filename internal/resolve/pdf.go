// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// PDFFallbackStrategy finds a PDF link on the document landing page and
// reads the OCR listing that sits beside the PDF manifestation.
type PDFFallbackStrategy struct {
	Client  Fetcher
	Pool    *Pool
	BaseURL string
}

func (p *PDFFallbackStrategy) Name() string { return "pdf-fallback" }

func (p *PDFFallbackStrategy) Resolve(ctx context.Context, item types.Item) (iter.Seq2[types.Source, error], error) {
	landing := documentURL(p.BaseURL, item.Path)
	resp, err := p.Client.Get(ctx, landing)
	if err != nil {
		return nil, fmt.Errorf("fetching landing page: %w", err)
	}
	pdfs, err := findLinks(resp.Body, resp.URL, ".pdf")
	if err != nil {
		return nil, err
	}
	if len(pdfs) == 0 {
		return nil, fmt.Errorf("%w: no PDF link on %s", ErrNoLink, landing)
	}
	ocrURL, ok := OCRURLForPDF(pdfs[0])
	if !ok {
		return nil, fmt.Errorf("%w: no pdf segment in %s", ErrNoLink, pdfs[0])
	}
	return ocrListing(ctx, p.Client, p.Pool, ocrURL)
}

// OCRURLForPDF derives the OCR listing URL from a PDF URL by replacing
// everything from the last /pdf path segment with /ocr.
//
//	https://h/frbr/sgd/1815/0001/1/pdf/a.pdf -> https://h/frbr/sgd/1815/0001/1/ocr
func OCRURLForPDF(pdfURL string) (string, bool) {
	u, err := url.Parse(pdfURL)
	if err != nil {
		return "", false
	}
	segs := strings.Split(u.Path, "/")
	for i := len(segs) - 1; i > 0; i-- {
		if strings.EqualFold(segs[i], "pdf") {
			u.Path = strings.Join(segs[:i], "/") + "/ocr"
			u.RawQuery = ""
			u.Fragment = ""
			return u.String(), true
		}
	}
	return "", false
}
