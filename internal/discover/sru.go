// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"

	"github.com/pdiddy/sgd-harvest/internal/httputil"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// SRURecord is one search hit and its content locators.
type SRURecord struct {
	// URLs are the record's preferredUrl values, or its itemUrl values when
	// no preferred URL is given.
	URLs []string
}

// SRUPage is one searchRetrieve response.
type SRUPage struct {
	// Start is the startRecord this page was requested with.
	Start int
	// Next is the startRecord of the following page.
	Next int
	// Total is the declared result count, or -1 when none was declared.
	Total   int
	Records []SRURecord
}

// SRU pages through a search/retrieve endpoint by start-record index.
type SRU struct {
	Client    Fetcher
	Pacer     *httputil.Pacer
	URL       string
	Query     string
	Version   string
	BatchSize int
	Log       zerolog.Logger
}

// NewSRU builds an SRU walker from cfg.
func NewSRU(client Fetcher, pacer *httputil.Pacer, cfg types.SRUConfig, log zerolog.Logger) *SRU {
	return &SRU{
		Client:    client,
		Pacer:     pacer,
		URL:       cfg.URL,
		Query:     cfg.Query,
		Version:   cfg.Version,
		BatchSize: cfg.BatchSize,
		Log:       log,
	}
}

// RequestURL returns the searchRetrieve URL for startRecord start.
func (s *SRU) RequestURL(start int) string {
	batch := s.BatchSize
	if batch <= 0 {
		batch = 100
	}
	version := s.Version
	if version == "" {
		version = "2.0"
	}
	params := url.Values{
		"version":        {version},
		"operation":      {"searchRetrieve"},
		"query":          {s.Query},
		"startRecord":    {strconv.Itoa(start)},
		"maximumRecords": {strconv.Itoa(batch)},
	}
	return s.URL + "?" + params.Encode()
}

// Pages yields result pages starting at startRecord start (1-based). The
// declared total is read from the first page. Paging stops when a page
// returns no records, or when the records consumed so far exceed the
// declared total. A failed first request is yielded as an error; a failure
// on a later page is logged and ends paging.
func (s *SRU) Pages(ctx context.Context, start int) iter.Seq2[SRUPage, error] {
	return func(yield func(SRUPage, error) bool) {
		if start < 1 {
			start = 1
		}
		total := -1
		first := true
		for {
			if total >= 0 && start-1 > total {
				return
			}
			if err := s.Pacer.Wait(ctx); err != nil {
				yield(SRUPage{}, err)
				return
			}
			declared, records, err := s.page(ctx, start)
			if err != nil {
				if !first && ctx.Err() == nil {
					s.Log.Warn().Err(err).Int("start", start).Msg("SRU page failed; ending paging")
					return
				}
				yield(SRUPage{}, err)
				return
			}
			first = false
			if total < 0 && declared >= 0 {
				total = declared
				s.Log.Info().Int("total", total).Msg("SRU result count")
			}
			if len(records) == 0 {
				s.Log.Info().Int("start", start).Msg("SRU returned no records")
				return
			}
			page := SRUPage{Start: start, Next: start + len(records), Total: total, Records: records}
			if !yield(page, nil) {
				return
			}
			start = page.Next
		}
	}
}

func (s *SRU) page(ctx context.Context, start int) (int, []SRURecord, error) {
	resp, err := s.Client.Get(ctx, s.RequestURL(start))
	if err != nil {
		return 0, nil, fmt.Errorf("SRU request at start=%d: %w", start, err)
	}
	declared, records, err := ParseSRU(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("SRU response at start=%d: %w", start, err)
	}
	return declared, records, nil
}

// ParseSRU reads the declared total (from a subtitle formatted
// "label: <count>", or -1 when absent) and the gzd records of a response.
func ParseSRU(body []byte) (int, []SRURecord, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel

	total := -1
	var records []SRURecord
	var inRecord bool
	var preferred, items []string

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, records, fmt.Errorf("parsing SRU response: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "subtitle":
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return total, records, fmt.Errorf("parsing subtitle: %w", err)
				}
				if total < 0 {
					total = parseTotal(text)
				}
			case "gzd":
				inRecord = true
				preferred, items = nil, nil
			case "preferredUrl", "itemUrl":
				if !inRecord {
					continue
				}
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return total, records, fmt.Errorf("parsing %s: %w", t.Name.Local, err)
				}
				text = strings.TrimSpace(text)
				if text == "" {
					continue
				}
				if t.Name.Local == "preferredUrl" {
					preferred = append(preferred, text)
				} else {
					items = append(items, text)
				}
			}
		case xml.EndElement:
			if t.Name.Local == "gzd" && inRecord {
				urls := preferred
				if len(urls) == 0 {
					urls = items
				}
				records = append(records, SRURecord{URLs: urls})
				inRecord = false
			}
		}
	}
	return total, records, nil
}

// parseTotal reads the count from "label: <count>"; -1 when malformed.
func parseTotal(s string) int {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(s[i+1:]))
	if err != nil || n < 0 {
		return -1
	}
	return n
}
