// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"iter"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/sgd-harvest/internal/httputil"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// DefaultWorkers bounds concurrent file fetches within one item.
const DefaultWorkers = 4

// Pool fetches the files of one item with bounded concurrency.
type Pool struct {
	Client  Fetcher
	Pacer   *httputil.Pacer
	Workers int
	// Accept, when set, drops responses it rejects instead of yielding them.
	Accept func(*httputil.Response) bool
}

type fetchResult struct {
	src  types.Source
	skip bool
	err  error
}

// Fetch yields a Source for each of urls in completion order. The pacer is
// waited on once per dispatch wave of Workers fetches. The first failed
// fetch cancels the rest and is yielded as an error; stopping the iteration
// early also cancels outstanding fetches. A failing task records its result
// before the group cancels its siblings, so the root cause is yielded ahead
// of their cancellation errors.
func (p *Pool) Fetch(ctx context.Context, urls []string) iter.Seq2[types.Source, error] {
	return func(yield func(types.Source, error) bool) {
		if len(urls) == 0 {
			return
		}
		workers := p.Workers
		if workers <= 0 {
			workers = DefaultWorkers
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		slots := make([]fetchResult, len(urls))
		done := make(chan int, len(urls))
		var dispatchErr error

		go func() {
			defer close(done)
			for i, u := range urls {
				if i%workers == 0 {
					if err := p.Pacer.Wait(gctx); err != nil {
						dispatchErr = err
						break
					}
				}
				g.Go(func() error {
					defer func() { done <- i }()
					resp, err := p.Client.Get(gctx, u)
					if err != nil {
						slots[i].err = fmt.Errorf("fetching %s: %w", u, err)
						return slots[i].err
					}
					if p.Accept != nil && !p.Accept(resp) {
						slots[i].skip = true
						return nil
					}
					slots[i].src = types.Source{URL: resp.URL, ContentType: resp.ContentType, Body: resp.Body}
					return nil
				})
			}
			_ = g.Wait()
		}()

		for i := range done {
			r := slots[i]
			if r.skip {
				continue
			}
			if r.err != nil {
				yield(types.Source{}, r.err)
				return
			}
			if !yield(r.src, nil) {
				return
			}
		}
		if dispatchErr != nil {
			yield(types.Source{}, dispatchErr)
		}
	}
}
