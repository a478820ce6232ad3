// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest drives one crawl: it walks discovery, resolves and
// extracts each new item, batches the records into shards, and commits the
// visited set and cursor once the shards are durable at their destination.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/sgd-harvest/internal/discover"
	"github.com/pdiddy/sgd-harvest/internal/extract"
	"github.com/pdiddy/sgd-harvest/internal/httputil"
	"github.com/pdiddy/sgd-harvest/internal/hub"
	"github.com/pdiddy/sgd-harvest/internal/resolve"
	"github.com/pdiddy/sgd-harvest/internal/shard"
	"github.com/pdiddy/sgd-harvest/internal/state"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// Summary holds the outcome of a run.
type Summary struct {
	RunID     string
	Harvested int
	Skipped   int
	Failed    int
	Records   int
	// Empty counts sources whose extracted text was empty.
	Empty     int
	Shards    int
	Pushed    int
	Committed int
	// PushErr is set when the sink did not confirm the upload. The shards
	// stay on disk for the next run.
	PushErr error
}

// Total returns the number of items considered.
func (s Summary) Total() int {
	return s.Harvested + s.Skipped + s.Failed
}

// HasFailures reports whether any item or the upload failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0 || s.PushErr != nil
}

// Harvester runs crawls against one state directory.
type Harvester struct {
	Config types.HarvestConfig
	Client resolve.Fetcher
	Pacer  *httputil.Pacer
	Store  *state.Store
	// Sink receives shards when Config.Hub.Push is set.
	Sink  hub.Sink
	Log   zerolog.Logger
	RunID string
}

// New returns a Harvester with a fresh run ID.
func New(cfg types.HarvestConfig, client resolve.Fetcher, store *state.Store, sink hub.Sink, log zerolog.Logger) *Harvester {
	runID := uuid.NewString()
	return &Harvester{
		Config: cfg,
		Client: client,
		Pacer:  httputil.NewPacer(cfg.HTTP.Delay),
		Store:  store,
		Sink:   sink,
		Log:    log.With().Str("run_id", runID).Logger(),
		RunID:  runID,
	}
}

// Resolver returns the strategy chain for the configured mode.
func (h *Harvester) Resolver() *resolve.Resolver {
	pool := &resolve.Pool{Client: h.Client, Pacer: h.Pacer, Workers: h.Config.Workers}
	if h.Config.Mode == types.ModeSRU {
		return resolve.NewResolver(h.Log, &resolve.DirectStrategy{Pool: pool})
	}
	base := h.Config.Discovery.BaseURL
	return resolve.NewResolver(h.Log,
		&resolve.ArchiveStrategy{Client: h.Client, BaseURL: base},
		&resolve.OCRPageStrategy{Client: h.Client, Pool: pool, BaseURL: base},
		&resolve.PDFFallbackStrategy{Client: h.Client, Pool: pool, BaseURL: base},
	)
}

// run is the mutable state of one Run.
type run struct {
	h        *Harvester
	resolver *resolve.Resolver
	writer   *shard.Writer
	inFlight map[string]bool
	summary  Summary
	// committed is the cursor last persisted in local-only mode.
	committed types.Cursor
}

// Run performs one crawl. Per-item failures are counted and logged; an
// upload failure is reported in Summary.PushErr. The returned error is
// reserved for state, storage, and discovery failures.
func (h *Harvester) Run(ctx context.Context) (Summary, error) {
	cursor, err := h.Store.Cursor()
	if err != nil {
		return Summary{RunID: h.RunID}, err
	}
	pending, err := shard.Pending(h.Store.ShardDir())
	if err != nil {
		return Summary{RunID: h.RunID}, err
	}

	r := &run{
		h:         h,
		resolver:  h.Resolver(),
		inFlight:  make(map[string]bool),
		summary:   Summary{RunID: h.RunID},
		committed: cursor,
	}
	for _, id := range shard.Items(pending) {
		r.inFlight[id] = true
	}
	if len(pending) > 0 {
		h.Log.Info().Int("shards", len(pending)).Int("items", len(r.inFlight)).Msg("resuming with pending shards")
	}

	walkCursor := shard.Cursor(cursor, pending)
	r.writer = shard.NewWriter(h.Store.ShardDir(), h.Config.State.ShardSize, shard.NextNumber(cursor, pending), h.RunID)
	r.writer.SetCursor(walkCursor)
	if !h.Config.Hub.Push {
		r.writer.OnFlush = func(f shard.File) error {
			return r.commit(ctx, []shard.File{f})
		}
	}

	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var walkErr error
	switch h.Config.Mode {
	case types.ModeSRU:
		walkErr = r.walkSRU(walkCtx, walkCursor)
	default:
		walkErr = r.walkPages(walkCtx, walkCursor)
	}
	cancel()

	if err := r.writer.Close(); err != nil {
		return r.summary, fmt.Errorf("flushing shards: %w", err)
	}
	r.summary.Shards = len(r.writer.Flushed())

	if h.Config.Hub.Push {
		if ctx.Err() != nil {
			h.Log.Warn().Msg("interrupted; shards kept for the next run")
		} else {
			files := append(pending, r.writer.Flushed()...)
			if err := r.publish(ctx, files); err != nil {
				return r.summary, err
			}
		}
	}

	h.Log.Info().
		Int("harvested", r.summary.Harvested).
		Int("skipped", r.summary.Skipped).
		Int("failed", r.summary.Failed).
		Int("records", r.summary.Records).
		Int("shards", r.summary.Shards).
		Int("committed", r.summary.Committed).
		Msg("run finished")

	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		return r.summary, fmt.Errorf("discovery: %w", walkErr)
	}
	return r.summary, nil
}

// errBudget ends a walk once MaxItems items have been harvested.
var errBudget = errors.New("item budget reached")

func (r *run) walkPages(ctx context.Context, start types.Cursor) error {
	h := r.h
	pages := discover.NewPages(h.Client, h.Pacer, h.Config.Discovery, h.Log)

	cursor := start
	current := ""
	for item, err := range pages.Items(ctx) {
		if err != nil {
			return err
		}
		if sub := discover.SubareaOf(pages.Root, item.Path); sub != current {
			if current != "" {
				cursor.Subarea = current
				r.writer.SetCursor(cursor)
			}
			current = sub
		}
		if err := r.process(ctx, item); err != nil {
			return ignoreBudget(err)
		}
	}
	if current != "" {
		cursor.Subarea = current
		r.writer.SetCursor(cursor)
	}
	return nil
}

func (r *run) walkSRU(ctx context.Context, start types.Cursor) error {
	h := r.h
	sru := discover.NewSRU(h.Client, h.Pacer, h.Config.SRU, h.Log)

	cursor := start
	for page, err := range sru.Pages(ctx, cursor.Start) {
		if err != nil {
			return err
		}
		for _, rec := range page.Records {
			if len(rec.URLs) == 0 {
				h.Log.Debug().Int("start", page.Start).Msg("record without URLs")
				continue
			}
			item := types.Item{ID: rec.URLs[0], URLs: rec.URLs}
			if err := r.process(ctx, item); err != nil {
				return ignoreBudget(err)
			}
		}
		cursor.Start = page.Next
		r.writer.SetCursor(cursor)
	}
	return nil
}

func ignoreBudget(err error) error {
	if errors.Is(err, errBudget) {
		return nil
	}
	return err
}

// process harvests one item. The item's records reach the writer only when
// every source resolved and was read; otherwise nothing is written and the
// item stays unvisited. A non-nil return stops the walk.
func (r *run) process(ctx context.Context, item types.Item) error {
	h := r.h
	log := h.Log.With().Str("item", item.ID).Logger()

	if r.inFlight[item.ID] {
		r.summary.Skipped++
		return nil
	}
	visited, err := h.Store.Visited.Contains(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("checking visited set: %w", err)
	}
	if visited {
		r.summary.Skipped++
		return nil
	}

	if err := h.Pacer.Wait(ctx); err != nil {
		return err
	}

	records, empty, strategy, err := r.collect(ctx, item)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.summary.Failed++
		log.Warn().Err(err).Str("strategy", strategy).Msg("item failed")
		return nil
	}

	if err := r.writer.Add(records...); err != nil {
		return err
	}
	r.writer.Complete(item.ID)
	r.inFlight[item.ID] = true
	r.summary.Harvested++
	r.summary.Records += len(records)
	r.summary.Empty += empty
	log.Debug().Str("strategy", strategy).Int("records", len(records)).Msg("item harvested")

	if limit := h.Config.MaxItems; limit > 0 && r.summary.Harvested >= limit {
		log.Info().Int("max_items", limit).Msg("item budget reached")
		return errBudget
	}
	return nil
}

// collect resolves item and extracts the text of every source.
func (r *run) collect(ctx context.Context, item types.Item) ([]types.Record, int, string, error) {
	seq, strategy, err := r.resolver.Resolve(ctx, item)
	if err != nil {
		return nil, 0, strategy, err
	}
	records, empty, err := extractAll(seq)
	return records, empty, strategy, err
}

// extractAll drains seq into records. Sources with no text are counted and
// dropped.
func extractAll(seq iter.Seq2[types.Source, error]) ([]types.Record, int, error) {
	var records []types.Record
	empty := 0
	for src, err := range seq {
		if err != nil {
			return nil, 0, err
		}
		text := extract.Text(src.Body, extract.DetectKind(src.ContentType, src.Body))
		if text == "" {
			empty++
			continue
		}
		records = append(records, types.Record{URL: src.URL, Content: text, Source: types.SourceName})
	}
	return records, empty, nil
}

// commit marks the items of files visited and advances the cursor.
func (r *run) commit(ctx context.Context, files []shard.File) error {
	ids := shard.Items(files)
	cursor := shard.Cursor(r.committed, files)
	if err := r.h.Store.Commit(context.WithoutCancel(ctx), ids, cursor); err != nil {
		return err
	}
	r.committed = cursor
	r.summary.Committed += len(ids)
	return nil
}

// publish pushes files and commits them once the sink confirms. A failed
// push is recorded in the summary and leaves files and state untouched.
func (r *run) publish(ctx context.Context, files []shard.File) error {
	n, err := Publish(ctx, r.h.Sink, r.h.Store, files, r.committed, r.h.Log)
	r.summary.Pushed += n.Pushed
	r.summary.Committed += n.Committed
	if errors.Is(err, hub.ErrPushFailed) {
		r.summary.PushErr = err
		return nil
	}
	return err
}
