// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/sgd-harvest/internal/hub"
	"github.com/pdiddy/sgd-harvest/internal/shard"
	"github.com/pdiddy/sgd-harvest/internal/state"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// PublishResult counts what a publish confirmed.
type PublishResult struct {
	Pushed    int
	Committed int
}

// Publish uploads files through sink and, once the sink confirms, marks
// their items visited, advances the cursor from base, and deletes the local
// files. Any sink failure is returned wrapped in hub.ErrPushFailed with
// files and state left as they were.
func Publish(ctx context.Context, sink hub.Sink, store *state.Store, files []shard.File, base types.Cursor, log zerolog.Logger) (PublishResult, error) {
	var res PublishResult
	if len(files) == 0 {
		return res, nil
	}
	if sink == nil {
		return res, fmt.Errorf("%w: no sink configured", hub.ErrPushFailed)
	}

	if err := sink.EnsureRepo(ctx); err != nil {
		return res, pushFailed(err)
	}
	summary := fmt.Sprintf("Add %d shard(s) from %s", len(files), files[len(files)-1].Manifest.RunID)
	if err := sink.Push(ctx, files, summary); err != nil {
		log.Error().Err(err).Int("shards", len(files)).Msg("push failed; shards kept for the next run")
		return res, pushFailed(err)
	}
	res.Pushed = len(files)

	ids := shard.Items(files)
	if err := store.Commit(context.WithoutCancel(ctx), ids, shard.Cursor(base, files)); err != nil {
		return res, fmt.Errorf("committing pushed shards: %w", err)
	}
	res.Committed = len(ids)

	if err := shard.Remove(files); err != nil {
		return res, fmt.Errorf("removing pushed shards: %w", err)
	}
	log.Info().Int("shards", len(files)).Int("items", len(ids)).Msg("shards published")
	return res, nil
}

// PushPending publishes the shards left in the store's shard directory
// without crawling.
func PushPending(ctx context.Context, sink hub.Sink, store *state.Store, log zerolog.Logger) (PublishResult, error) {
	cursor, err := store.Cursor()
	if err != nil {
		return PublishResult{}, err
	}
	pending, err := shard.Pending(store.ShardDir())
	if err != nil {
		return PublishResult{}, err
	}
	if len(pending) == 0 {
		log.Info().Msg("no pending shards")
		return PublishResult{}, nil
	}
	return Publish(ctx, sink, store, pending, cursor, log)
}

func pushFailed(err error) error {
	if errors.Is(err, hub.ErrPushFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", hub.ErrPushFailed, err)
}
