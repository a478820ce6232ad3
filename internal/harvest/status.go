// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"

	"github.com/pdiddy/sgd-harvest/internal/shard"
	"github.com/pdiddy/sgd-harvest/internal/state"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// Status describes a state directory. Pending shards await a confirmed
// upload before their items count as visited. Local shards were committed
// by a local-only run and stay on disk until `push` uploads them.
type Status struct {
	Cursor         types.Cursor `json:"cursor" yaml:"cursor"`
	Visited        int          `json:"visited" yaml:"visited"`
	PendingShards  int          `json:"pending_shards" yaml:"pending_shards"`
	PendingRecords int          `json:"pending_records" yaml:"pending_records"`
	PendingItems   int          `json:"pending_items" yaml:"pending_items"`
	LocalShards    int          `json:"local_shards" yaml:"local_shards"`
	LocalRecords   int          `json:"local_records" yaml:"local_records"`
}

// ReadStatus reports the committed and pending state of store.
func ReadStatus(ctx context.Context, store *state.Store) (Status, error) {
	var st Status
	cursor, err := store.Cursor()
	if err != nil {
		return st, err
	}
	st.Cursor = cursor

	if st.Visited, err = store.Visited.Len(ctx); err != nil {
		return st, err
	}

	pending, err := shard.Pending(store.ShardDir())
	if err != nil {
		return st, err
	}
	// Shards numbered below the cursor were committed when flushed.
	var unconfirmed []shard.File
	for _, f := range pending {
		if f.Manifest.Shard < cursor.NextShard {
			st.LocalShards++
			st.LocalRecords += f.Manifest.Records
			continue
		}
		unconfirmed = append(unconfirmed, f)
		st.PendingRecords += f.Manifest.Records
	}
	st.PendingShards = len(unconfirmed)
	st.PendingItems = len(shard.Items(unconfirmed))
	return st, nil
}
