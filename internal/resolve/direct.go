// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"iter"

	"github.com/pdiddy/sgd-harvest/internal/extract"
	"github.com/pdiddy/sgd-harvest/internal/httputil"
	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// DirectStrategy fetches the absolute URLs an item already carries, as SRU
// records do. Responses that are neither HTML nor XML are dropped.
type DirectStrategy struct {
	Pool *Pool
}

func (d *DirectStrategy) Name() string { return "direct" }

func (d *DirectStrategy) Resolve(ctx context.Context, item types.Item) (iter.Seq2[types.Source, error], error) {
	if len(item.URLs) == 0 {
		return nil, fmt.Errorf("%w: item %s carries no URLs", ErrNoLink, item.ID)
	}
	pool := *d.Pool
	pool.Accept = IsMarkup
	return pool.Fetch(ctx, item.URLs), nil
}

// IsMarkup reports whether a response holds HTML or XML.
func IsMarkup(resp *httputil.Response) bool {
	return extract.DetectKind(resp.ContentType, resp.Body) != extract.KindUnknown
}
