// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces out sequential requests to the repository. The first Wait
// returns immediately; later calls sleep until Delay has passed since the
// previous one returned.
type Pacer struct {
	Delay time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewPacer returns a Pacer with the given delay. A zero delay never sleeps.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{Delay: delay}
}

// Wait blocks until the next request may be issued or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.Delay <= 0 {
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		if wait := p.Delay - time.Since(p.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	p.last = time.Now()
	return nil
}
