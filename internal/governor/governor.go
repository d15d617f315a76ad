// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package governor bounds the number of concurrently outstanding external
// operations across a whole research run. One Governor instance is shared by
// every fan-out point: queries within a level and page fetches within a
// query all acquire a ticket before touching the network.
package governor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Governor is a bounded-parallelism ticket gate. Admission is FIFO-ish via
// the underlying weighted semaphore; the only guarantee is that at most the
// configured number of tickets are held at any instant.
type Governor struct {
	sem   *semaphore.Weighted
	limit int

	mu       sync.Mutex
	inFlight int
	peak     int
}

// New creates a Governor admitting at most limit concurrent tickets.
func New(limit int) (*Governor, error) {
	if limit < 1 {
		return nil, fmt.Errorf("governor limit must be at least 1, got %d", limit)
	}
	return &Governor{sem: semaphore.NewWeighted(int64(limit)), limit: limit}, nil
}

// Acquire blocks until a ticket is available or ctx is done. The caller must
// Release the ticket when its external operation completes, success or not.
func (g *Governor) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	g.mu.Unlock()
	return nil
}

// Release returns a ticket to the pool.
func (g *Governor) Release() {
	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
	g.sem.Release(1)
}

// Limit returns the configured ticket ceiling.
func (g *Governor) Limit() int { return g.limit }

// Peak returns the high-water mark of simultaneously held tickets. Never
// exceeds Limit; exposed so instrumented runs can verify the bound.
func (g *Governor) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}
