// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate serializes access to a shared single-occupancy surface, such as a
// download directory watched by the polling fallback. Concurrent polled
// downloads into one directory cannot be told apart, so holders of the gate
// get the surface to themselves.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate returns a gate with capacity one.
func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the gate is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// TryAcquire takes the gate without blocking, reporting success.
func (g *Gate) TryAcquire() bool {
	return g.sem.TryAcquire(1)
}

// Release frees the gate. Must pair with a successful Acquire or TryAcquire.
func (g *Gate) Release() {
	g.sem.Release(1)
}
