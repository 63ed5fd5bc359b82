// Package engine owns the authoritative in-memory map of claimed cells.
// Every mutation is serialized behind one mutex; durable writes and event
// fan-out are triggered inside the critical section so observers see
// per-coordinate events in apply order, but neither path blocks the caller.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gridwall/gridwall/internal/cell"
	"github.com/gridwall/gridwall/internal/metrics"
	"github.com/gridwall/gridwall/internal/storage"
)

// Broadcaster fans engine state changes out to connected sessions. The
// engine emits only updates; removal events are the sweeper's.
type Broadcaster interface {
	BroadcastUpdate(c *cell.Cell)
}

// Persister queues best-effort durable writes. Satisfied by *storage.Writer.
type Persister interface {
	EnqueueInsert(c cell.Cell)
	EnqueueUpdate(x, y int, patch storage.CellPatch)
}

// Engine is the authoritative state of the grid. The durable store is a
// mirror written after the fact; in-memory state is never behind it.
type Engine struct {
	mu    sync.Mutex
	cells map[cell.Key]*cell.Cell

	broadcaster   Broadcaster
	persister     Persister
	baseTTL       time.Duration
	likeExtension time.Duration
	logger        *slog.Logger

	now func() time.Time
}

// New creates an Engine with an empty grid. baseTTL is the lifetime of a
// fresh claim; likeExtension is added to a cell's current expiry per
// distinct like.
func New(broadcaster Broadcaster, persister Persister, baseTTL, likeExtension time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		cells:         make(map[cell.Key]*cell.Cell),
		broadcaster:   broadcaster,
		persister:     persister,
		baseTTL:       baseTTL,
		likeExtension: likeExtension,
		logger:        logger,
		now:           time.Now,
	}
}

// LoadSnapshot replaces the entire map with the store's full scan result.
// Called once at startup before any session is attached, so it emits no
// events and enqueues no writes.
func (e *Engine) LoadSnapshot(cells []cell.Cell) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cells = make(map[cell.Key]*cell.Cell, len(cells))
	for i := range cells {
		c := cells[i].Clone()
		e.cells[c.Key()] = c
	}
	metrics.CellsOccupied.Set(float64(len(e.cells)))
	e.logger.Info("grid loaded from store", "cells", len(e.cells))
}

// Claim creates a cell on a free coordinate. Returns (cell, true) when the
// claim applied. A claim on an occupied coordinate, an out-of-range
// coordinate, or with an empty owner id is a silent no-op returning
// (nil, false): no event, no write. Retried claims are therefore
// idempotent: the first writer wins and every later attempt does nothing.
func (e *Engine) Claim(x, y int, text, ownerID string) (*cell.Cell, bool) {
	if !cell.InRange(x, y) || ownerID == "" {
		metrics.ClaimsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := cell.KeyFor(x, y)
	if _, occupied := e.cells[key]; occupied {
		metrics.ClaimsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, false
	}

	c := &cell.Cell{
		X:         x,
		Y:         y,
		Text:      cell.NormalizeText(text),
		Owner:     ownerID,
		Likes:     0,
		LikedBy:   make([]string, 0),
		ExpiresAt: e.now().Add(e.baseTTL),
	}
	e.cells[key] = c
	metrics.CellsOccupied.Set(float64(len(e.cells)))
	metrics.ClaimsTotal.WithLabelValues(metrics.OutcomeApplied).Inc()

	out := c.Clone()
	if e.persister != nil {
		e.persister.EnqueueInsert(*c.Clone())
	}
	if e.broadcaster != nil {
		e.broadcaster.BroadcastUpdate(out)
	}
	return out, true
}

// Like records one like from ownerID on the cell at (x, y) and extends the
// cell's expiry by the like extension, compounding on the current expiry
// rather than resetting it. A like on a missing cell returns (nil, false);
// a repeat like from the same owner returns the unchanged cell and false.
// Neither no-op emits an event or a write.
func (e *Engine) Like(x, y int, ownerID string) (*cell.Cell, bool) {
	if !cell.InRange(x, y) || ownerID == "" {
		metrics.LikesTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.cells[cell.KeyFor(x, y)]
	if !ok {
		metrics.LikesTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, false
	}
	if c.Liked(ownerID) {
		metrics.LikesTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return c.Clone(), false
	}

	c.LikedBy = append(c.LikedBy, ownerID)
	c.Likes = len(c.LikedBy)
	c.ExpiresAt = c.ExpiresAt.Add(e.likeExtension)
	metrics.LikesTotal.WithLabelValues(metrics.OutcomeApplied).Inc()

	out := c.Clone()
	if e.persister != nil {
		e.persister.EnqueueUpdate(x, y, storage.CellPatch{
			Likes:     out.Likes,
			LikedBy:   out.LikedBy,
			ExpiresAt: out.ExpiresAt,
		})
	}
	if e.broadcaster != nil {
		e.broadcaster.BroadcastUpdate(out)
	}
	return out, true
}

// Remove deletes the cell at (x, y) unconditionally and reports whether a
// cell was present. Used only by the sweeper; the sweeper broadcasts the
// removal itself, and only when this returns true, so each expiry produces
// at most one event.
func (e *Engine) Remove(x, y int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := cell.KeyFor(x, y)
	if _, ok := e.cells[key]; !ok {
		return false
	}
	delete(e.cells, key)
	metrics.CellsOccupied.Set(float64(len(e.cells)))
	return true
}

// Cell returns a copy of the cell at (x, y), or nil if the coordinate is
// free or off the grid.
func (e *Engine) Cell(x, y int) *cell.Cell {
	if !cell.InRange(x, y) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.cells[cell.KeyFor(x, y)]
	if !ok {
		return nil
	}
	return c.Clone()
}

// Snapshot returns a copy of the full grid keyed by "x-y". Used by the
// read API.
func (e *Engine) Snapshot() map[cell.Key]cell.Cell {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// WithSnapshot runs fn with a copy of the full grid while holding the
// engine's mutex. No mutation can apply, and no event can be broadcast,
// until fn returns. Attaching a new session inside fn therefore
// guarantees that every event it receives after its snapshot is strictly
// newer than the snapshot.
func (e *Engine) WithSnapshot(fn func(map[cell.Key]cell.Cell)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.snapshotLocked())
}

func (e *Engine) snapshotLocked() map[cell.Key]cell.Cell {
	snap := make(map[cell.Key]cell.Cell, len(e.cells))
	for k, c := range e.cells {
		snap[k] = *c.Clone()
	}
	return snap
}

// Len returns the number of occupied cells.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cells)
}
