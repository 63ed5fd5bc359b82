// Package sweep removes expired cells on a fixed interval. The durable
// store decides which rows are expired; the in-memory map is brought in
// line with the store's answer, which keeps a single clock authoritative.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/gridwall/gridwall/internal/metrics"
	"github.com/gridwall/gridwall/internal/storage"
)

// Grid is the slice of the engine the sweeper needs.
type Grid interface {
	Remove(x, y int) bool
}

// Broadcaster publishes removal events to connected sessions.
type Broadcaster interface {
	BroadcastRemoval(x, y int)
}

// Sweeper deletes expired rows from the store and evicts the matching
// cells from the grid.
type Sweeper struct {
	store       storage.Store
	grid        Grid
	broadcaster Broadcaster
	interval    time.Duration
	logger      *slog.Logger

	now func() time.Time
}

// New creates a Sweeper. interval is the time between sweep cycles.
func New(store storage.Store, grid Grid, broadcaster Broadcaster, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:       store,
		grid:        grid,
		broadcaster: broadcaster,
		interval:    interval,
		logger:      logger,
		now:         time.Now,
	}
}

// Start runs sweep cycles until ctx is cancelled. Meant to run in its own
// goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiration sweeper started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single cycle. If the durable delete fails the whole cycle
// is skipped (no cell evicted, no event emitted) and the next tick
// retries. Exported so tests and operators can trigger a cycle directly.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	deleted, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		metrics.SweepFailures.Inc()
		s.logger.Error("sweep cycle skipped, durable delete failed", "error", err)
		return
	}
	if len(deleted) == 0 {
		return
	}

	removed := 0
	for _, c := range deleted {
		// The row is already gone from the store; only broadcast when the
		// engine actually held the cell so each expiry yields one event.
		if s.grid.Remove(c.X, c.Y) {
			s.broadcaster.BroadcastRemoval(c.X, c.Y)
			removed++
		}
	}

	metrics.SweepRemoved.Add(float64(removed))
	s.logger.Info("sweep cycle complete", "deleted_rows", len(deleted), "evicted", removed)
}
