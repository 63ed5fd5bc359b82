package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gridwall/gridwall/internal/cell"
	"github.com/gridwall/gridwall/internal/circuitbreaker"
	"github.com/gridwall/gridwall/internal/metrics"
)

type writeKind int

const (
	writeInsert writeKind = iota
	writeUpdate
)

type writeJob struct {
	kind  writeKind
	cell  cell.Cell // insert
	x, y  int       // update
	patch CellPatch // update
}

// Writer is the best-effort asynchronous write queue between the engine and
// the durable store. Enqueues never block: the engine commits to memory
// first, and a write that cannot be flushed is logged and dropped rather
// than rolled back. A circuit breaker keeps a down database from being
// hammered on every mutation.
type Writer struct {
	store   Store
	breaker *circuitbreaker.Breaker
	jobs    chan writeJob
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewWriter creates a Writer with a bounded queue. Call Start to begin
// flushing and Close to drain on shutdown.
func NewWriter(store Store, breaker *circuitbreaker.Breaker, queueSize int, logger *slog.Logger) *Writer {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Writer{
		store:   store,
		breaker: breaker,
		jobs:    make(chan writeJob, queueSize),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start runs the flush loop until Close is called. It is meant to run in
// its own goroutine.
func (w *Writer) Start(ctx context.Context) {
	defer close(w.done)
	for job := range w.jobs {
		w.flush(ctx, job)
	}
}

// EnqueueInsert queues a durable insert for a newly claimed cell.
func (w *Writer) EnqueueInsert(c cell.Cell) {
	w.enqueue(writeJob{kind: writeInsert, cell: c})
}

// EnqueueUpdate queues a durable update of the like state at (x, y).
func (w *Writer) EnqueueUpdate(x, y int, patch CellPatch) {
	w.enqueue(writeJob{kind: writeUpdate, x: x, y: y, patch: patch})
}

func (w *Writer) enqueue(job writeJob) {
	select {
	case w.jobs <- job:
	default:
		metrics.StoreWriteDrops.Inc()
		w.logger.Warn("write queue full, dropping durable write", "kind", int(job.kind))
	}
}

// Close stops accepting writes, drains the queue, and waits for the flush
// loop to exit. Safe to call more than once.
func (w *Writer) Close() {
	w.closeOnce.Do(func() { close(w.jobs) })
	<-w.done
}

func (w *Writer) flush(ctx context.Context, job writeJob) {
	err := w.breaker.Execute(func() error {
		switch job.kind {
		case writeInsert:
			return w.store.Insert(ctx, job.cell)
		case writeUpdate:
			return w.store.Update(ctx, job.x, job.y, job.patch)
		}
		return nil
	})
	if err == nil {
		return
	}

	metrics.StoreWriteFailures.Inc()
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		w.logger.Warn("durable write skipped, circuit open")
	case job.kind == writeInsert:
		w.logger.Error("durable insert failed",
			"x", job.cell.X, "y", job.cell.Y, "error", err)
	default:
		w.logger.Error("durable update failed",
			"x", job.x, "y", job.y, "error", err)
	}
}
