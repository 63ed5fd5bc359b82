// Package ws is the realtime channel: a fan-out hub of websocket sessions.
// The hub never blocks the engine: events are marshaled once and enqueued
// on each session's buffered channel, and a session that cannot keep up is
// dropped rather than allowed to stall everyone else.
package ws

import (
	"log/slog"
	"sync"

	"github.com/gridwall/gridwall/internal/cell"
	"github.com/gridwall/gridwall/internal/metrics"
)

// Hub fans engine events out to every connected session. It satisfies the
// engine's and the sweeper's Broadcaster interfaces.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	logger   *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
		logger:   logger,
	}
}

// RegisterWithSnapshot adds s to the recipient set with the snapshot as
// its first queued frame. Registration and the snapshot enqueue happen
// under the hub lock, and the caller invokes this from inside the
// engine's serialization point, so a concurrent mutation is either
// already in the snapshot or broadcast to s after it.
func (h *Hub) RegisterWithSnapshot(s *Session, cells map[cell.Key]cell.Cell) {
	payload, err := marshalSnapshot(cells)
	if err != nil {
		h.logger.Error("marshal snapshot", "error", err)
		return
	}

	h.mu.Lock()
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	s.enqueue(payload, h)
	h.mu.Unlock()

	metrics.SessionsConnected.Set(float64(n))
	h.logger.Info("session connected", "session", s.ID(), "sessions", n)
}

// Unregister removes a session. Safe to call more than once.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s)
	n := len(h.sessions)
	h.mu.Unlock()

	metrics.SessionsConnected.Set(float64(n))
	h.logger.Info("session disconnected", "session", s.ID(), "sessions", n)
}

// Len returns the number of connected sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// BroadcastUpdate publishes a created or liked cell to every session.
func (h *Hub) BroadcastUpdate(c *cell.Cell) {
	payload, err := marshalUpdate(c)
	if err != nil {
		h.logger.Error("marshal cell update", "error", err)
		return
	}
	h.broadcast(payload)
}

// BroadcastRemoval publishes a cell expiry to every session.
func (h *Hub) BroadcastRemoval(x, y int) {
	payload, err := marshalRemoval(x, y)
	if err != nil {
		h.logger.Error("marshal cell removal", "error", err)
		return
	}
	h.broadcast(payload)
}

// broadcast enqueues a pre-marshaled payload on every session. The engine
// calls this inside its serialization point, so per-coordinate event order
// in each session's queue matches apply order.
func (h *Hub) broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		s.enqueue(payload, h)
	}
}
