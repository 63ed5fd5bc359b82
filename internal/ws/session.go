package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gridwall/gridwall/internal/cell"
	"github.com/gridwall/gridwall/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Inbound frames are tiny claim/like requests.
	maxMessageSize = 1024

	defaultSendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Claims carry no credentials; any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Grid is the slice of the engine a session needs: inbound requests become
// claim/like calls, and a fresh connection gets the current snapshot.
// WithSnapshot runs its callback with no mutation in flight, so attaching
// inside it keeps the snapshot ordered before every later event.
type Grid interface {
	Claim(x, y int, text, ownerID string) (*cell.Cell, bool)
	Like(x, y int, ownerID string) (*cell.Cell, bool)
	WithSnapshot(fn func(map[cell.Key]cell.Cell))
}

// Session binds one websocket connection to the grid. It holds no
// authoritative state, just the outbound queue and the connection.
type Session struct {
	id     string
	conn   *websocket.Conn
	grid   Grid
	send   chan []byte
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(conn *websocket.Conn, grid Grid, sendBuffer int, logger *slog.Logger) *Session {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Session{
		id:     uuid.New().String(),
		conn:   conn,
		grid:   grid,
		send:   make(chan []byte, sendBuffer),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// ID returns the server-assigned session id, used only for logging.
func (s *Session) ID() string {
	return s.id
}

// enqueue queues an outbound payload without blocking. A session whose
// buffer is full is evicted: a stalled reader must not hold up the engine
// or other observers.
func (s *Session) enqueue(payload []byte, h *Hub) {
	select {
	case <-s.done:
	case s.send <- payload:
	default:
		metrics.SessionsEvicted.Inc()
		s.logger.Warn("session too slow, evicting", "session", s.id)
		s.close()
		go h.Unregister(s)
	}
}

// close shuts the connection down. The pumps notice and exit. Safe to call
// from any goroutine, any number of times.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// readPump consumes inbound frames until the connection drops. Malformed
// or unknown frames are logged and skipped. The protocol has no error
// replies, so the only observable outcome of a request is the broadcast it
// does or does not cause.
func (s *Session) readPump(h *Hub) {
	defer func() {
		h.Unregister(s)
		s.close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("session read error", "session", s.id, "error", err)
			}
			return
		}

		req, err := parseRequest(data)
		if err != nil {
			s.logger.Warn("dropping malformed frame", "session", s.id, "error", err)
			continue
		}

		switch req.Type {
		case TypeClaimRequest:
			s.grid.Claim(req.X, req.Y, req.Text, req.OwnerID)
		case TypeLikeRequest:
			s.grid.Like(req.X, req.Y, req.OwnerID)
		}
	}
}

// writePump drains the outbound queue to the connection and keeps the
// connection alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades HTTP requests to websocket sessions. Each new session
// is registered with the hub and immediately receives the full snapshot.
func Handler(hub *Hub, grid Grid, sendBuffer int, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", "error", err)
			return
		}

		s := newSession(conn, grid, sendBuffer, logger)
		grid.WithSnapshot(func(cells map[cell.Key]cell.Cell) {
			hub.RegisterWithSnapshot(s, cells)
		})

		go s.writePump()
		s.readPump(hub)
	}
}
