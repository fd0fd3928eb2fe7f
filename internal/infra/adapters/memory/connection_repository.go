package memory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/thearjunkv/dots-and-boxes-backend/internal/application/constant"
	"github.com/thearjunkv/dots-and-boxes-backend/internal/application/metric"
)

// SafeConn serializes writes to one WebSocket connection;
// gorilla/websocket allows at most one concurrent writer.
type SafeConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewSafeConn(conn *websocket.Conn) *SafeConn {
	return &SafeConn{conn: conn}
}

func (s *SafeConn) WriteJSON(payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn.WriteJSON(payload)
}

func (s *SafeConn) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// ConnectionRepository tracks the live connection of each identified player
// in this process.
type ConnectionRepository interface {
	Add(playerID string, conn *SafeConn)
	Remove(playerID string)

	Write(playerID string, payload any)
}

type connectionRepository struct {
	// conns stores map[player_id]*conn
	conns map[string]*SafeConn

	mu sync.RWMutex
}

func NewConnectionRepository() ConnectionRepository {
	return &connectionRepository{
		conns: make(map[string]*SafeConn, 10),
	}
}

func (r *connectionRepository) Add(playerID string, conn *SafeConn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[playerID]; !exists {
		metric.IncrementWSActiveConnections()
	}

	r.conns[playerID] = conn
}

func (r *connectionRepository) Remove(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[playerID]; exists {
		delete(r.conns, playerID)

		metric.DecrementWSActiveConnections()
	}
}

func (r *connectionRepository) Write(playerID string, payload any) {
	r.mu.RLock()
	conn, ok := r.conns[playerID]
	r.mu.RUnlock()

	if !ok {
		return
	}

	if err := conn.WriteJSON(payload); err != nil {
		slog.Error(
			"write to websocket",
			slog.Any(constant.Error, err),
			slog.String(constant.PlayerID, playerID),
		)
	}
}
