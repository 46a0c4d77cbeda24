package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn represents a single view's WebSocket connection.
type Conn struct {
	ID          string
	WS          *websocket.Conn
	writeMu     sync.Mutex
	ConnectedAt time.Time

	// chatFilter narrows pushed events to one chat; 0 means all.
	chatFilter int64
}

// Send writes a frame to the WebSocket connection (thread-safe).
func (c *Conn) Send(frame Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.WS.WriteJSON(frame)
}

// ConnManager tracks all active WebSocket connections.
type ConnManager struct {
	mu    sync.RWMutex
	conns map[string]*Conn // connID → conn
	seq   int
}

func NewConnManager() *ConnManager {
	return &ConnManager{conns: make(map[string]*Conn)}
}

// Add registers a new connection.
func (m *ConnManager) Add(conn *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ID] = conn
}

// Remove unregisters a connection.
func (m *ConnManager) Remove(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, connID)
}

// Get returns a connection by ID.
func (m *ConnManager) Get(connID string) *Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conns[connID]
}

// SetFilter narrows a connection's pushed events to one chat.
func (m *ConnManager) SetFilter(connID string, chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.conns[connID]; ok {
		conn.chatFilter = chatID
	}
}

// Broadcast pushes an event to every connection whose filter admits it.
// Events without a chat id always pass the filter.
func (m *ConnManager) Broadcast(event string, chatID int64, payload any) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.seq++
	frame := EventFrame(event, m.seq, payload)

	for _, conn := range m.conns {
		if conn.chatFilter != 0 && chatID != 0 && conn.chatFilter != chatID {
			continue
		}
		if err := conn.Send(frame); err != nil {
			slog.Warn("broadcast failed", "conn", conn.ID, "error", err)
		}
	}
}

// Count returns the number of connected views.
func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// ReadFrame reads and parses a WebSocket message into a Frame.
func ReadFrame(ws *websocket.Conn) (Frame, error) {
	var frame Frame
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return frame, err
	}
	err = json.Unmarshal(msg, &frame)
	return frame, err
}
