package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/notfall/dispatch-engine/internal/models"
)

var ErrNotConnected = errors.New("engineer not connected")

const writeTimeout = 10 * time.Second

// Message is the JSON envelope pushed over engineer websockets
type Message struct {
	Type            string               `json:"type"`
	TaskID          string               `json:"task_id,omitempty"`
	EngineerID      string               `json:"engineer_id,omitempty"`
	Text            string               `json:"message,omitempty"`
	Category        models.AlertCategory `json:"category,omitempty"`
	EscalationLevel int                  `json:"escalation_level,omitempty"`
}

// connection wraps a websocket with a write lock; gorilla connections
// allow one concurrent writer.
type connection struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *connection) write(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

// ConnectionManager owns the live engineer connections. Registration
// and removal are tied to connection open/close, and every access goes
// through the manager's lock.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*connection
}

// NewConnectionManager creates an empty manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*connection),
	}
}

// Register attaches a connection for an engineer, replacing and
// closing any previous one
func (m *ConnectionManager) Register(engineerID string, conn *websocket.Conn) {
	m.mu.Lock()
	if old, ok := m.connections[engineerID]; ok {
		old.conn.Close()
	}
	m.connections[engineerID] = &connection{conn: conn}
	m.mu.Unlock()

	slog.Info("engineer connected", "engineer_id", engineerID)
}

// Unregister removes an engineer's connection. conn identifies the
// registration being torn down: a handler unwinding after its
// connection was replaced must not delete the replacement, so the
// entry is only removed when it still maps to that same conn.
func (m *ConnectionManager) Unregister(engineerID string, conn *websocket.Conn) {
	m.mu.Lock()
	c, ok := m.connections[engineerID]
	removed := ok && c.conn == conn
	if removed {
		delete(m.connections, engineerID)
	}
	m.mu.Unlock()

	if removed {
		slog.Info("engineer disconnected", "engineer_id", engineerID)
	}
}

// Connected reports whether an engineer has a live connection
func (m *ConnectionManager) Connected(engineerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.connections[engineerID]
	return ok
}

// SendTo pushes one message to a specific engineer
func (m *ConnectionManager) SendTo(engineerID string, msg Message) error {
	m.mu.RLock()
	c, ok := m.connections[engineerID]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, engineerID)
	}
	if err := c.write(msg); err != nil {
		return fmt.Errorf("failed to send to engineer %s: %w", engineerID, err)
	}
	return nil
}

// Broadcast pushes one message to every connected engineer. Individual
// write failures are logged, not returned.
func (m *ConnectionManager) Broadcast(msg Message) int {
	m.mu.RLock()
	targets := make(map[string]*connection, len(m.connections))
	for id, c := range m.connections {
		targets[id] = c
	}
	m.mu.RUnlock()

	delivered := 0
	for id, c := range targets {
		if err := c.write(msg); err != nil {
			slog.Warn("broadcast write failed", "engineer_id", id, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// NotifyAssignment tells an engineer they have been handed a task
func (m *ConnectionManager) NotifyAssignment(engineerID, taskID string) error {
	return m.SendTo(engineerID, Message{
		Type:       "assignment",
		TaskID:     taskID,
		EngineerID: engineerID,
		Text:       fmt.Sprintf("Task %s assigned to you.", taskID),
	})
}

// Send delivers an SLA alert to all connected engineers. It implements
// the monitor's dispatcher contract; retry stays with the caller.
func (m *ConnectionManager) Send(ctx context.Context, alert models.Alert) error {
	msg := Message{
		Type:            "sla_alert",
		TaskID:          alert.TaskID,
		Text:            alert.Message,
		Category:        alert.Category,
		EscalationLevel: alert.EscalationLevel,
	}

	m.mu.RLock()
	connected := len(m.connections)
	m.mu.RUnlock()

	if connected == 0 {
		return fmt.Errorf("%w: no live connections for alert %s", ErrNotConnected, alert.ID)
	}

	if delivered := m.Broadcast(msg); delivered == 0 {
		return fmt.Errorf("alert %s reached no connections", alert.ID)
	}
	return nil
}
