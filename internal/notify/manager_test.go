package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/notfall/dispatch-engine/internal/models"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialTestConn builds a connected server/client websocket pair. The
// server side is registered with the manager and returned alongside
// the client side, which is used for reading.
func dialTestConn(t *testing.T, manager *ConnectionManager, engineerID string) (client, server *websocket.Conn) {
	t.Helper()

	serverSide := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverSide <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-serverSide:
		manager.Register(engineerID, server)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for server-side connection")
	}

	return client, server
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return msg
}

func TestSendToConnectedEngineer(t *testing.T) {
	manager := NewConnectionManager()
	client, _ := dialTestConn(t, manager, "E1")

	if !manager.Connected("E1") {
		t.Fatal("E1 should be connected")
	}

	if err := manager.NotifyAssignment("E1", "T1"); err != nil {
		t.Fatalf("NotifyAssignment failed: %v", err)
	}

	msg := readMessage(t, client)
	if msg.Type != "assignment" || msg.TaskID != "T1" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestSendToUnknownEngineer(t *testing.T) {
	manager := NewConnectionManager()

	err := manager.SendTo("ghost", Message{Type: "assignment"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestUnregisterRemovesConnection(t *testing.T) {
	manager := NewConnectionManager()
	_, server := dialTestConn(t, manager, "E1")

	manager.Unregister("E1", server)
	if manager.Connected("E1") {
		t.Error("E1 should be disconnected after unregister")
	}
	if err := manager.SendTo("E1", Message{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestReconnectSurvivesStaleUnregister(t *testing.T) {
	manager := NewConnectionManager()
	_, first := dialTestConn(t, manager, "E1")
	client, second := dialTestConn(t, manager, "E1")

	// The first handler unwinds after its connection was replaced; its
	// teardown must not remove the live registration.
	manager.Unregister("E1", first)
	if !manager.Connected("E1") {
		t.Fatal("E1 lost its live registration after reconnecting")
	}

	if err := manager.NotifyAssignment("E1", "T1"); err != nil {
		t.Fatalf("NotifyAssignment failed: %v", err)
	}
	msg := readMessage(t, client)
	if msg.Type != "assignment" || msg.TaskID != "T1" {
		t.Errorf("unexpected message: %+v", msg)
	}

	manager.Unregister("E1", second)
	if manager.Connected("E1") {
		t.Error("E1 should be disconnected after the live teardown")
	}
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	manager := NewConnectionManager()
	c1, _ := dialTestConn(t, manager, "E1")
	c2, _ := dialTestConn(t, manager, "E2")

	delivered := manager.Broadcast(Message{Type: "sla_alert", Text: "SLA breached"})
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}

	for _, client := range []*websocket.Conn{c1, c2} {
		msg := readMessage(t, client)
		if msg.Type != "sla_alert" {
			t.Errorf("unexpected message type: %s", msg.Type)
		}
	}
}

func TestDispatcherSendWithNoConnections(t *testing.T) {
	manager := NewConnectionManager()

	err := manager.Send(context.Background(), models.Alert{ID: "a1", Message: "SLA breached"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestDispatcherSendDeliversAlert(t *testing.T) {
	manager := NewConnectionManager()
	client, _ := dialTestConn(t, manager, "E1")

	alert := models.Alert{
		ID:              "a1",
		TaskID:          "T1",
		Message:         "SLA breached [Escalated to Level 3]",
		Category:        models.CategoryCritical,
		EscalationLevel: 3,
	}
	if err := manager.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	msg := readMessage(t, client)
	if msg.Category != models.CategoryCritical || msg.EscalationLevel != 3 {
		t.Errorf("unexpected alert envelope: %+v", msg)
	}
}
