package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/notfall/dispatch-engine/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEngineerWS upgrades an engineer's notification channel. The
// connection stays registered until the peer goes away; inbound frames
// are only read to detect the close.
func (s *Server) handleEngineerWS(w http.ResponseWriter, r *http.Request) {
	engineerID := chi.URLParam(r, "id")
	if engineerID == "" {
		http.Error(w, "engineer id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}

	s.notifier.Register(engineerID, conn)

	defer func() {
		s.notifier.Unregister(engineerID, conn)
		conn.Close()
	}()

	if err := s.notifier.SendTo(engineerID, notify.Message{
		Type:       "connected",
		EngineerID: engineerID,
		Text:       "Notification channel established.",
	}); err != nil {
		slog.Warn("failed to send welcome message", "engineer_id", engineerID, "error", err)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket closed unexpectedly", "engineer_id", engineerID, "error", err)
			}
			return
		}
	}
}
