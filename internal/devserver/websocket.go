package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nimbusworks/workchat/internal/chat"
	"github.com/nimbusworks/workchat/internal/connections"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dev server only; never exposed publicly
	},
}

// HandleChat serves the chat WebSocket for one session and workspace.
func (s *Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	workspaceID := r.URL.Query().Get("workspace_id")
	tokenString := r.URL.Query().Get("token")

	if tokenString == "" || workspaceID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, valid := validateAccessToken(tokenString)
	if !valid || claims.SessionID != sessionID {
		log.Warn().
			Str("session_id", sessionID).
			Str("remote", r.RemoteAddr).
			Msg("Rejected chat socket with invalid token")
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	if _, found, err := s.sessions.Get(r.Context(), sessionID); err != nil || !found {
		http.Error(w, "Unknown session", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "Could not upgrade connection", http.StatusInternalServerError)
		return
	}

	s.registry.Add(conn)
	defer func() {
		s.registry.Remove(conn)
		conn.Close()
	}()

	log.Info().
		Str("session_id", sessionID).
		Str("workspace_id", workspaceID).
		Msg("Chat socket opened")

	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(s.timeouts.WriteWait))
		return conn.WriteJSON(v)
	}

	// Ping ticker keeps idle sockets alive.
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(s.timeouts.PingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(s.timeouts.WriteWait))
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.timeouts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.timeouts.PongWait))
	})

	if err := writeJSON(chat.Frame{Type: chat.FrameConnectionEstablished}); err != nil {
		return
	}

	executions := 0

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.timeouts.PongWait))

		var inbound chat.OutboundFrame
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("session_id", sessionID).Msg("Chat socket read failed")
			}
			return
		}

		if inbound.Type != "chat_message" || inbound.Content == "" {
			continue
		}

		replyID := uuid.New().String()

		meta, err := s.responder.Respond(r.Context(), inbound.Content, func(chunk string) {
			_ = writeJSON(chat.Frame{
				Type:      chat.FrameStreamChunk,
				MessageID: replyID,
				Content:   chunk,
			})
		})
		if err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("Responder failed")
			_ = writeJSON(chat.Frame{
				Type:      chat.FrameComplete,
				MessageID: replyID,
				Content:   "The assistant is unavailable right now.",
			})
			continue
		}

		_ = writeJSON(chat.Frame{
			Type:       chat.FrameComplete,
			MessageID:  replyID,
			ModelUsed:  meta.Model,
			TokensUsed: meta.TokensUsed,
			TotalCost:  meta.TotalCost,
			Metadata:   map[string]any{"provider": meta.Provider},
		})

		executions++
		execCount := executions
		_ = writeJSON(chat.Frame{
			Type:          chat.FrameWorkspaceUpdate,
			WorkspaceData: &chat.WorkspaceData{ExecutionCount: &execCount},
		})
	}
}

// timeouts defaults live in the client connection package; the dev
// server mirrors them so either side may drop an unresponsive peer.
func defaultTimeouts() connections.TimeoutConfig {
	return connections.DefaultTimeouts
}
