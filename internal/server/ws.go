package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/castellanodev/ragserve/internal/rag"
)

type wsMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	UserID string `json:"user_id,omitempty"`
}

type wsReply struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// handleWebSocket runs an interactive chat session over one socket. Each
// incoming message is answered through the same pipeline as POST /chat;
// errors are reported in-band so the connection survives a failed answer.
func (s *Server) handleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rag == nil {
			s.writeError(w, http.StatusServiceUnavailable, "chat is not initialized")
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Warn("websocket read failed", "error", err)
				}
				return
			}
			if msg.Type != "chat" || msg.Text == "" {
				if err := conn.WriteJSON(wsReply{Type: "error", Content: "message must be {\"type\":\"chat\",\"text\":...}"}); err != nil {
					return
				}
				continue
			}

			result, err := s.rag.Answer(r.Context(), rag.Request{Text: msg.Text, UserID: msg.UserID})
			if err != nil {
				s.logger.Error("websocket answer failed", "error", err)
				if err := conn.WriteJSON(wsReply{Type: "error", Content: "failed to answer: " + err.Error()}); err != nil {
					return
				}
				continue
			}
			if err := conn.WriteJSON(wsReply{Type: "response", Content: result.Plain()}); err != nil {
				return
			}
		}
	}
}
