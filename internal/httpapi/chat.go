package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/secretary/internal/prompt"
)

const defaultConversationID = "default"

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Debug          bool   `json:"debug"`
}

type chatResponse struct {
	Reply     string       `json:"reply"`
	DebugInfo *prompt.View `json:"debug_info,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		req.ConversationID = defaultConversationID
	}

	reply, err := s.orchestrator.HandleUserMessage(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "chat_failed", err.Error())
		return
	}

	resp := chatResponse{Reply: reply}
	if req.Debug {
		view, err := s.orchestrator.Introspection(r.Context(), req.ConversationID)
		if err == nil {
			resp.DebugInfo = &view
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIntrospection(w http.ResponseWriter, r *http.Request) {
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversation_id"))
	if conversationID == "" {
		conversationID = defaultConversationID
	}

	view, err := s.orchestrator.Introspection(r.Context(), conversationID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "introspection_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type wsChatMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Reply   string `json:"reply,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// handleChatWS serves the bundled chat page: one JSON message in, one reply
// out, over a single long-lived connection.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversation_id"))
	if conversationID == "" {
		conversationID = defaultConversationID
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	for {
		var msg wsChatMessage
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Message) == "" {
			_ = conn.WriteJSON(wsChatMessage{Type: "error", Detail: "expected {type: message, message: ...}"})
			continue
		}

		reply, err := s.orchestrator.HandleUserMessage(r.Context(), conversationID, msg.Message)
		if err != nil {
			_ = conn.WriteJSON(wsChatMessage{Type: "error", Detail: err.Error()})
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(wsChatMessage{Type: "reply", Reply: reply}); err != nil {
			return
		}
	}
}
