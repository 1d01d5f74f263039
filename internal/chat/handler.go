package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/intellagent/scheduling-service/internal/automation"
	"github.com/intellagent/scheduling-service/pkg/logging"
)

// InboundMessage is what the chat widget sends over the socket.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "ping"
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string    `json:"type"` // "reply", "stage", "history", "pong", "error"
	Text      string    `json:"text,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Locale    string    `json:"locale,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
}

// Handler exposes the chat service over WebSocket with an HTTP fallback, and
// pushes automation stage changes to every connected widget.
type Handler struct {
	service *Service
	logger  *logging.Logger

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// NewHandler builds the chat handler and subscribes it to sequencer stage
// transitions so connected widgets see fill progress live.
func NewHandler(service *Service, seq *automation.Sequencer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		service: service,
		logger:  logger,
		conns:   make(map[*websocket.Conn]struct{}),
	}
	if seq != nil {
		seq.OnStage(h.broadcastStage)
	}
	return h
}

// HandleWebSocket upgrades to WebSocket and relays chat turns.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := r.URL.Query().Get("session")

	if sessionID != "" {
		if msgs, err := h.service.History(r.Context(), sessionID, 50); err == nil && len(msgs) > 0 {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: msgs})
		}
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
	}()

	h.logger.Info("chat connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("chat connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		if msg.SessionID != "" {
			sessionID = msg.SessionID
		}

		result, err := h.service.HandleTurn(r.Context(), sessionID, msg.Text)
		if err != nil {
			h.logger.Error("chat turn failed", "session_id", sessionID, "error", err)
			_ = websocket.JSON.Send(conn, OutboundMessage{
				Type: "error",
				Text: "Sorry, something went wrong. Please try again.",
			})
			continue
		}

		sessionID = result.SessionID
		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type:      "reply",
			Text:      result.Reply,
			SessionID: result.SessionID,
			Locale:    result.Locale,
		})
	}
}

// broadcastStage pushes an automation stage transition to all connections.
func (h *Handler) broadcastStage(stage automation.Stage, errMsg string) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	msg := OutboundMessage{Type: "stage", Stage: string(stage), Error: errMsg}
	for _, conn := range conns {
		_ = websocket.JSON.Send(conn, msg)
	}
}

// HandleMessage is the HTTP fallback for one chat turn.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	// Turns can outlive an impatient client; give the assistant a bounded
	// window instead of inheriting the request cancellation directly.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 60*time.Second)
	defer cancel()

	result, err := h.service.HandleTurn(ctx, req.SessionID, req.Message)
	if err != nil {
		h.logger.Error("chat turn failed", "session_id", req.SessionID, "error", err)
		http.Error(w, "chat turn failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// HandleHistory returns the stored transcript for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	limit := int64(100)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	msgs, err := h.service.History(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("failed to load history", "session_id", sessionID, "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": msgs})
}
