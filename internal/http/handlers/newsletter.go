package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/intellagent/scheduling-service/pkg/logging"
)

// Subscriber adds an address to the newsletter list.
type Subscriber interface {
	SubscribeEmail(ctx context.Context, email string) error
}

// NewsletterHandler handles footer newsletter signups.
type NewsletterHandler struct {
	subscriber Subscriber
	logger     *logging.Logger
}

// NewNewsletterHandler creates a newsletter handler.
func NewNewsletterHandler(subscriber Subscriber, logger *logging.Logger) *NewsletterHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &NewsletterHandler{subscriber: subscriber, logger: logger}
}

// Subscribe records a newsletter signup.
func (h *NewsletterHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	if err := h.subscriber.SubscribeEmail(r.Context(), email); err != nil {
		h.logger.Error("newsletter subscribe failed", "error", err)
		writeError(w, http.StatusBadGateway, "subscription failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
}
