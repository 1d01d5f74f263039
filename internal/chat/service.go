package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/intellagent/scheduling-service/internal/automation"
	"github.com/intellagent/scheduling-service/internal/crm"
	"github.com/intellagent/scheduling-service/pkg/logging"
)

// Assistant relays one chat turn to the upstream model.
type Assistant interface {
	ChatMessage(ctx context.Context, message, sessionID string) (*crm.ChatResponse, error)
}

// TurnResult is what the visitor-facing surface renders after a chat turn.
type TurnResult struct {
	Reply               string `json:"reply"`
	SessionID           string `json:"sessionId"`
	Locale              string `json:"locale,omitempty"`
	AutomationTriggered bool   `json:"automationTriggered"`
}

// Service runs chat turns: relay to the assistant, strip instruction markers
// from the reply, kick off automation, and persist the transcript.
type Service struct {
	assistant  Assistant
	sequencer  *automation.Sequencer
	transcript *TranscriptStore
	logger     *logging.Logger
}

// NewService builds a chat service. transcript may be nil.
func NewService(assistant Assistant, seq *automation.Sequencer, transcript *TranscriptStore, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		assistant:  assistant,
		sequencer:  seq,
		transcript: transcript,
		logger:     logger,
	}
}

// HandleTurn processes one visitor message. sessionID may be empty on the
// first turn; the assistant assigns one and it is echoed back in the result.
func (s *Service) HandleTurn(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.New("chat: empty message")
	}

	resp, err := s.assistant.ChatMessage(ctx, message, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat: assistant turn: %w", err)
	}

	cleaned, locale := ExtractLocaleChange(resp.Response)
	cleaned, payload, extractErr := ExtractAutomation(cleaned)
	if extractErr != nil {
		s.logger.Warn("automation marker could not be parsed", "session_id", resp.SessionID, "error", extractErr)
	}

	triggered := false
	if payload != nil && s.sequencer != nil {
		switch err := s.sequencer.Trigger(*payload); {
		case err == nil:
			triggered = true
		case errors.Is(err, automation.ErrRunActive):
			s.logger.Warn("automation instruction ignored, run already active", "session_id", resp.SessionID)
		default:
			s.logger.Error("automation trigger failed", "session_id", resp.SessionID, "error", err)
		}
	}

	s.appendTranscript(ctx, resp.SessionID, Message{Role: "user", Content: message})
	s.appendTranscript(ctx, resp.SessionID, Message{Role: "assistant", Content: cleaned, Locale: locale})

	return &TurnResult{
		Reply:               cleaned,
		SessionID:           resp.SessionID,
		Locale:              locale,
		AutomationTriggered: triggered,
	}, nil
}

// History returns the stored transcript for a session, oldest first.
func (s *Service) History(ctx context.Context, sessionID string, limit int64) ([]Message, error) {
	return s.transcript.History(ctx, sessionID, limit)
}

func (s *Service) appendTranscript(ctx context.Context, sessionID string, msg Message) {
	if err := s.transcript.Append(ctx, sessionID, msg); err != nil {
		s.logger.Warn("transcript append failed", "session_id", sessionID, "error", err)
	}
}
