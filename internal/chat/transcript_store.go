package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const transcriptKeyPrefix = "chat_transcript:"

// transcriptTTL keeps abandoned conversations from accumulating forever.
const transcriptTTL = 7 * 24 * time.Hour

// Message is one chat turn as stored in the transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Locale    string    `json:"locale,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore persists chat transcripts in Redis, capped per session.
// A nil store is valid and drops everything; chat works without Redis, the
// history endpoint just comes back empty.
type TranscriptStore struct {
	redis       *redis.Client
	tracer      trace.Tracer
	maxMessages int64
}

func NewTranscriptStore(redisClient *redis.Client, maxMessages int64) *TranscriptStore {
	if redisClient == nil {
		return nil
	}
	if maxMessages <= 0 {
		maxMessages = 250
	}
	return &TranscriptStore{
		redis:       redisClient,
		tracer:      otel.Tracer("chat.transcript"),
		maxMessages: maxMessages,
	}
}

func transcriptKey(sessionID string) string {
	return transcriptKeyPrefix + sessionID
}

// Append stores one message at the end of the session's transcript.
func (s *TranscriptStore) Append(ctx context.Context, sessionID string, msg Message) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if sessionID == "" {
		return errors.New("chat: transcript sessionID required")
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chat: marshal transcript message: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "chat.transcript.append")
	defer span.End()

	key := transcriptKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, transcriptTTL)
	pipe.LTrim(ctx, key, -s.maxMessages, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: append transcript message: %w", err)
	}
	return nil
}

// History returns the most recent messages for a session, oldest first.
// limit <= 0 returns the whole stored transcript.
func (s *TranscriptStore) History(ctx context.Context, sessionID string, limit int64) ([]Message, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if sessionID == "" {
		return nil, errors.New("chat: transcript sessionID required")
	}

	ctx, span := s.tracer.Start(ctx, "chat.transcript.history")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}

	raw, err := s.redis.LRange(ctx, transcriptKey(sessionID), start, -1).Result()
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("chat: list transcript: %w", err)
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			// Skip corrupt entries rather than losing the whole history.
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
