package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no record exists for a message.
var ErrNotFound = errors.New("message not found in ledger")

// MessageRecord is what the ledger remembers about an ingested message.
type MessageRecord struct {
	MessageID   string    `json:"message_id"`
	RunID       string    `json:"run_id"`
	BookmarkIDs []string  `json:"bookmark_ids"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// MarkIngested records that messageID produced bookmarkIDs during run runID
func (s *Store) MarkIngested(ctx context.Context, messageID, runID string, bookmarkIDs []string) error {
	if bookmarkIDs == nil {
		bookmarkIDs = []string{}
	}
	data, err := json.Marshal(MessageRecord{
		MessageID:   messageID,
		RunID:       runID,
		BookmarkIDs: bookmarkIDs,
		IngestedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, MessageKey(messageID), data, s.recordTTL)
	pipe.SAdd(ctx, KeyIngestedMessages, messageID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark message ingested: %w", err)
	}

	return nil
}

// IsIngested reports whether messageID was already ingested
func (s *Store) IsIngested(ctx context.Context, messageID string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, KeyIngestedMessages, messageID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check message: %w", err)
	}
	return ok, nil
}

// GetMessage retrieves the record of an ingested message
func (s *Store) GetMessage(ctx context.Context, messageID string) (*MessageRecord, error) {
	data, err := s.client.Get(ctx, MessageKey(messageID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, messageID)
		}
		return nil, fmt.Errorf("failed to get message record: %w", err)
	}

	var rec MessageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message record: %w", err)
	}

	return &rec, nil
}

// CountIngested returns the number of messages in the ledger
func (s *Store) CountIngested(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, KeyIngestedMessages).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count ingested messages: %w", err)
	}
	return n, nil
}

// Forget removes a message from the ledger so the next batch ingests it again
func (s *Store) Forget(ctx context.Context, messageID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, MessageKey(messageID))
	pipe.SRem(ctx, KeyIngestedMessages, messageID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to forget message: %w", err)
	}
	return nil
}
