package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SaveRun stores the summary of the latest ingestion batch
func (s *Store) SaveRun(ctx context.Context, run domain.IngestRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	if err := s.client.Set(ctx, KeyLastRun, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// LastRun returns the summary of the latest ingestion batch.
// ok is false when no batch was recorded yet.
func (s *Store) LastRun(ctx context.Context) (run domain.IngestRun, ok bool, err error) {
	data, err := s.client.Get(ctx, KeyLastRun).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.IngestRun{}, false, nil
		}
		return domain.IngestRun{}, false, fmt.Errorf("failed to get last run: %w", err)
	}

	if err := json.Unmarshal(data, &run); err != nil {
		return domain.IngestRun{}, false, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return run, true, nil
}
