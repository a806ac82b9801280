// Package redis keeps the ingestion ledger: which provider messages were
// already turned into bookmark files, and the summary of the last batch.
package redis

import (
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRecordTTL is how long a message record is kept (90 days).
	// Membership in the ingested set does not expire.
	DefaultRecordTTL = 90 * 24 * time.Hour
)

// Store handles Redis operations for the ledger
type Store struct {
	client    *redis.Client
	recordTTL time.Duration
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client:    client,
		recordTTL: DefaultRecordTTL,
	}
}
