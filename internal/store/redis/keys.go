package redis

import "fmt"

const (
	// KeyPrefixMessage is the prefix for per-message ledger records
	KeyPrefixMessage = "mailmarks:message:"
	// KeyIngestedMessages is the set of all ingested message IDs
	KeyIngestedMessages = "mailmarks:messages:ingested"
	// KeyLastRun holds the summary of the latest ingestion batch
	KeyLastRun = "mailmarks:run:last"
)

// MessageKey returns the Redis key for a message record
func MessageKey(id string) string {
	return KeyPrefixMessage + id
}

// ExtractMessageID extracts the message ID from a Redis key
func ExtractMessageID(key string) (string, error) {
	if len(key) <= len(KeyPrefixMessage) || key[:len(KeyPrefixMessage)] != KeyPrefixMessage {
		return "", fmt.Errorf("invalid message key: %s", key)
	}
	return key[len(KeyPrefixMessage):], nil
}
