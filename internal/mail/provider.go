package mail

import (
	"context"
	"errors"
)

// ErrNoSuchLabel is returned when a label cannot be found or created.
var ErrNoSuchLabel = errors.New("label not available")

// Provider is the mailbox the ingestion pipeline reads from. Implementations
// mark messages with a label (or keyword) once they have been turned into
// bookmarks, and exclude labelled messages from later listings.
type Provider interface {
	// ListUnprocessed returns IDs of messages that do not carry excludeLabel.
	ListUnprocessed(ctx context.Context, excludeLabel string) ([]string, error)

	// GetMessage fetches one message with headers and body.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// EnsureLabel returns the ID of the label called name, creating it if needed.
	EnsureLabel(ctx context.Context, name string) (string, error)

	// MarkProcessed attaches the label to the message.
	MarkProcessed(ctx context.Context, messageID, labelID string) error

	// Close releases the underlying connection.
	Close() error
}
