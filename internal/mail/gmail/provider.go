// Package gmail implements mail.Provider on top of the Gmail API.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/MrSnakeDoc/mailmarks/internal/logger"
	"github.com/MrSnakeDoc/mailmarks/internal/mail"
)

const (
	user = "me"

	// DefaultQueryLabel restricts listing to sent mail.
	DefaultQueryLabel = "SENT"
	// DefaultMaxResults is the page size of one listing.
	DefaultMaxResults = 10
)

// Config selects which messages are listed.
type Config struct {
	QueryLabel string
	MaxResults int64
}

// Provider reads messages through the Gmail API.
type Provider struct {
	svc        *gmailapi.Service
	queryLabel string
	maxResults int64
	logger     logger.Logger
}

// New creates a provider from API client options, typically
// option.WithHTTPClient with the client returned by HTTPClient.
func New(ctx context.Context, cfg Config, log logger.Logger, opts ...option.ClientOption) (*Provider, error) {
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return NewWithService(svc, cfg, log), nil
}

// NewWithService wraps an existing Gmail service.
func NewWithService(svc *gmailapi.Service, cfg Config, log logger.Logger) *Provider {
	if cfg.QueryLabel == "" {
		cfg.QueryLabel = DefaultQueryLabel
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Provider{
		svc:        svc,
		queryLabel: cfg.QueryLabel,
		maxResults: cfg.MaxResults,
		logger:     log,
	}
}

// ListUnprocessed implements mail.Provider.
func (p *Provider) ListUnprocessed(ctx context.Context, excludeLabel string) ([]string, error) {
	resp, err := p.svc.Users.Messages.List(user).
		LabelIds(p.queryLabel).
		Q(ExcludeQuery(excludeLabel)).
		MaxResults(p.maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m != nil && m.Id != "" {
			ids = append(ids, m.Id)
		}
	}

	p.logger.Debug("listed messages",
		logger.String("label", p.queryLabel),
		logger.Int("count", len(ids)))

	return ids, nil
}

// GetMessage implements mail.Provider.
func (p *Provider) GetMessage(ctx context.Context, id string) (*mail.Message, error) {
	msg, err := p.svc.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return convertMessage(msg)
}

// EnsureLabel implements mail.Provider.
func (p *Provider) EnsureLabel(ctx context.Context, name string) (string, error) {
	resp, err := p.svc.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if l != nil && l.Name == name {
			return l.Id, nil
		}
	}

	created, err := p.svc.Users.Labels.Create(user, &gmailapi.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label %q: %w", name, err)
	}
	if created.Id == "" {
		return "", fmt.Errorf("%w: %s", mail.ErrNoSuchLabel, name)
	}

	p.logger.Info("created label",
		logger.String("name", name),
		logger.String("id", created.Id))

	return created.Id, nil
}

// MarkProcessed implements mail.Provider.
func (p *Provider) MarkProcessed(ctx context.Context, messageID, labelID string) error {
	_, err := p.svc.Users.Messages.Modify(user, messageID, &gmailapi.ModifyMessageRequest{
		AddLabelIds: []string{labelID},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to label message %s: %w", messageID, err)
	}
	return nil
}

// Close implements mail.Provider. The HTTP client needs no cleanup.
func (p *Provider) Close() error {
	return nil
}

// ExcludeQuery returns the search query excluding messages with label.
// Gmail matches label names with spaces written as dashes.
func ExcludeQuery(label string) string {
	return "-label:" + strings.ReplaceAll(strings.TrimSpace(label), " ", "-")
}

func convertMessage(msg *gmailapi.Message) (*mail.Message, error) {
	if msg == nil {
		return nil, errors.New("empty message")
	}

	out := &mail.Message{ID: msg.Id}
	if msg.Payload == nil {
		return out, nil
	}

	for _, h := range msg.Payload.Headers {
		if h == nil {
			continue
		}
		out.Headers = append(out.Headers, mail.Header{Name: h.Name, Value: h.Value})
	}
	out.Payload = convertPart(msg.Payload)
	return out, nil
}

func convertPart(p *gmailapi.MessagePart) mail.Part {
	part := mail.Part{MimeType: p.MimeType}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		if child == nil {
			continue
		}
		part.Parts = append(part.Parts, convertPart(child))
	}
	return part
}

var _ mail.Provider = (*Provider)(nil)
