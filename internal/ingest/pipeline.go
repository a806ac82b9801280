// Package ingest turns unprocessed mailbox messages into bookmark files and
// labels the messages so they are not picked up again.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
	"github.com/MrSnakeDoc/mailmarks/internal/logger"
	"github.com/MrSnakeDoc/mailmarks/internal/mail"
	"github.com/MrSnakeDoc/mailmarks/internal/transform"
)

// ErrInvalidMessageID is returned for an empty message ID, before the
// provider is called.
var ErrInvalidMessageID = errors.New("invalid message id")

// BookmarkWriter persists one bookmark and returns where it was written.
type BookmarkWriter interface {
	Write(b domain.Bookmark) (string, error)
}

// Ledger remembers which messages were already ingested. It lets a batch
// skip messages whose files exist but whose label could not be applied.
type Ledger interface {
	IsIngested(ctx context.Context, messageID string) (bool, error)
	MarkIngested(ctx context.Context, messageID, runID string, bookmarkIDs []string) error
	SaveRun(ctx context.Context, run domain.IngestRun) error
}

// Pipeline runs ingestion batches against one provider.
type Pipeline struct {
	provider    mail.Provider
	transformer *transform.Transformer
	writer      BookmarkWriter
	ledger      Ledger
	label       string
	logger      logger.Logger
	newRunID    func() string
	now         func() time.Time

	mu      sync.Mutex
	labelID string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLedger enables the ingestion ledger.
func WithLedger(l Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithLogger sets the pipeline logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTransformer replaces the default transformer.
func WithTransformer(t *transform.Transformer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.transformer = t
		}
	}
}

// WithRunIDs overrides the run ID generator.
func WithRunIDs(fn func() string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.newRunID = fn
		}
	}
}

// New creates a pipeline that labels processed messages with label.
func New(provider mail.Provider, writer BookmarkWriter, label string, opts ...Option) (*Pipeline, error) {
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if strings.TrimSpace(label) == "" {
		return nil, errors.New("processed label is required")
	}

	p := &Pipeline{
		provider:    provider,
		transformer: transform.New(),
		writer:      writer,
		label:       label,
		logger:      logger.NewNop(),
		newRunID:    func() string { return uuid.NewString() },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// EnsureLabel resolves the processed label once and caches its ID.
func (p *Pipeline) EnsureLabel(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.labelID != "" {
		return p.labelID, nil
	}

	id, err := p.provider.EnsureLabel(ctx, p.label)
	if err != nil {
		return "", fmt.Errorf("failed to ensure label %q: %w", p.label, err)
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s", mail.ErrNoSuchLabel, p.label)
	}
	p.labelID = id
	return id, nil
}

// RunBatch lists unprocessed messages and handles them one at a time.
// A failing message is logged and left unlabelled for the next batch.
// Listing errors abort the batch.
func (p *Pipeline) RunBatch(ctx context.Context) (domain.IngestRun, error) {
	run := domain.IngestRun{
		ID:        p.newRunID(),
		StartedAt: p.now().UTC(),
	}
	log := logger.With(p.logger, logger.String("run_id", run.ID))

	labelID, err := p.EnsureLabel(ctx)
	if err != nil {
		return p.finish(ctx, log, run), err
	}

	ids, err := p.provider.ListUnprocessed(ctx, p.label)
	if err != nil {
		return p.finish(ctx, log, run), fmt.Errorf("failed to list messages: %w", err)
	}
	run.Listed = len(ids)

	if len(ids) == 0 {
		log.Debug("no new messages")
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return p.finish(ctx, log, run), err
		}

		res, err := p.process(ctx, log, run.ID, labelID, id)
		if err != nil {
			run.Failed++
			log.Error("failed to process message",
				logger.String("message_id", id),
				logger.Error(err))
			continue
		}

		run.Processed++
		run.Bookmarks += res.written
		if res.alreadyIngested {
			run.AlreadyIngested++
		}
	}

	return p.finish(ctx, log, run), nil
}

// ProcessMessage handles a single message and returns the number of
// bookmarks written.
func (p *Pipeline) ProcessMessage(ctx context.Context, labelID, id string) (int, error) {
	runID := p.newRunID()
	res, err := p.process(ctx, logger.With(p.logger, logger.String("run_id", runID)), runID, labelID, id)
	return res.written, err
}

type result struct {
	written         int
	alreadyIngested bool
}

func (p *Pipeline) process(ctx context.Context, log logger.Logger, runID, labelID, id string) (result, error) {
	if strings.TrimSpace(id) == "" {
		return result{}, ErrInvalidMessageID
	}
	log = logger.With(log, logger.String("message_id", id))

	if p.ledger != nil {
		seen, err := p.ledger.IsIngested(ctx, id)
		if err != nil {
			log.Warn("ledger lookup failed", logger.Error(err))
		}
		if seen {
			if err := p.provider.MarkProcessed(ctx, id, labelID); err != nil {
				return result{}, fmt.Errorf("failed to mark message: %w", err)
			}
			log.Info("message already ingested, relabelled")
			return result{alreadyIngested: true}, nil
		}
	}

	msg, err := p.provider.GetMessage(ctx, id)
	if err != nil {
		return result{}, fmt.Errorf("failed to get message: %w", err)
	}

	bookmarks, err := p.transformer.Transform(msg)
	if err != nil {
		return result{}, fmt.Errorf("failed to transform message: %w", err)
	}

	ids := make([]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		path, err := p.writer.Write(b)
		if err != nil {
			return result{written: len(ids)}, fmt.Errorf("failed to write bookmark %s: %w", b.ID, err)
		}
		ids = append(ids, b.ID)

		fields := []logger.Field{
			logger.String("path", path),
			logger.String("url", b.URL),
			logger.Strings("tags", b.Tags),
		}
		if b.DateResolution == domain.DateDefaulted {
			fields = append(fields, logger.String("date", b.DateResolution.String()))
		}
		log.Info("bookmark saved", fields...)
	}

	if len(bookmarks) == 0 {
		log.Info("no links found")
	}

	if p.ledger != nil {
		if err := p.ledger.MarkIngested(ctx, id, runID, ids); err != nil {
			log.Warn("failed to record message in ledger", logger.Error(err))
		}
	}

	if err := p.provider.MarkProcessed(ctx, id, labelID); err != nil {
		return result{written: len(ids)}, fmt.Errorf("failed to mark message: %w", err)
	}

	return result{written: len(ids)}, nil
}

func (p *Pipeline) finish(ctx context.Context, log logger.Logger, run domain.IngestRun) domain.IngestRun {
	run.FinishedAt = p.now().UTC()

	if p.ledger != nil {
		// The batch context may already be cancelled.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := p.ledger.SaveRun(saveCtx, run); err != nil {
			log.Warn("failed to save run summary", logger.Error(err))
		}
	}

	log.Info("batch finished",
		logger.Int("listed", run.Listed),
		logger.Int("processed", run.Processed),
		logger.Int("already_ingested", run.AlreadyIngested),
		logger.Int("failed", run.Failed),
		logger.Int("bookmarks", run.Bookmarks),
		logger.Duration("elapsed", run.Duration()))

	return run
}
