// Package scheduler runs the background loops: periodic ingestion batches,
// periodic and on-demand index rebuilds, and content directory watching.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
	"github.com/MrSnakeDoc/mailmarks/internal/logger"
)

// BatchRunner runs one ingestion batch.
type BatchRunner interface {
	RunBatch(ctx context.Context) (domain.IngestRun, error)
}

// Poller runs ingestion batches at a fixed interval
type Poller struct {
	runner   BatchRunner
	logger   logger.Logger
	interval time.Duration
	runOnce  bool
	afterRun func(domain.IngestRun)
}

// NewPoller creates a new poller. With runOnce set, Run returns after the
// first batch.
func NewPoller(runner BatchRunner, log logger.Logger, interval time.Duration, runOnce bool) *Poller {
	if log == nil {
		log = logger.NewNop()
	}
	return &Poller{
		runner:   runner,
		logger:   log,
		interval: interval,
		runOnce:  runOnce,
	}
}

// OnBatch registers a callback invoked after every batch, failed or not.
func (p *Poller) OnBatch(fn func(domain.IngestRun)) {
	p.afterRun = fn
}

// Run blocks until ctx is cancelled. A failed batch is logged and retried
// at the next tick. In run-once mode the batch error is returned.
func (p *Poller) Run(ctx context.Context) error {
	if p.runOnce {
		return p.batch(ctx)
	}
	if p.interval <= 0 {
		return errors.New("poll interval must be > 0")
	}

	p.logger.Info("poller started", logger.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.batch(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("ingestion batch failed", logger.Error(err))
		}

		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) batch(ctx context.Context) error {
	run, err := p.runner.RunBatch(ctx)
	if p.afterRun != nil {
		p.afterRun(run)
	}
	return err
}
