package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/mailmarks/internal/index"
	"github.com/MrSnakeDoc/mailmarks/internal/logger"
)

// Rebuilder regenerates the index page.
type Rebuilder interface {
	Rebuild(ctx context.Context) (index.Result, error)
}

// IndexRebuilder handles periodic and on-demand rebuilds of the index page
type IndexRebuilder struct {
	builder       Rebuilder
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	started       atomic.Bool
	manualTrigger chan struct{}
	done          chan struct{}
}

// NewIndexRebuilder creates a new index rebuilder. A zero interval disables
// periodic rebuilds; Trigger still works.
func NewIndexRebuilder(builder Rebuilder, log logger.Logger, interval time.Duration) *IndexRebuilder {
	if log == nil {
		log = logger.NewNop()
	}
	return &IndexRebuilder{
		builder:       builder,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start rebuilds once, then keeps rebuilding in the background until Stop
// is called or ctx is cancelled.
func (r *IndexRebuilder) Start(ctx context.Context) error {
	if _, err := r.builder.Rebuild(ctx); err != nil {
		return fmt.Errorf("initial index rebuild failed: %w", err)
	}
	r.started.Store(true)

	go func() {
		defer close(r.done)

		var tick <-chan time.Time
		if r.interval > 0 {
			ticker := time.NewTicker(r.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-tick:
				r.rebuild(ctx)
			case <-r.manualTrigger:
				r.logger.Info("manual index rebuild triggered")
				r.rebuild(ctx)
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Trigger requests a rebuild without waiting for it. Requests made while
// one is pending are coalesced. It reports whether a new request was queued.
func (r *IndexRebuilder) Trigger() bool {
	select {
	case r.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop stops the rebuilder and waits for the loop to exit
func (r *IndexRebuilder) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	if r.started.Load() {
		<-r.done
	}
}

func (r *IndexRebuilder) rebuild(ctx context.Context) {
	if _, err := r.builder.Rebuild(ctx); err != nil {
		r.logger.Error("failed to rebuild index", logger.Error(err))
	}
}
