package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/metrics"
	"github.com/MrSnakeDoc/aimarket/internal/store"
)

const (
	// DefaultSweepInterval is how often pending submissions are checked.
	DefaultSweepInterval = time.Hour
)

// PendingSweeper removes submissions nobody approved within the TTL.
type PendingSweeper struct {
	store    store.Store
	logger   logger.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPendingSweeper creates a sweeper. ttl must be positive.
func NewPendingSweeper(
	st store.Store,
	log logger.Logger,
	m *metrics.Metrics,
	interval time.Duration,
	ttl time.Duration,
) *PendingSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &PendingSweeper{
		store:    st,
		logger:   log,
		metrics:  m,
		interval: interval,
		ttl:      ttl,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one sweep, then sweeps every interval until Stop or ctx ends.
func (ps *PendingSweeper) Start(ctx context.Context) error {
	if ps.ttl <= 0 {
		return fmt.Errorf("pending ttl must be > 0, got %v", ps.ttl)
	}

	if _, err := ps.Sweep(ctx); err != nil {
		ps.logger.Warn("initial pending sweep failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(ps.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := ps.Sweep(ctx); err != nil {
					ps.logger.Error("pending sweep failed",
						logger.Error(err))
				}
			case <-ps.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the periodic sweep. It may be called more than once.
func (ps *PendingSweeper) Stop() {
	ps.stopOnce.Do(func() { close(ps.stopCh) })
}

// Sweep deletes every inactive listing submitted more than ttl ago and
// returns how many were removed. A failed delete is logged and skipped.
func (ps *PendingSweeper) Sweep(ctx context.Context) (int, error) {
	listings, err := ps.store.List(ctx, store.Filter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list listings: %w", err)
	}

	now := ps.now()
	deleted := 0
	for _, l := range listings {
		if l.Active || l.SubmittedAt.IsZero() {
			continue
		}
		age := now.Sub(l.SubmittedAt)
		if age < ps.ttl {
			continue
		}

		if err := ps.store.Delete(ctx, l.ID); err != nil {
			ps.logger.Warn("failed to delete pending listing",
				logger.ListingID(l.ID),
				logger.Error(err))
			continue
		}

		ps.logger.Info("removed stale pending listing",
			logger.ListingID(l.ID),
			logger.String("name", l.Name),
			logger.Duration("pending_for", age))
		deleted++
	}

	if deleted > 0 {
		ps.metrics.PendingSwept(deleted)
		ps.logger.Info("pending sweep completed",
			logger.Int("deleted", deleted))
	} else {
		ps.logger.Debug("no pending listings to sweep")
	}

	return deleted, nil
}
