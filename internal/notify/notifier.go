// Package notify mails the marketplace inbox when a listing is inserted.
//
// It consumes the record store change feed and never takes part in the
// write itself: a failed email is logged and counted, the listing stays.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/events"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/metrics"
)

// Fixed message content.
const (
	DefaultTo   = "info@ai-marketplace.fi"
	DefaultFrom = "AI Marketplace Finland <info@ai-marketplace.fi>"
	Subject     = "Uusi AI palvelu"
	Body        = "Uusi AI palvelu lisätty"

	DefaultDedupTTL = 10 * time.Minute

	releaseTimeout = 2 * time.Second
)

type Options struct {
	To       string
	From     string
	DedupTTL time.Duration // repeated inserts of one id inside this window are not mailed
	Claims   Claims        // defaults to claims local to this process
	Logger   logger.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// Notifier turns INSERT events into one email each.
type Notifier struct {
	mailer  Mailer
	to      string
	from    string
	ttl     time.Duration
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	claims  Claims
}

func New(mailer Mailer, opts Options) *Notifier {
	n := &Notifier{
		mailer:  mailer,
		to:      opts.To,
		from:    opts.From,
		ttl:     opts.DedupTTL,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
		claims:  opts.Claims,
	}
	if n.to == "" {
		n.to = DefaultTo
	}
	if n.from == "" {
		n.from = DefaultFrom
	}
	if n.ttl <= 0 {
		n.ttl = DefaultDedupTTL
	}
	if n.log == nil {
		n.log = logger.NewNop()
	}
	if n.now == nil {
		n.now = time.Now
	}
	if n.claims == nil {
		n.claims = newLocalClaims(n.now)
	}
	return n
}

// Handle mails the inbox for an INSERT carrying the new record.
// Other events return nil. Send failures are returned wrapped in
// domain.ErrNotificationDelivery and are not retried here.
func (n *Notifier) Handle(ctx context.Context, ev events.Event) error {
	if ev.Type != events.Insert || ev.NewImage == nil {
		return nil
	}
	id := ev.ID
	if id == "" {
		id = ev.NewImage.ID
	}

	if !n.claim(ctx, id) {
		n.metrics.Notification(metrics.ResultSkipped)
		n.log.Debug("duplicate insert ignored", logger.ListingID(id))
		return nil
	}

	err := n.mailer.Send(ctx, Message{
		From:    n.from,
		To:      []string{n.to},
		Subject: Subject,
		Body:    Body,
	})
	if err != nil {
		n.release(ctx, id)
		n.metrics.Notification(metrics.ResultFailed)
		return fmt.Errorf("%w: listing %s: %w", domain.ErrNotificationDelivery, id, err)
	}

	n.metrics.Notification(metrics.ResultSent)
	n.log.Info("new listing notification sent", logger.ListingID(id))
	return nil
}

// HandleBatch handles every event and joins the failures.
func (n *Notifier) HandleBatch(ctx context.Context, evs []events.Event) error {
	var errs []error
	for _, ev := range evs {
		if err := n.Handle(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// claim reports whether this process should send for id. When the claim
// store cannot be reached the email is sent unclaimed.
func (n *Notifier) claim(ctx context.Context, id string) bool {
	won, err := n.claims.Claim(ctx, id, n.ttl)
	if err != nil {
		n.log.Warn("notification claim failed, sending unclaimed",
			logger.ListingID(id),
			logger.Error(err))
		return true
	}
	return won
}

// release forgets a failed delivery so a redelivered event is mailed again.
func (n *Notifier) release(ctx context.Context, id string) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := n.claims.Release(relCtx, id); err != nil {
		n.log.Warn("failed to release notification claim",
			logger.ListingID(id),
			logger.Error(err))
	}
}
