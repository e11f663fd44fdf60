package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/aimarket/internal/logger"
)

const (
	// DefaultChannel is the pub/sub channel carrying listing change events.
	DefaultChannel = "aimarket:events:listings"

	publishTimeout = 2 * time.Second
)

// RedisBus shares the change feed between replicas through Redis pub/sub.
// Delivery is at-most-once per subscriber connection; consumers must still
// tolerate duplicates when several replicas publish the same change.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  logger.Logger
}

// NewRedisBus creates a bus on channel (DefaultChannel when empty).
func NewRedisBus(client *redis.Client, channel string, log logger.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{client: client, channel: channel, logger: log}
}

// Publish sends ev in the background so the write path is never held up by Redis.
func (b *RedisBus) Publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("failed to marshal event",
			logger.ListingID(ev.ID),
			logger.Error(err))
		return
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := b.client.Publish(pubCtx, b.channel, data).Err(); err != nil {
			b.logger.Warn("failed to publish event",
				logger.String("channel", b.channel),
				logger.ListingID(ev.ID),
				logger.Error(err))
		}
	}()
}

// Subscribe listens on the channel until ctx is done.
// It returns once Redis confirmed the subscription.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	in := sub.Channel()
	out := make(chan Event, DefaultBufferSize)

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				ev, ok := b.decode(msg.Payload)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (b *RedisBus) decode(payload string) (Event, bool) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.logger.Warn("ignoring malformed event payload",
			logger.String("channel", b.channel),
			logger.Error(err))
		return Event{}, false
	}
	return ev, true
}
