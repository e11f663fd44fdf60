package events

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/aimarket/internal/logger"
)

const (
	// DefaultBufferSize is the per-subscriber channel capacity.
	DefaultBufferSize = 64
	// DefaultBacklog is how many events a subscriber may fall behind past its
	// channel before the bus starts dropping for it.
	DefaultBacklog = 10_000
)

// Bus is an in-process fan-out of change events. The publisher never waits:
// a slow subscriber accumulates a backlog and only misses events once that
// backlog is full.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscriber
	nextID  int
	size    int
	backlog int
	logger  logger.Logger
	dropped func()
}

// NewBus creates an in-process bus. onDrop may be nil.
func NewBus(bufferSize int, log logger.Logger, onDrop func()) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if log == nil {
		log = logger.NewNop()
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	return &Bus{
		subs:    make(map[int]*subscriber),
		size:    bufferSize,
		backlog: DefaultBacklog,
		logger:  log,
		dropped: onDrop,
	}
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(_ context.Context, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs {
		if sub.offer(ev, b.backlog) {
			continue
		}
		b.dropped()
		b.logger.Warn("event dropped, subscriber backlog full",
			logger.Int("subscriber", id),
			logger.String("event", string(ev.Type)),
			logger.ListingID(ev.ID))
	}
}

// Subscribe registers a subscriber. The channel is closed once ctx is done.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	sub := &subscriber{
		ch:   make(chan Event, b.size),
		wake: make(chan struct{}, 1),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		sub.pump(ctx)
		b.mu.Lock()
		delete(b.subs, id)
		close(sub.ch)
		b.mu.Unlock()
	}()

	return sub.ch, nil
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// subscriber keeps publish order: while anything is queued or being pumped,
// new events go behind it instead of straight into the channel.
type subscriber struct {
	ch      chan Event
	wake    chan struct{}
	mu      sync.Mutex
	queue   []Event
	pumping bool
}

// offer hands ev over without blocking. It returns false when ev is dropped.
func (s *subscriber) offer(ev Event, limit int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 && !s.pumping {
		select {
		case s.ch <- ev:
			return true
		default:
		}
	}
	if len(s.queue) >= limit {
		return false
	}
	s.queue = append(s.queue, ev)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// pump moves queued events into the channel until ctx is done.
func (s *subscriber) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.pumping = false
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue[0] = Event{}
			s.queue = s.queue[1:]
			s.pumping = true
			s.mu.Unlock()

			select {
			case s.ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
