package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/MrSnakeDoc/aimarket/internal/events"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
)

// Dispatcher feeds change events to a Notifier on its own goroutines.
// The create path only publishes and never waits for it.
//
// Inserts are drained from the feed as they arrive and queued, so a slow
// mail relay holds work back instead of letting the feed overflow.
type Dispatcher struct {
	source   events.Subscriber
	notifier *Notifier
	logger   logger.Logger
	stopCh   chan struct{}
	done     chan struct{}
	once     sync.Once
	started  atomic.Bool

	mu      sync.Mutex
	pending []events.Event
	wake    chan struct{}
}

func NewDispatcher(source events.Subscriber, notifier *Notifier, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Dispatcher{
		source:   source,
		notifier: notifier,
		logger:   log,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Start subscribes and returns once the subscription is live.
func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return fmt.Errorf("notification dispatcher already started")
	}
	subCtx, cancel := context.WithCancel(ctx)
	feed, err := d.source.Subscribe(subCtx)
	if err != nil {
		cancel()
		close(d.done)
		return fmt.Errorf("notification dispatcher: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.receive(subCtx, feed)
	}()
	go func() {
		defer wg.Done()
		d.deliver(subCtx)
	}()
	go func() {
		wg.Wait()
		cancel()
		close(d.done)
	}()

	d.logger.Info("notification dispatcher started")
	return nil
}

// receive queues every insert read from feed.
func (d *Dispatcher) receive(ctx context.Context, feed <-chan events.Event) {
	for {
		select {
		case ev, ok := <-feed:
			if !ok {
				return
			}
			if ev.Type != events.Insert {
				continue
			}
			d.mu.Lock()
			d.pending = append(d.pending, ev)
			d.mu.Unlock()
			select {
			case d.wake <- struct{}{}:
			default:
			}
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// deliver mails queued inserts one at a time.
func (d *Dispatcher) deliver(ctx context.Context) {
	for {
		ev, ok := d.next()
		if !ok {
			select {
			case <-d.wake:
				continue
			case <-d.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}

		if err := d.notifier.Handle(ctx, ev); err != nil {
			d.logger.Error("notification failed",
				logger.ListingID(ev.ID),
				logger.Error(err))
		}

		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (d *Dispatcher) next() (events.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return events.Event{}, false
	}
	ev := d.pending[0]
	d.pending[0] = events.Event{}
	d.pending = d.pending[1:]
	return ev, true
}

// Backlog is the number of inserts waiting to be mailed.
func (d *Dispatcher) Backlog() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop ends both loops and waits for the email being sent, if any.
// Inserts still queued are logged and abandoned.
func (d *Dispatcher) Stop() {
	if !d.started.Load() {
		return
	}
	d.once.Do(func() { close(d.stopCh) })
	<-d.done
	if n := d.Backlog(); n > 0 {
		d.logger.Warn("notifications abandoned at shutdown", logger.Int("pending", n))
	}
	d.logger.Info("notification dispatcher stopped")
}
