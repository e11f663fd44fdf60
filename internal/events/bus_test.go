package events

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus(4, logger.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, _ := bus.Subscribe(ctx)
	b, _ := bus.Subscribe(ctx)

	l := &domain.Listing{ID: "id-1", Name: "Acme"}
	bus.Publish(ctx, Inserted(l, time.Now()))

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Type != Insert || ev.ID != "id-1" || ev.NewImage == nil {
				t.Errorf("subscriber %s got %+v", name, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s got nothing", name)
		}
	}
}

func TestBusQueuesBurstBeyondBuffer(t *testing.T) {
	bus := NewBus(4, logger.NewNop(), func() { t.Error("event dropped") })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, _ := bus.Subscribe(ctx)

	const n = 100
	for i := 0; i < n; i++ {
		bus.Publish(ctx, Event{Type: Insert, ID: strconv.Itoa(i)})
	}

	for i := 0; i < n; i++ {
		select {
		case ev := <-ch:
			if ev.ID != strconv.Itoa(i) {
				t.Fatalf("event %d has id %q, want publish order", i, ev.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d events delivered", i, n)
		}
	}
}

func TestBusDropsWhenBacklogFull(t *testing.T) {
	var drops atomic.Int32
	bus := NewBus(1, logger.NewNop(), func() { drops.Add(1) })
	bus.backlog = 1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _ = bus.Subscribe(ctx)

	l := &domain.Listing{ID: "id-1"}
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(ctx, Inserted(l, time.Now()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	// one in the channel, one queued, at most one held by the pump
	if got := drops.Load(); got < 7 || got > 8 {
		t.Errorf("drops = %d, want 7 or 8", got)
	}
}

func TestBusUnsubscribeOnCancel(t *testing.T) {
	bus := NewBus(1, logger.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := bus.Subscribe(ctx)
	if bus.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", bus.Subscribers())
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if bus.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", bus.Subscribers())
	}
}

func TestEventImagesAreCopies(t *testing.T) {
	l := &domain.Listing{ID: "id-1", Name: "Acme"}
	ev := Inserted(l, time.Now())
	l.Name = "Changed"
	if ev.NewImage.Name != "Acme" {
		t.Errorf("event image shares state with the store record")
	}

	old := &domain.Listing{ID: "id-1", Name: "Old"}
	mod := Modified(old, l, time.Now())
	if mod.OldImage.Name != "Old" || mod.NewImage.Name != "Changed" {
		t.Errorf("unexpected modify images: %+v", mod)
	}
	rem := Removed(old, time.Now())
	if rem.Type != Remove || rem.NewImage != nil {
		t.Errorf("unexpected remove event: %+v", rem)
	}
}
