// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/events"
	"github.com/MrSnakeDoc/aimarket/internal/store"
)

// Factory builds an empty store wired to pub.
type Factory func(t *testing.T, pub events.Publisher) store.Store

// Recorder is a Publisher that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *Recorder) Publish(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []events.Type {
	evs := r.Events()
	out := make([]events.Type, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

func sample(name string) *domain.Listing {
	return &domain.Listing{
		Name:         name,
		URL:          "https://" + name + ".example",
		Description:  "description of " + name,
		UseCase:      "Chatbot, CRM",
		Region:       domain.RegionFinland,
		AddedBy:      "tester",
		AddedByEmail: "tester@example.com",
	}
}

// Run executes the shared conformance suite against newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("create forces pending state", func(t *testing.T) {
		s := newStore(t, events.Discard{})
		ctx := context.Background()

		in := sample("acme")
		in.ID = "client-chosen"
		in.Active = true
		by := "sneaky"
		in.ApprovedBy = by

		got, err := s.Create(ctx, in)
		require.NoError(t, err)
		assert.NotEqual(t, "client-chosen", got.ID)
		assert.True(t, store.ValidID(got.ID))
		assert.False(t, got.Active)
		assert.Empty(t, got.ApprovedBy)
		assert.False(t, got.SubmittedAt.IsZero())

		fetched, err := s.Get(ctx, got.ID)
		require.NoError(t, err)
		assert.Equal(t, got.Name, fetched.Name)
		assert.Equal(t, got.URL, fetched.URL)
		assert.False(t, fetched.Active)
	})

	t.Run("get unknown and malformed ids", func(t *testing.T) {
		s := newStore(t, events.Discard{})
		ctx := context.Background()

		_, err := s.Get(ctx, store.NewID())
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = s.Get(ctx, "not-an-id")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = s.Get(ctx, "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("inactive listings are filtered", func(t *testing.T) {
		s := newStore(t, events.Discard{})
		ctx := context.Background()

		pending, err := s.Create(ctx, sample("pending"))
		require.NoError(t, err)
		approved, err := s.Create(ctx, sample("approved"))
		require.NoError(t, err)

		active := true
		_, err = s.Update(ctx, approved.ID, domain.Patch{Active: &active})
		require.NoError(t, err)

		public, err := s.List(ctx, store.Filter{ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, public, 1)
		assert.Equal(t, approved.ID, public[0].ID)
		for _, l := range public {
			assert.NotEqual(t, pending.ID, l.ID)
		}

		all, err := s.List(ctx, store.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("list is ordered by submission time", func(t *testing.T) {
		s := newStore(t, events.Discard{})
		ctx := context.Background()

		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, name := range []string{"third", "first", "second"} {
			l := sample(name)
			offset := map[string]int{"first": 0, "second": 1, "third": 2}[name]
			l.SubmittedAt = base.Add(time.Duration(offset) * time.Minute)
			_, err := s.Create(ctx, l)
			require.NoError(t, err, "create #%d", i)
		}

		all, err := s.List(ctx, store.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "first", all[0].Name)
		assert.Equal(t, "second", all[1].Name)
		assert.Equal(t, "third", all[2].Name)
	})

	t.Run("update merges shallowly", func(t *testing.T) {
		s := newStore(t, events.Discard{})
		ctx := context.Background()

		created, err := s.Create(ctx, sample("acme"))
		require.NoError(t, err)

		desc := "new description"
		approvedAt := time.Date(2025, 2, 2, 10, 0, 0, 0, time.UTC)
		by := "moderator"
		updated, err := s.Update(ctx, created.ID, domain.Patch{
			Description: &desc,
			ApprovedAt:  &approvedAt,
			ApprovedBy:  &by,
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "new description", updated.Description)
		assert.Equal(t, created.Name, updated.Name)
		assert.Equal(t, created.URL, updated.URL)
		require.NotNil(t, updated.ApprovedAt)
		assert.True(t, approvedAt.Equal(*updated.ApprovedAt))
		assert.Equal(t, "moderator", updated.ApprovedBy)

		fetched, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "new description", fetched.Description)

		_, err = s.Update(ctx, store.NewID(), domain.Patch{Description: &desc})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = s.Update(ctx, "bogus", domain.Patch{Description: &desc})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("create then delete", func(t *testing.T) {
		s := newStore(t, events.Discard{})
		ctx := context.Background()

		created, err := s.Create(ctx, sample("acme"))
		require.NoError(t, err)
		active := true
		_, err = s.Update(ctx, created.ID, domain.Patch{Active: &active})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, created.ID))

		_, err = s.Get(ctx, created.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		public, err := s.List(ctx, store.Filter{ActiveOnly: true})
		require.NoError(t, err)
		assert.Empty(t, public)

		assert.ErrorIs(t, s.Delete(ctx, created.ID), domain.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "bogus"), domain.ErrNotFound)
	})

	t.Run("writes publish change events", func(t *testing.T) {
		rec := &Recorder{}
		s := newStore(t, rec)
		ctx := context.Background()

		created, err := s.Create(ctx, sample("acme"))
		require.NoError(t, err)
		name := "renamed"
		_, err = s.Update(ctx, created.ID, domain.Patch{Name: &name})
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, created.ID))

		// failed writes publish nothing
		_, _ = s.Update(ctx, created.ID, domain.Patch{Name: &name})
		_ = s.Delete(ctx, created.ID)

		assert.Equal(t, []events.Type{events.Insert, events.Modify, events.Remove}, rec.Types())

		evs := rec.Events()
		require.NotNil(t, evs[0].NewImage)
		assert.Equal(t, created.ID, evs[0].NewImage.ID)
		assert.False(t, evs[0].NewImage.Active)
		require.NotNil(t, evs[1].OldImage)
		assert.Equal(t, "acme", evs[1].OldImage.Name)
		assert.Equal(t, "renamed", evs[1].NewImage.Name)
		require.NotNil(t, evs[2].OldImage)
		assert.Nil(t, evs[2].NewImage)
	})

	t.Run("concurrent updates keep the record intact", func(t *testing.T) {
		s := newStore(t, events.Discard{})
		ctx := context.Background()

		created, err := s.Create(ctx, sample("acme"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				desc := fmt.Sprintf("writer %d", i)
				if _, err := s.Update(ctx, created.ID, domain.Patch{Description: &desc}); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("concurrent update failed: %v", err)
		}

		final, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, final.ID)
		assert.Equal(t, "acme", final.Name)
		assert.Contains(t, final.Description, "writer ")
	})
}
