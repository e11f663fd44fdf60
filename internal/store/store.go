// Package store defines the Record Store capability shared by every backend.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
)

// Filter narrows a List call.
type Filter struct {
	// ActiveOnly keeps approved listings only.
	ActiveOnly bool
}

// Store persists listings. Implementations must:
//   - assign ids and force active=false on Create
//   - return domain.ErrNotFound for unknown or malformed ids
//   - wrap backend failures in domain.ErrStorageUnavailable
//   - publish one change event per successful write
type Store interface {
	List(ctx context.Context, f Filter) ([]*domain.Listing, error)
	Get(ctx context.Context, id string) (*domain.Listing, error)
	Create(ctx context.Context, l *domain.Listing) (*domain.Listing, error)
	Update(ctx context.Context, id string, p domain.Patch) (*domain.Listing, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// NewID returns a fresh opaque listing id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape produced by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// PrepareCreate copies l, assigns a new id, forces the pending state and
// stamps the submission time when the caller did not.
func PrepareCreate(l *domain.Listing, now time.Time) *domain.Listing {
	c := l.Clone()
	if c == nil {
		c = &domain.Listing{}
	}
	c.ID = NewID()
	c.Active = false
	c.ApprovedAt = nil
	c.ApprovedBy = ""
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = now.UTC()
	}
	return c
}

// Match reports whether l passes f.
func (f Filter) Match(l *domain.Listing) bool {
	if l == nil {
		return false
	}
	return !f.ActiveOnly || l.Active
}

// SortListings orders by submission time, then id, so List is deterministic
// across backends.
func SortListings(ls []*domain.Listing) {
	sort.SliceStable(ls, func(i, j int) bool {
		if !ls[i].SubmittedAt.Equal(ls[j].SubmittedAt) {
			return ls[i].SubmittedAt.Before(ls[j].SubmittedAt)
		}
		return ls[i].ID < ls[j].ID
	})
}
