package events

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
)

// Type is the kind of change a record store emitted.
type Type string

const (
	Insert Type = "INSERT"
	Modify Type = "MODIFY"
	Remove Type = "REMOVE"
)

// Event is one change on the record store.
// NewImage is set for INSERT and MODIFY, OldImage for MODIFY and REMOVE.
type Event struct {
	Type     Type            `json:"eventName"`
	ID       string          `json:"id"`
	NewImage *domain.Listing `json:"newImage,omitempty"`
	OldImage *domain.Listing `json:"oldImage,omitempty"`
	At       time.Time       `json:"at"`
}

// Publisher receives change events from a record store.
// Publish must not block the write path and its failures never fail a write.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Subscriber hands out a stream of change events until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// Inserted builds an INSERT event for l.
func Inserted(l *domain.Listing, at time.Time) Event {
	return Event{Type: Insert, ID: l.ID, NewImage: l.Clone(), At: at}
}

// Modified builds a MODIFY event.
func Modified(oldImage, newImage *domain.Listing, at time.Time) Event {
	return Event{Type: Modify, ID: newImage.ID, NewImage: newImage.Clone(), OldImage: oldImage.Clone(), At: at}
}

// Removed builds a REMOVE event.
func Removed(oldImage *domain.Listing, at time.Time) Event {
	return Event{Type: Remove, ID: oldImage.ID, OldImage: oldImage.Clone(), At: at}
}

// Discard drops every event. Used when nothing listens to the feed.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
