// Package interaction defines the append-only user interaction events that drive
// personalization and collaborative filtering.
package interaction

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/discovery/internal/domain"
)

// DefaultWindow is the rolling retention window for interaction events.
const DefaultWindow = 90 * 24 * time.Hour

// maxFutureSkew tolerates producer clocks slightly ahead of ours.
const maxFutureSkew = 5 * time.Minute

// Type classifies an interaction.
type Type string

// Interaction types, ordered roughly by signal strength.
const (
	TypeView     Type = "view"
	TypeClick    Type = "click"
	TypeComplete Type = "complete"
	TypeBookmark Type = "bookmark"
	TypeLike     Type = "like"
	TypeShare    Type = "share"
)

// IsValid reports whether t is a known interaction type.
func (t Type) IsValid() bool {
	switch t {
	case TypeView, TypeClick, TypeComplete, TypeBookmark, TypeLike, TypeShare:
		return true
	}
	return false
}

// DefaultWeight is the implicit-feedback weight used when the producer sends none.
func (t Type) DefaultWeight() float64 {
	switch t {
	case TypeView:
		return 0.5
	case TypeClick:
		return 1.0
	case TypeComplete:
		return 2.0
	case TypeBookmark, TypeLike:
		return 2.5
	case TypeShare:
		return 3.0
	default:
		return 0
	}
}

// Event is a single user-content interaction. Events are never mutated after creation.
type Event struct {
	id        string
	userID    string
	contentID string
	kind      Type
	timestamp time.Time
	weight    float64
}

// New validates and creates an Event. A zero weight selects the type's default.
func New(id, userID, contentID string, kind Type, ts time.Time, weight float64) (Event, error) {
	if id == "" {
		return Event{}, fmt.Errorf("%w: event id is required", domain.ErrInvalidEvent)
	}
	if userID == "" {
		return Event{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidEvent)
	}
	if contentID == "" {
		return Event{}, fmt.Errorf("%w: content id is required", domain.ErrInvalidEvent)
	}
	if !kind.IsValid() {
		return Event{}, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidEvent, kind)
	}
	if ts.IsZero() {
		return Event{}, fmt.Errorf("%w: timestamp is required", domain.ErrInvalidEvent)
	}
	if ts.After(time.Now().Add(maxFutureSkew)) {
		return Event{}, fmt.Errorf("%w: timestamp is in the future", domain.ErrInvalidEvent)
	}
	if weight < 0 {
		return Event{}, fmt.Errorf("%w: weight must be non-negative", domain.ErrInvalidEvent)
	}
	if weight == 0 {
		weight = kind.DefaultWeight()
	}
	return Event{
		id: id, userID: userID, contentID: contentID,
		kind: kind, timestamp: ts.UTC(), weight: weight,
	}, nil
}

// Reconstruct creates an Event without validation (deserialization).
func Reconstruct(id, userID, contentID string, kind Type, ts time.Time, weight float64) Event {
	return Event{id: id, userID: userID, contentID: contentID, kind: kind, timestamp: ts, weight: weight}
}

// ID returns the producer-assigned unique event id.
func (e *Event) ID() string { return e.id }

// UserID returns the acting user.
func (e *Event) UserID() string { return e.userID }

// ContentID returns the content the user interacted with.
func (e *Event) ContentID() string { return e.contentID }

// Type returns the interaction type.
func (e *Event) Type() Type { return e.kind }

// Timestamp returns when the interaction happened.
func (e *Event) Timestamp() time.Time { return e.timestamp }

// Weight returns the effective signal weight.
func (e *Event) Weight() float64 { return e.weight }

// InWindow reports whether the event falls inside the rolling window ending at now.
func (e *Event) InWindow(now time.Time, window time.Duration) bool {
	return !e.timestamp.Before(now.Add(-window))
}
