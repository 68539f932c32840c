// Package interaction accepts user interaction events and hands them to the
// event bus for the personalization feed.
package interaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	dominteraction "github.com/kailas-cloud/discovery/internal/domain/interaction"
)

// Publisher delivers events to the feed at least once.
type Publisher interface {
	Publish(ctx context.Context, ev dominteraction.Event) error
}

// Params is an unvalidated interaction event. Empty ID and zero Timestamp
// are filled in.
type Params struct {
	ID        string
	UserID    string
	ContentID string
	Type      string
	Timestamp time.Time
	Weight    float64
}

// Service records interactions.
type Service struct {
	pub Publisher
	now func() time.Time
}

// New creates an interaction service.
func New(pub Publisher) *Service {
	return &Service{pub: pub, now: time.Now}
}

// Record validates and publishes one event.
func (s *Service) Record(ctx context.Context, p Params) (dominteraction.Event, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = s.now()
	}
	ev, err := dominteraction.New(p.ID, p.UserID, p.ContentID, dominteraction.Type(p.Type), p.Timestamp, p.Weight)
	if err != nil {
		return dominteraction.Event{}, err
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		return dominteraction.Event{}, fmt.Errorf("publish interaction: %w", err)
	}
	return ev, nil
}
