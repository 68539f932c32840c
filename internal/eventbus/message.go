package eventbus

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	dominteraction "github.com/kailas-cloud/discovery/internal/domain/interaction"
)

// payload is the wire form of an interaction event.
type payload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ContentID string    `json:"content_id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Weight    float64   `json:"weight,omitempty"`
}

func encode(e *dominteraction.Event) ([]byte, error) {
	data, err := json.Marshal(payload{
		ID:        e.ID(),
		UserID:    e.UserID(),
		ContentID: e.ContentID(),
		Type:      string(e.Type()),
		Timestamp: e.Timestamp(),
		Weight:    e.Weight(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// decode validates the payload, since producers other than this service
// may publish on the topic.
func decode(data []byte) (dominteraction.Event, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return dominteraction.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	ev, err := dominteraction.New(p.ID, p.UserID, p.ContentID, dominteraction.Type(p.Type), p.Timestamp, p.Weight)
	if err != nil {
		return dominteraction.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
