package feed

import (
	"context"
	"time"

	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	dominteraction "github.com/kailas-cloud/discovery/internal/domain/interaction"
	domprofile "github.com/kailas-cloud/discovery/internal/domain/profile"
)

// ItemReader loads the embeddings of interacted items.
type ItemReader interface {
	GetMany(ctx context.Context, ids []string) (map[string]domcontent.Item, error)
}

// ProfileStore reads and commits user profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (domprofile.Profile, error)
	Put(ctx context.Context, p *domprofile.Profile) error
}

// Ledger records processed event ids.
type Ledger interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

// InteractionLog appends committed events to the co-interaction log.
type InteractionLog interface {
	Record(ctx context.Context, events []dominteraction.Event, now time.Time) error
}
