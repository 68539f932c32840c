package profile

import (
	"time"

	domprofile "github.com/kailas-cloud/discovery/internal/domain/profile"
)

// record is the JSON document stored under the profile hash's data field.
type record struct {
	UserID            string           `json:"user_id"`
	Vector            []float32        `json:"vector"`
	InteractionCount  int64            `json:"interaction_count"`
	LastInteractionAt int64            `json:"last_interaction_at"`
	Languages         map[string]int64 `json:"languages,omitempty"`
	Version           int64            `json:"version"`
	UpdatedAt         int64            `json:"updated_at"`
}

func toRecord(p *domprofile.Profile) record {
	return record{
		UserID:            p.UserID(),
		Vector:            p.Vector(),
		InteractionCount:  p.InteractionCount(),
		LastInteractionAt: p.LastInteractionAt().UnixMilli(),
		Languages:         p.LanguageCounts(),
		Version:           p.Version(),
		UpdatedAt:         p.UpdatedAt().UnixMilli(),
	}
}

func (r record) toDomain() domprofile.Profile {
	return domprofile.Reconstruct(
		r.UserID,
		r.Vector,
		r.InteractionCount,
		time.UnixMilli(r.LastInteractionAt).UTC(),
		r.Languages,
		r.Version,
		time.UnixMilli(r.UpdatedAt).UTC(),
	)
}
