// Package profile defines the per-user preference state maintained by the
// personalization feed.
package profile

import (
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/vector"
)

// Profile is a user's preference state (immutable value object).
// The preference vector is always unit-normalized.
type Profile struct {
	userID            string
	vector            []float32
	interactionCount  int64
	lastInteractionAt time.Time
	languageCounts    map[string]int64
	version           int64
	updatedAt         time.Time
}

// Update is one flushed batch worth of preference signal.
type Update struct {
	// Centroid is the weighted average of the batch's content embeddings.
	Centroid []float32
	// Events is the number of events folded into the update.
	Events int
	// LastAt is the newest event timestamp in the batch.
	LastAt time.Time
	// Languages counts batch events per content language.
	Languages map[string]int64
}

// Reconstruct creates a Profile without validation (storage hydration).
func Reconstruct(
	userID string, vec []float32, count int64, lastAt time.Time,
	languages map[string]int64, version int64, updatedAt time.Time,
) Profile {
	return Profile{
		userID: userID, vector: vec, interactionCount: count, lastInteractionAt: lastAt,
		languageCounts: languages, version: version, updatedAt: updatedAt,
	}
}

// Apply folds a batch into the profile and returns the next committed version.
// A profile without a vector (first interaction) takes the normalized centroid.
func Apply(current *Profile, userID string, u Update, decay float64, now time.Time) (Profile, error) {
	if decay < 0 || decay >= 1 {
		return Profile{}, fmt.Errorf("decay must be in [0,1), got %f", decay)
	}
	if u.Events <= 0 {
		return Profile{}, fmt.Errorf("update carries no events")
	}

	var next []float32
	var err error
	if current == nil || len(current.vector) == 0 {
		next, err = vector.Normalize(u.Centroid)
	} else {
		if len(current.vector) != len(u.Centroid) {
			return Profile{}, fmt.Errorf("%w: profile %d, update %d",
				domain.ErrVectorDimMismatch, len(current.vector), len(u.Centroid))
		}
		next, err = vector.Normalize(vector.Blend(current.vector, u.Centroid, decay))
	}
	if err != nil {
		return Profile{}, fmt.Errorf("normalize preference vector: %w", err)
	}

	p := Profile{
		userID:         userID,
		vector:         next,
		languageCounts: make(map[string]int64),
		updatedAt:      now.UTC(),
	}
	if current != nil {
		p.interactionCount = current.interactionCount
		p.lastInteractionAt = current.lastInteractionAt
		p.version = current.version
		for k, v := range current.languageCounts {
			p.languageCounts[k] = v
		}
	}
	p.interactionCount += int64(u.Events)
	if u.LastAt.After(p.lastInteractionAt) {
		p.lastInteractionAt = u.LastAt.UTC()
	}
	for k, v := range u.Languages {
		p.languageCounts[k] += v
	}
	p.version++

	return p, nil
}

// UserID returns the owning user.
func (p *Profile) UserID() string { return p.userID }

// Vector returns the unit-normalized preference vector.
func (p *Profile) Vector() []float32 { return p.vector }

// InteractionCount returns the total number of folded events.
func (p *Profile) InteractionCount() int64 { return p.interactionCount }

// LastInteractionAt returns the newest folded event time.
func (p *Profile) LastInteractionAt() time.Time { return p.lastInteractionAt }

// LanguageCounts returns folded events per content language.
func (p *Profile) LanguageCounts() map[string]int64 { return p.languageCounts }

// Version returns the committed profile version.
func (p *Profile) Version() int64 { return p.version }

// UpdatedAt returns when the version was committed.
func (p *Profile) UpdatedAt() time.Time { return p.updatedAt }

// LanguagePreference returns the most frequent content language, or "" when unknown.
// Ties resolve alphabetically.
func (p *Profile) LanguagePreference() string {
	langs := make([]string, 0, len(p.languageCounts))
	for l := range p.languageCounts {
		langs = append(langs, l)
	}
	sort.Strings(langs)

	best, bestN := "", int64(0)
	for _, l := range langs {
		if n := p.languageCounts[l]; n > bestN {
			best, bestN = l, n
		}
	}
	return best
}

// IsActive reports whether the user has interacted inside the window ending at now.
func (p *Profile) IsActive(now time.Time, window time.Duration) bool {
	return len(p.vector) > 0 && !p.lastInteractionAt.Before(now.Add(-window))
}
