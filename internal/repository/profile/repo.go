// Package profile persists user preference profiles.
package profile

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/kailas-cloud/discovery/internal/cache"
	"github.com/kailas-cloud/discovery/internal/domain"
	domprofile "github.com/kailas-cloud/discovery/internal/domain/profile"
)

const keyPrefix = domain.KeyPrefix + "profile:"

const (
	fieldVersion = "version"
	fieldData    = "data"
)

// store is the consumer interface for profile persistence (ISP).
type store interface {
	HSetIfNewer(ctx context.Context, key, versionField string, version int64, fields map[string]string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo stores each profile as a hash: a numeric version guarding
// compare-and-set writes plus the JSON-encoded profile.
type Repo struct {
	store store
	cache *cache.ReadThrough[domprofile.Profile]
}

// New creates a profile repository. c may be nil to disable caching.
func New(s store, c *cache.ReadThrough[domprofile.Profile]) *Repo {
	return &Repo{store: s, cache: c}
}

// Get returns the user's profile or domain.ErrNotFound for a cold-start user.
func (r *Repo) Get(ctx context.Context, userID string) (domprofile.Profile, error) {
	if r.cache == nil {
		return r.load(ctx, userID)
	}
	return r.cache.Get(ctx, userID, func(ctx context.Context) (domprofile.Profile, error) {
		return r.load(ctx, userID)
	})
}

func (r *Repo) load(ctx context.Context, userID string) (domprofile.Profile, error) {
	m, err := r.store.HGetAll(ctx, keyPrefix+userID)
	if err != nil {
		return domprofile.Profile{}, fmt.Errorf("get profile %s: %w: %w", userID, domain.ErrProfileStoreUnavailable, err)
	}
	data, ok := m[fieldData]
	if !ok {
		return domprofile.Profile{}, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}

	var rec record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return domprofile.Profile{}, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	return rec.toDomain(), nil
}

// Put commits p if its version is newer than the stored one. A concurrent
// writer that got there first yields domain.ErrStaleVersion.
func (r *Repo) Put(ctx context.Context, p *domprofile.Profile) error {
	data, err := json.Marshal(toRecord(p))
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.UserID(), err)
	}

	written, err := r.store.HSetIfNewer(ctx, keyPrefix+p.UserID(), fieldVersion, p.Version(), map[string]string{
		fieldVersion: strconv.FormatInt(p.Version(), 10),
		fieldData:    string(data),
	})
	if err != nil {
		return fmt.Errorf("put profile %s: %w: %w", p.UserID(), domain.ErrProfileStoreUnavailable, err)
	}
	if r.cache != nil {
		if !written {
			r.cache.Invalidate(p.UserID())
		} else {
			r.cache.Put(p.UserID(), *p)
		}
	}
	if !written {
		return fmt.Errorf("profile %s version %d: %w", p.UserID(), p.Version(), domain.ErrStaleVersion)
	}
	return nil
}
