// Package interaction keeps the rolling interaction log used by
// collaborative filtering and the idempotency ledger of the feed.
package interaction

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/discovery/internal/db"
	"github.com/kailas-cloud/discovery/internal/domain"
	dominteraction "github.com/kailas-cloud/discovery/internal/domain/interaction"
)

// Key layout:
//
//	ui:{user}   zset member=content id, score=last interaction (unix ms)
//	iu:{item}   zset member=user id,    score=last interaction (unix ms)
//	ledger:{id} processed event marker, expires with the window
var (
	userLogPrefix = domain.KeyPrefix + "ui:"
	itemLogPrefix = domain.KeyPrefix + "iu:"
	ledgerPrefix  = domain.KeyPrefix + "ledger:"
)

// store is the consumer interface for the interaction log (ISP).
type store interface {
	ZAddGreater(ctx context.Context, key string, members []db.ScoredMember) error
	ZRevRangeByScore(ctx context.Context, key string, minScore, maxScore float64, limit int) ([]db.ScoredMember, error)
	ZRemRangeByScore(ctx context.Context, key string, minScore, maxScore float64) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Repo implements the interaction log and ledger.
type Repo struct {
	store  store
	window time.Duration
}

// New creates an interaction repository retaining events for window.
func New(s store, window time.Duration) *Repo {
	if window <= 0 {
		window = dominteraction.DefaultWindow
	}
	return &Repo{store: s, window: window}
}

// Window returns the retention window.
func (r *Repo) Window() time.Duration { return r.window }

// Record appends events to both directions of the log and trims entries
// that fell out of the window.
func (r *Repo) Record(ctx context.Context, events []dominteraction.Event, now time.Time) error {
	byUser := make(map[string][]db.ScoredMember)
	byItem := make(map[string][]db.ScoredMember)
	for i := range events {
		e := &events[i]
		ts := float64(e.Timestamp().UnixMilli())
		byUser[e.UserID()] = append(byUser[e.UserID()], db.ScoredMember{Member: e.ContentID(), Score: ts})
		byItem[e.ContentID()] = append(byItem[e.ContentID()], db.ScoredMember{Member: e.UserID(), Score: ts})
	}

	cutoff := float64(now.Add(-r.window).UnixMilli())
	for user, members := range byUser {
		if err := r.append(ctx, userLogPrefix+user, members, cutoff); err != nil {
			return err
		}
	}
	for item, members := range byItem {
		if err := r.append(ctx, itemLogPrefix+item, members, cutoff); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) append(ctx context.Context, key string, members []db.ScoredMember, cutoff float64) error {
	if err := r.store.ZAddGreater(ctx, key, members); err != nil {
		return fmt.Errorf("append %s: %w", key, err)
	}
	if err := r.store.ZRemRangeByScore(ctx, key, 0, cutoff); err != nil {
		return fmt.Errorf("trim %s: %w", key, err)
	}
	if err := r.store.Expire(ctx, key, r.window); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

// RecentItems returns up to limit content ids the user touched within the
// window, most recent first.
func (r *Repo) RecentItems(ctx context.Context, userID string, now time.Time, limit int) ([]string, error) {
	return r.recent(ctx, userLogPrefix+userID, now, limit)
}

// RecentUsers returns up to limit users who touched the item within the
// window, most recent first.
func (r *Repo) RecentUsers(ctx context.Context, contentID string, now time.Time, limit int) ([]string, error) {
	return r.recent(ctx, itemLogPrefix+contentID, now, limit)
}

func (r *Repo) recent(ctx context.Context, key string, now time.Time, limit int) ([]string, error) {
	members, err := r.store.ZRevRangeByScore(ctx, key,
		float64(now.Add(-r.window).UnixMilli()), float64(now.Add(time.Hour).UnixMilli()), limit)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Member
	}
	return out, nil
}

// Processed reports whether the event id is already in the ledger.
func (r *Repo) Processed(ctx context.Context, eventID string) (bool, error) {
	ok, err := r.store.Exists(ctx, ledgerPrefix+eventID)
	if err != nil {
		return false, fmt.Errorf("check ledger %s: %w", eventID, err)
	}
	return ok, nil
}

// MarkProcessed records the event id. It reports false when another writer
// recorded it first.
func (r *Repo) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	ok, err := r.store.SetNX(ctx, ledgerPrefix+eventID, []byte("1"), r.window)
	if err != nil {
		return false, fmt.Errorf("mark ledger %s: %w", eventID, err)
	}
	return ok, nil
}
