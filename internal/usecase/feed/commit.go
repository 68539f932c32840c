package feed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain"
	dominteraction "github.com/kailas-cloud/discovery/internal/domain/interaction"
	domprofile "github.com/kailas-cloud/discovery/internal/domain/profile"
	"github.com/kailas-cloud/discovery/internal/domain/vector"
	"github.com/kailas-cloud/discovery/internal/metrics"
	"github.com/kailas-cloud/discovery/internal/resilience"
)

type commitResult struct {
	processed  int
	duplicates int
	unknown    int
}

// commit is one flush attempt: it skips events already in the ledger,
// folds the rest into the profile, and marks them processed only after the
// profile is committed. Each attempt re-reads the profile, so a concurrent
// writer costs a retry, not a lost update.
func (f *Feed) commit(ctx context.Context, userID string, batch []dominteraction.Event) (commitResult, error) {
	var res commitResult

	fresh := make([]dominteraction.Event, 0, len(batch))
	for i := range batch {
		done, err := f.ledger.Processed(ctx, batch[i].ID())
		if err != nil {
			return res, err
		}
		if done {
			res.duplicates++
			continue
		}
		fresh = append(fresh, batch[i])
	}
	if len(fresh) == 0 {
		return res, nil
	}

	ids := make([]string, 0, len(fresh))
	for i := range fresh {
		ids = append(ids, fresh[i].ContentID())
	}
	items, err := f.items.GetMany(ctx, ids)
	if err != nil {
		return res, fmt.Errorf("load items: %w", err)
	}

	var (
		known     []dominteraction.Event
		vectors   [][]float32
		weights   []float64
		languages = make(map[string]int64)
		update    domprofile.Update
	)
	for i := range fresh {
		e := &fresh[i]
		it, ok := items[e.ContentID()]
		if !ok || len(it.Embedding()) == 0 {
			res.unknown++
			continue
		}
		known = append(known, *e)
		vectors = append(vectors, it.Embedding())
		weights = append(weights, e.Weight())
		if it.Language() != "" {
			languages[it.Language()]++
		}
		if e.Timestamp().After(update.LastAt) {
			update.LastAt = e.Timestamp()
		}
	}
	if len(known) == 0 {
		return res, nil
	}

	centroid, err := vector.WeightedAverage(vectors, weights, len(vectors[0]))
	if err != nil {
		return res, resilience.Permanent(fmt.Errorf("%w: %w", domain.ErrVectorDimMismatch, err))
	}
	update.Centroid = centroid
	update.Events = len(known)
	update.Languages = languages

	var current *domprofile.Profile
	p, err := f.profiles.Get(ctx, userID)
	switch {
	case err == nil:
		current = &p
	case errors.Is(err, domain.ErrNotFound):
	default:
		return res, fmt.Errorf("load profile: %w", err)
	}

	next, err := domprofile.Apply(current, userID, update, f.cfg.Decay, f.now())
	if err != nil {
		return res, resilience.Permanent(fmt.Errorf("apply update: %w", err))
	}

	if err := f.log.Record(ctx, known, f.now()); err != nil {
		return res, fmt.Errorf("record interactions: %w", err)
	}
	if err := f.profiles.Put(ctx, &next); err != nil {
		return res, fmt.Errorf("commit profile: %w", err)
	}

	f.markProcessed(ctx, userID, fresh)

	res.processed = len(known)
	return res, nil
}

// markProcessed records committed events in the ledger, retrying each mark on
// its own so the profile is never folded twice. A mark that still fails leaves
// the event open to double counting on redelivery; it is counted as ledger_error.
func (f *Feed) markProcessed(ctx context.Context, userID string, events []dominteraction.Event) {
	for i := range events {
		id := events[i].ID()
		err := f.cfg.Retry.Retry(ctx, func() error {
			_, err := f.ledger.MarkProcessed(ctx, id)
			return err //nolint:wrapcheck // logged below
		}, nil)
		if err != nil {
			metrics.FeedEventsTotal.WithLabelValues("ledger_error").Inc()
			f.logger.Error("Failed to mark committed event processed",
				zap.String("user_id", userID),
				zap.String("event_id", id),
				zap.Error(err),
			)
		}
	}
}
