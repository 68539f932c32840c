// Package feed folds interaction events into user preference vectors in
// the background. Each user moves IDLE → ACCUMULATING → FLUSHING → IDLE.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	dominteraction "github.com/kailas-cloud/discovery/internal/domain/interaction"
	"github.com/kailas-cloud/discovery/internal/metrics"
	"github.com/kailas-cloud/discovery/internal/resilience"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("feed stopped")

// Flush triggers.
const (
	triggerThreshold = "threshold"
	triggerLatency   = "latency"
	triggerStop      = "stop"
)

// Config tunes buffering and flushing.
type Config struct {
	// Threshold buffered events trigger a flush.
	Threshold int
	// MaxLatency is the longest an event waits in the buffer.
	MaxLatency time.Duration
	// Decay weighs the old preference vector against the batch centroid.
	Decay float64
	// Window drops events older than this.
	Window time.Duration
	// Concurrency bounds flushes running at once.
	Concurrency int64
	// TickInterval is how often buffers are checked for MaxLatency.
	TickInterval time.Duration
	Retry        resilience.RetryPolicy
}

// userBuffer is the per-user state. A user without a buffer is IDLE.
type userBuffer struct {
	events   []dominteraction.Event
	ids      map[string]struct{}
	oldest   time.Time
	flushing bool
	inflight map[string]struct{}
}

// Feed is the real-time personalization feed.
type Feed struct {
	cfg      Config
	items    ItemReader
	profiles ProfileStore
	ledger   Ledger
	log      InteractionLog
	logger   *zap.Logger
	now      func() time.Time
	sem      *semaphore.Weighted

	mu       sync.Mutex
	users    map[string]*userBuffer
	stopping bool
	flushes  sync.WaitGroup

	flushCtx    context.Context
	cancelFlush context.CancelFunc
	stop        chan struct{}
	stopOnce    sync.Once
}

// New creates a feed. Call Start to enable latency-triggered flushes.
func New(
	cfg Config, items ItemReader, profiles ProfileStore, ledger Ledger, log InteractionLog, logger *zap.Logger,
) *Feed {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = dominteraction.DefaultWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Feed{
		cfg:         cfg,
		items:       items,
		profiles:    profiles,
		ledger:      ledger,
		log:         log,
		logger:      logger,
		now:         time.Now,
		sem:         semaphore.NewWeighted(cfg.Concurrency),
		users:       make(map[string]*userBuffer),
		flushCtx:    ctx,
		cancelFlush: cancel,
		stop:        make(chan struct{}),
	}
}

// Start launches the latency ticker.
func (f *Feed) Start() {
	go f.loop()
}

func (f *Feed) loop() {
	ticker := time.NewTicker(f.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			f.flushDue()
		}
	}
}

// Submit buffers one event. Stale events and duplicates of buffered or
// in-flight events are counted and ignored. Submit never blocks on I/O.
func (f *Feed) Submit(_ context.Context, ev dominteraction.Event) error {
	now := f.now()
	if !ev.InWindow(now, f.cfg.Window) {
		metrics.FeedEventsTotal.WithLabelValues("stale").Inc()
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopping {
		return ErrStopped
	}

	buf, ok := f.users[ev.UserID()]
	if !ok {
		buf = &userBuffer{ids: make(map[string]struct{})}
		f.users[ev.UserID()] = buf
		metrics.FeedBufferedUsers.Set(float64(len(f.users)))
	}
	if _, dup := buf.ids[ev.ID()]; dup {
		metrics.FeedEventsTotal.WithLabelValues("duplicate").Inc()
		return nil
	}
	if _, dup := buf.inflight[ev.ID()]; dup {
		metrics.FeedEventsTotal.WithLabelValues("duplicate").Inc()
		return nil
	}

	buf.events = append(buf.events, ev)
	buf.ids[ev.ID()] = struct{}{}
	if buf.oldest.IsZero() {
		buf.oldest = now
	}
	metrics.FeedEventsTotal.WithLabelValues("buffered").Inc()

	if !buf.flushing && len(buf.events) >= f.cfg.Threshold {
		f.startFlushLocked(ev.UserID(), buf, triggerThreshold)
	}
	return nil
}

// flushDue starts flushes for buffers whose oldest event reached MaxLatency.
func (f *Feed) flushDue() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopping {
		return
	}
	now := f.now()
	for userID, buf := range f.users {
		if !buf.flushing && len(buf.events) > 0 && now.Sub(buf.oldest) >= f.cfg.MaxLatency {
			f.startFlushLocked(userID, buf, triggerLatency)
		}
	}
}

// startFlushLocked moves the buffer into a FLUSHING batch. f.mu must be held.
func (f *Feed) startFlushLocked(userID string, buf *userBuffer, trigger string) {
	batch := buf.events
	buf.inflight = buf.ids
	buf.events = nil
	buf.ids = make(map[string]struct{})
	buf.oldest = time.Time{}
	buf.flushing = true

	f.flushes.Add(1)
	go f.flush(userID, batch, trigger)
}

func (f *Feed) flush(userID string, batch []dominteraction.Event, trigger string) {
	defer f.flushes.Done()
	start := time.Now()

	err := f.commitWithRetry(userID, batch)
	metrics.FeedFlushDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FeedEventsDroppedTotal.Add(float64(len(batch)))
		metrics.FeedFlushesTotal.WithLabelValues("dropped", trigger).Inc()
		f.logger.Error("Dropping interaction events after retries",
			zap.String("user_id", userID),
			zap.Int("events", len(batch)),
			zap.String("trigger", trigger),
			zap.Error(err),
		)
	} else {
		metrics.FeedFlushesTotal.WithLabelValues("ok", trigger).Inc()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	buf := f.users[userID]
	buf.flushing = false
	buf.inflight = nil
	switch {
	case len(buf.events) == 0:
		delete(f.users, userID)
		metrics.FeedBufferedUsers.Set(float64(len(f.users)))
	case f.stopping:
		f.startFlushLocked(userID, buf, triggerStop)
	case len(buf.events) >= f.cfg.Threshold:
		f.startFlushLocked(userID, buf, triggerThreshold)
	}
}

func (f *Feed) commitWithRetry(userID string, batch []dominteraction.Event) error {
	ctx := f.flushCtx
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire flush slot: %w", err)
	}
	defer f.sem.Release(1)

	var res commitResult
	err := f.cfg.Retry.Retry(ctx, func() error {
		var err error
		res, err = f.commit(ctx, userID, batch)
		return err
	}, func(err error, next time.Duration) {
		metrics.FeedFlushRetriesTotal.Inc()
		f.logger.Warn("Profile flush failed, retrying",
			zap.String("user_id", userID),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	})
	if err != nil {
		return err
	}

	metrics.FeedEventsTotal.WithLabelValues("processed").Add(float64(res.processed))
	metrics.FeedEventsTotal.WithLabelValues("duplicate").Add(float64(res.duplicates))
	metrics.FeedEventsTotal.WithLabelValues("unknown_content").Add(float64(res.unknown))
	return nil
}

// Stop flushes every buffer once and waits for in-flight flushes. If ctx
// expires first, pending flushes are cancelled and their events dropped.
func (f *Feed) Stop(ctx context.Context) error {
	var started bool
	f.stopOnce.Do(func() {
		started = true
		close(f.stop)
	})
	if !started {
		return nil
	}

	f.mu.Lock()
	f.stopping = true
	for userID, buf := range f.users {
		if !buf.flushing && len(buf.events) > 0 {
			f.startFlushLocked(userID, buf, triggerStop)
		}
	}
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.flushes.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.cancelFlush()
		return nil
	case <-ctx.Done():
		f.cancelFlush()
		<-done
		return fmt.Errorf("stop feed: %w", ctx.Err())
	}
}
