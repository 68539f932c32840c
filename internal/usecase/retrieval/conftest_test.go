package retrieval

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain/search/branch"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	domquery "github.com/kailas-cloud/discovery/internal/domain/search/query"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/resilience"
)

// fakeBranch answers after delay, ignoring cancellation when stubborn is set.
type fakeBranch struct {
	name     branch.Branch
	out      Output
	err      error
	delay    time.Duration
	stubborn bool
	calls    int
}

func (f *fakeBranch) Name() branch.Branch { return f.name }

func (f *fakeBranch) Retrieve(ctx context.Context, _ *Input) (Output, error) {
	f.calls++
	if f.delay > 0 {
		if f.stubborn {
			time.Sleep(f.delay)
		} else {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return Output{}, ctx.Err()
			}
		}
	}
	return f.out, f.err
}

func hits(scores map[string]float64) []Hit {
	out := make([]Hit, 0, len(scores))
	for id, s := range scores {
		out = append(out, Hit{ContentID: id, Score: s, Category: "education"})
	}
	return out
}

func testPolicy() resilience.Policy {
	return resilience.Policy{FailureThreshold: 3, Window: time.Minute, Cooldown: time.Minute}
}

func newTestOrchestrator(deadline time.Duration, branches ...Branch) *Orchestrator {
	return New(deadline, nil, testPolicy(), zap.NewNop(), branches...)
}

func testInput(t *testing.T, query string) *Input {
	t.Helper()
	f, err := filter.New("education", "", nil)
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	req, err := request.New(query, f, request.Session{UserID: "u1", Locale: "ar"}, 1, 20)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &Input{
		Request: &req,
		Query:   domquery.Query{Raw: query, Terms: []string{query}},
		Now:     time.Now(),
	}
}
