package search

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain"
	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	domprofile "github.com/kailas-cloud/discovery/internal/domain/profile"
	"github.com/kailas-cloud/discovery/internal/domain/search/branch"
	"github.com/kailas-cloud/discovery/internal/resilience"
	"github.com/kailas-cloud/discovery/internal/usecase/fusion"
	"github.com/kailas-cloud/discovery/internal/usecase/query"
	"github.com/kailas-cloud/discovery/internal/usecase/retrieval"
)

// fakeBranch answers after delay unless the request deadline fires first.
type fakeBranch struct {
	name  branch.Branch
	out   retrieval.Output
	err   error
	delay time.Duration
	fn    func(in *retrieval.Input) (retrieval.Output, error)

	mu   sync.Mutex
	seen []*retrieval.Input
}

func (f *fakeBranch) Name() branch.Branch { return f.name }

func (f *fakeBranch) Retrieve(ctx context.Context, in *retrieval.Input) (retrieval.Output, error) {
	f.mu.Lock()
	f.seen = append(f.seen, in)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return retrieval.Output{}, ctx.Err()
		}
	}
	if f.fn != nil {
		return f.fn(in)
	}
	return f.out, f.err
}

type mockProfiles struct {
	profile domprofile.Profile
	err     error
}

func (m *mockProfiles) Get(_ context.Context, _ string) (domprofile.Profile, error) {
	return m.profile, m.err
}

type mockItems struct {
	items map[string]domcontent.Item
	err   error
}

func (m *mockItems) GetMany(_ context.Context, ids []string) (map[string]domcontent.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]domcontent.Item)
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func hit(id string, score, popularity float64) retrieval.Hit {
	return retrieval.Hit{ContentID: id, Score: score, Category: "education", Popularity: popularity}
}

func keyword(hits ...retrieval.Hit) *fakeBranch {
	return &fakeBranch{name: branch.Keyword, out: retrieval.Output{Hits: hits}}
}

func vectorBranch(hits ...retrieval.Hit) *fakeBranch {
	return &fakeBranch{name: branch.Vector, out: retrieval.Output{Hits: hits}}
}

func coldCollab() *fakeBranch {
	return &fakeBranch{name: branch.Collab, out: retrieval.Output{ColdStart: true}}
}

func defaultWeights() map[branch.Branch]float64 {
	return map[branch.Branch]float64{
		branch.Keyword:         0.35,
		branch.Vector:          0.35,
		branch.Collab:          0.20,
		branch.Personalization: 0.10,
	}
}

type setup struct {
	deadline time.Duration
	profiles *mockProfiles
	items    *mockItems
	maxRun   int
}

func newService(s setup, branches ...retrieval.Branch) *Service {
	if s.deadline == 0 {
		s.deadline = time.Second
	}
	if s.profiles == nil {
		s.profiles = &mockProfiles{err: domain.ErrNotFound}
	}
	if s.items == nil {
		s.items = &mockItems{}
	}
	orch := retrieval.New(s.deadline, nil, resilience.Policy{
		FailureThreshold: 100, Window: time.Minute, Cooldown: time.Minute,
	}, zap.NewNop(), branches...)
	engine := fusion.NewEngine(fusion.Config{Weights: defaultWeights(), DiversityMaxRun: s.maxRun, DiversityWindow: 20})
	analyzer := query.NewAnalyzer(query.Config{DefaultLanguage: "en"})
	return New(Config{}, analyzer, orch, engine, s.profiles, s.items)
}
