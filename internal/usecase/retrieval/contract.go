package retrieval

import (
	"context"
	"time"

	domprofile "github.com/kailas-cloud/discovery/internal/domain/profile"
	"github.com/kailas-cloud/discovery/internal/domain/search/branch"
	domquery "github.com/kailas-cloud/discovery/internal/domain/search/query"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
)

// Input is shared read-only by all branches of one request.
type Input struct {
	Request *request.Request
	Query   domquery.Query
	// Profile is nil for anonymous and cold-start users.
	Profile *domprofile.Profile
	// ProfileErr is set when the profile could not be loaded.
	ProfileErr error
	Now        time.Time
}

// Hit is one candidate from one branch, with the branch's raw score.
type Hit struct {
	ContentID  string
	Score      float64
	Category   string
	Popularity float64
}

// Output is a branch's answer.
type Output struct {
	Hits       []Hit
	Confidence float64
	ColdStart  bool
}

// Branch is one retrieval strategy.
type Branch interface {
	Name() branch.Branch
	Retrieve(ctx context.Context, in *Input) (Output, error)
}

// availability is implemented by branches that can be switched off by
// backend capabilities; unavailable branches are skipped without touching
// their breaker.
type availability interface {
	Available(ctx context.Context) bool
}
