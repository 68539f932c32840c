// Package branch names the retrieval branches and their per-request outcome.
package branch

// Branch identifies a scoring component of the fused ranking.
type Branch string

// Retrieval branches and the personalization component.
const (
	Keyword         Branch = "keyword"
	Vector          Branch = "vector"
	Collab          Branch = "collab"
	Personalization Branch = "personalization"
)

// Retrieval lists the branches the orchestrator fans out to, in fixed order.
var Retrieval = []Branch{Keyword, Vector, Collab}

// Components lists every fused score component, in fixed order.
var Components = []Branch{Keyword, Vector, Collab, Personalization}

// IsValid checks if the branch is a known component.
func (b Branch) IsValid() bool {
	return b == Keyword || b == Vector || b == Collab || b == Personalization
}

func (b Branch) String() string { return string(b) }

// Status is the outcome of a branch for one request.
type Status string

// Branch statuses.
const (
	StatusOK Status = "ok"
	// StatusColdStart means the branch answered but had no signal for the user.
	StatusColdStart   Status = "cold_start"
	StatusTimeout     Status = "timeout"
	StatusUnavailable Status = "unavailable"
	StatusError       Status = "error"
)

// Answered reports whether the branch completed without failure.
func (s Status) Answered() bool {
	return s == StatusOK || s == StatusColdStart
}
