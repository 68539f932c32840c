package request

import (
	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed raw query length in bytes.
	MaxQueryLength  = 4096
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage bounds deep paging over the fused candidate pool.
	MaxPage = 50
)

// Session is the caller context verified by the identity collaborator.
// An empty UserID means an anonymous request.
type Session struct {
	UserID    string
	Locale    string
	SessionID string
}

// Request is a validated search request.
type Request struct {
	query    string
	filters  filter.Filters
	session  Session
	page     int
	pageSize int
}

// New validates and normalizes search parameters.
// An empty query is allowed (explore). Defaults: page=1, page_size=20.
func New(query string, filters filter.Filters, session Session, page, pageSize int) (Request, error) {
	if len(query) > MaxQueryLength {
		return Request{}, domain.InvalidQueryf("query too long (max %d bytes)", MaxQueryLength)
	}
	if page < 0 || pageSize < 0 {
		return Request{}, domain.InvalidQueryf("page parameters must be non-negative")
	}
	if page == 0 {
		page = 1
	}
	if page > MaxPage {
		return Request{}, domain.InvalidQueryf("page too deep (max %d)", MaxPage)
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	return Request{
		query:    query,
		filters:  filters,
		session:  session,
		page:     page,
		pageSize: pageSize,
	}, nil
}

// Query returns the raw query text.
func (r *Request) Query() string { return r.query }

// Filters returns the retrieval filters.
func (r *Request) Filters() filter.Filters { return r.filters }

// Session returns the caller context.
func (r *Request) Session() Session { return r.session }

// Page returns the 1-based page number.
func (r *Request) Page() int { return r.page }

// PageSize returns the number of results per page.
func (r *Request) PageSize() int { return r.pageSize }

// Offset returns the index of the first result on the page.
func (r *Request) Offset() int { return (r.page - 1) * r.pageSize }

// Depth returns how many fused results are needed to serve the page.
func (r *Request) Depth() int { return r.page * r.pageSize }

// Anonymous reports whether the request has no user identity.
func (r *Request) Anonymous() bool { return r.session.UserID == "" }
