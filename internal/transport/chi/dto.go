package chi

import (
	"net/http"
	"time"

	"golang.org/x/text/language"

	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	"github.com/kailas-cloud/discovery/internal/domain/search/branch"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/domain/search/result"
	interactionuc "github.com/kailas-cloud/discovery/internal/usecase/interaction"
)

// Identity headers set by the session collaborator when the body carries no session.
const (
	headerUserID    = "X-User-ID"
	headerSessionID = "X-Session-ID"
)

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query    string          `json:"query" validate:"max=4096"`
	Filters  *SearchFilters  `json:"filters,omitempty"`
	Session  *SessionContext `json:"session,omitempty"`
	Page     int             `json:"page" validate:"gte=0"`
	PageSize int             `json:"page_size" validate:"gte=0"`
}

// SearchFilters narrows retrieval.
type SearchFilters struct {
	Category      string   `json:"category,omitempty" validate:"omitempty,max=64"`
	Language      string   `json:"language,omitempty" validate:"omitempty,min=2,max=3"`
	MinPopularity *float64 `json:"min_popularity,omitempty" validate:"omitempty,gte=0"`
}

// SessionContext is the verified caller identity.
type SessionContext struct {
	UserID    string `json:"user_id,omitempty" validate:"omitempty,max=256"`
	Locale    string `json:"locale,omitempty" validate:"omitempty,max=35"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=256"`
}

// SearchResponse is one page of fused results.
type SearchResponse struct {
	RequestID                  string                   `json:"request_id"`
	Results                    []SearchHit              `json:"results"`
	Total                      int                      `json:"total"`
	Page                       int                      `json:"page"`
	PageSize                   int                      `json:"page_size"`
	Branches                   map[string]BranchOutcome `json:"branches"`
	Weights                    map[string]float64       `json:"weights"`
	WeightsRedistributed       bool                     `json:"weights_redistributed"`
	KeywordUnavailable         bool                     `json:"keyword_unavailable"`
	VectorUnavailable          bool                     `json:"vector_unavailable"`
	CollabUnavailable          bool                     `json:"collab_unavailable"`
	PersonalizationUnavailable bool                     `json:"personalization_unavailable"`
}

// SearchHit is one ranked item with its score explanation.
type SearchHit struct {
	ContentID     string                         `json:"content_id"`
	Score         float64                        `json:"score"`
	OriginalScore *float64                       `json:"original_score,omitempty"`
	Category      string                         `json:"category"`
	Breakdown     map[string]result.Contribution `json:"breakdown"`
	Provenance    []string                       `json:"provenance"`
}

// BranchOutcome reports how one retrieval branch fared.
type BranchOutcome struct {
	Status     string  `json:"status"`
	LatencyMS  float64 `json:"latency_ms"`
	Candidates int     `json:"candidates"`
	Confidence float64 `json:"confidence,omitempty"`
}

// InteractionRequest is the body of POST /v1/interactions.
type InteractionRequest struct {
	ID        string     `json:"id,omitempty" validate:"omitempty,max=256"`
	UserID    string     `json:"user_id" validate:"required,max=256"`
	ContentID string     `json:"content_id" validate:"required,max=256"`
	Type      string     `json:"type" validate:"required,oneof=view click complete bookmark like share"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Weight    float64    `json:"weight,omitempty" validate:"gte=0"`
}

// InteractionAccepted acknowledges an interaction.
type InteractionAccepted struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ContentRequest is the body of PUT /v1/content/{id}.
type ContentRequest struct {
	Title      string    `json:"title" validate:"required_without=Body,max=1024"`
	Body       string    `json:"body" validate:"required_without=Title"`
	Language   string    `json:"language" validate:"required,min=2,max=3"`
	Category   string    `json:"category" validate:"required,max=64"`
	Popularity float64   `json:"popularity" validate:"gte=0"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Version    int64     `json:"version" validate:"required,gt=0"`
}

// ContentResponse describes a stored item. The embedding is omitted.
type ContentResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body,omitempty"`
	Language   string    `json:"language"`
	Category   string    `json:"category"`
	Popularity float64   `json:"popularity"`
	Version    int64     `json:"version"`
	Dimensions int       `json:"dimensions"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// searchRequestFromDTO builds the domain request. A body session wins over
// identity headers.
func searchRequestFromDTO(req *SearchRequest, r *http.Request) (request.Request, error) {
	var f filter.Filters
	if req.Filters != nil {
		var err error
		f, err = filter.New(req.Filters.Category, req.Filters.Language, req.Filters.MinPopularity)
		if err != nil {
			return request.Request{}, err //nolint:wrapcheck // domain error carries its own context
		}
	}

	sess := request.Session{
		UserID:    r.Header.Get(headerUserID),
		SessionID: r.Header.Get(headerSessionID),
		Locale:    localeFromHeader(r.Header.Get("Accept-Language")),
	}
	if req.Session != nil {
		if req.Session.UserID != "" {
			sess.UserID = req.Session.UserID
		}
		if req.Session.SessionID != "" {
			sess.SessionID = req.Session.SessionID
		}
		if req.Session.Locale != "" {
			sess.Locale = canonicalLocale(req.Session.Locale)
		}
	}

	return request.New(req.Query, f, sess, req.Page, req.PageSize) //nolint:wrapcheck // domain error
}

// localeFromHeader picks the highest-weighted tag of an Accept-Language header.
func localeFromHeader(h string) string {
	if h == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(h)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

// canonicalLocale normalizes a BCP 47 tag, keeping unparseable input verbatim
// for the analyzer's script detection to override.
func canonicalLocale(s string) string {
	tag, err := language.Parse(s)
	if err != nil {
		return s
	}
	return tag.String()
}

func searchPageToDTO(p *result.Page) SearchResponse {
	resp := SearchResponse{
		RequestID:                  p.Meta.RequestID,
		Results:                    make([]SearchHit, len(p.Results)),
		Total:                      p.Total,
		Page:                       p.Page,
		PageSize:                   p.PageSize,
		Branches:                   make(map[string]BranchOutcome, len(p.Meta.Branches)),
		Weights:                    make(map[string]float64, len(p.Meta.Weights)),
		WeightsRedistributed:       p.Meta.Redistributed,
		KeywordUnavailable:         p.Meta.Unavailable(branch.Keyword),
		VectorUnavailable:          p.Meta.Unavailable(branch.Vector),
		CollabUnavailable:          p.Meta.Unavailable(branch.Collab),
		PersonalizationUnavailable: p.Meta.Unavailable(branch.Personalization),
	}
	for i := range p.Results {
		resp.Results[i] = rankedToDTO(&p.Results[i])
	}
	for b, rep := range p.Meta.Branches {
		resp.Branches[b.String()] = BranchOutcome{
			Status:     string(rep.Status),
			LatencyMS:  float64(rep.Latency.Microseconds()) / 1000,
			Candidates: rep.Candidates,
			Confidence: rep.Confidence,
		}
	}
	for b, w := range p.Meta.Weights {
		resp.Weights[b.String()] = w
	}
	return resp
}

func rankedToDTO(r *result.Ranked) SearchHit {
	hit := SearchHit{
		ContentID: r.ContentID(),
		Score:     r.Score(),
		Category:  r.Category(),
		Breakdown: make(map[string]result.Contribution),
	}
	if r.Adjusted() {
		orig := r.OriginalScore()
		hit.OriginalScore = &orig
	}
	for b, c := range r.Breakdown() {
		hit.Breakdown[b.String()] = c
	}
	prov := r.Provenance()
	hit.Provenance = make([]string, len(prov))
	for i, b := range prov {
		hit.Provenance[i] = b.String()
	}
	return hit
}

func interactionParamsFromDTO(req *InteractionRequest) interactionuc.Params {
	p := interactionuc.Params{
		ID:        req.ID,
		UserID:    req.UserID,
		ContentID: req.ContentID,
		Type:      req.Type,
		Weight:    req.Weight,
	}
	if req.Timestamp != nil {
		p.Timestamp = *req.Timestamp
	}
	return p
}

func contentParamsFromDTO(id string, req *ContentRequest) domcontent.Params {
	return domcontent.Params{
		ID:         id,
		Title:      req.Title,
		Body:       req.Body,
		Language:   req.Language,
		Category:   req.Category,
		Popularity: req.Popularity,
		Embedding:  req.Embedding,
		Version:    req.Version,
	}
}

func contentToDTO(item *domcontent.Item) ContentResponse {
	return ContentResponse{
		ID:         item.ID(),
		Title:      item.Title(),
		Body:       item.Body(),
		Language:   item.Language(),
		Category:   item.Category(),
		Popularity: item.Popularity(),
		Version:    item.Version(),
		Dimensions: len(item.Embedding()),
		UpdatedAt:  item.UpdatedAt(),
	}
}
