package chi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/discovery/internal/domain"
	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	"github.com/kailas-cloud/discovery/internal/domain/search/branch"
	"github.com/kailas-cloud/discovery/internal/domain/search/result"
	"github.com/kailas-cloud/discovery/internal/metrics"
	healthuc "github.com/kailas-cloud/discovery/internal/usecase/health"
)

func samplePage() result.Page {
	top := result.NewRanked("c1", 0.9,
		map[branch.Branch]result.Contribution{
			branch.Keyword: {Raw: 1, Weight: 0.5, Contribution: 0.5},
			branch.Vector:  {Raw: 0.8, Weight: 0.5, Contribution: 0.4},
		},
		[]branch.Branch{branch.Keyword, branch.Vector}, "education", 10)
	clamped := result.NewRanked("c2", 0.85,
		map[branch.Branch]result.Contribution{branch.Keyword: {Raw: 1, Weight: 0.5, Contribution: 0.5}},
		[]branch.Branch{branch.Keyword}, "education", 3).WithClampedScore(0.7)

	return result.Page{
		Results:  []result.Ranked{top, clamped},
		Total:    2,
		Page:     1,
		PageSize: 20,
		Meta: result.Meta{
			RequestID: "req-1",
			Branches: map[branch.Branch]result.BranchReport{
				branch.Keyword: {Status: branch.StatusOK, Latency: 12 * time.Millisecond, Candidates: 2},
				branch.Vector:  {Status: branch.StatusOK, Latency: 40 * time.Millisecond, Candidates: 1},
				branch.Collab:  {Status: branch.StatusColdStart, Latency: time.Millisecond},
			},
			Weights:       map[branch.Branch]float64{branch.Keyword: 0.5, branch.Vector: 0.5},
			Redistributed: true,
		},
	}
}

func TestSearch_OK(t *testing.T) {
	f := newFixture(t)
	f.search.page = samplePage()

	rr := f.do(t, http.MethodPost, "/v1/search",
		`{"query":"فن","filters":{"category":"education"},"page":1,"page_size":20}`,
		"X-User-ID", "u1", "Accept-Language", "ar-EG,ar;q=0.9,en;q=0.5")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	resp := decodeBody[SearchResponse](t, rr)

	if resp.RequestID != "req-1" || resp.Total != 2 || len(resp.Results) != 2 {
		t.Fatalf("unexpected page: %+v", resp)
	}
	if resp.Results[0].ContentID != "c1" || len(resp.Results[0].Provenance) != 2 {
		t.Errorf("top hit: %+v", resp.Results[0])
	}
	if resp.Results[0].OriginalScore != nil {
		t.Error("unadjusted hit should not report original_score")
	}
	if resp.Results[1].OriginalScore == nil || *resp.Results[1].OriginalScore != 0.85 {
		t.Errorf("clamped hit original_score: %v", resp.Results[1].OriginalScore)
	}
	if got := resp.Results[0].Breakdown["vector"].Contribution; got != 0.4 {
		t.Errorf("vector contribution: got %v, want 0.4", got)
	}
	if !resp.CollabUnavailable || !resp.PersonalizationUnavailable {
		t.Error("collab and personalization should be flagged unavailable")
	}
	if resp.KeywordUnavailable || resp.VectorUnavailable {
		t.Error("keyword and vector contributed")
	}
	if resp.Branches["vector"].LatencyMS != 40 || resp.Branches["collab"].Status != "cold_start" {
		t.Errorf("branches: %+v", resp.Branches)
	}
	if !resp.WeightsRedistributed {
		t.Error("weights_redistributed should be true")
	}

	got := f.search.got
	if got == nil {
		t.Fatal("search service not called")
	}
	if got.Session().UserID != "u1" || got.Session().Locale != "ar-EG" {
		t.Errorf("session from headers: %+v", got.Session())
	}
	if got.Filters().Category() != "education" || got.Query() != "فن" {
		t.Errorf("request: query %q, category %q", got.Query(), got.Filters().Category())
	}
}

func TestSearch_BodySessionWinsOverHeaders(t *testing.T) {
	f := newFixture(t)
	f.search.page = result.Page{Page: 1, PageSize: 20}

	rr := f.do(t, http.MethodPost, "/v1/search",
		`{"query":"art","session":{"user_id":"body-user","locale":"fr"}}`,
		"X-User-ID", "header-user", "Accept-Language", "en")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}
	s := f.search.got.Session()
	if s.UserID != "body-user" || s.Locale != "fr" {
		t.Errorf("session: %+v", s)
	}
	resp := decodeBody[SearchResponse](t, rr)
	if resp.Results == nil {
		t.Error("results should encode as an empty array")
	}
}

func TestSearch_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"query":`, CodeBadRequest},
		{"unknown field", `{"query":"a","mode":"x"}`, CodeBadRequest},
		{"negative page", `{"query":"a","page":-1}`, CodeValidationFailed},
		{"negative min popularity", `{"filters":{"min_popularity":-2}}`, CodeValidationFailed},
		{"bad category", `{"filters":{"category":"Not A Slug"}}`, CodeInvalidQuery},
		{"page too deep", `{"query":"a","page":51}`, CodeInvalidQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			before := testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues("invalid"))

			rr := f.do(t, http.MethodPost, "/v1/search", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400 (%s)", rr.Code, rr.Body.String())
			}
			if resp := decodeBody[ErrorResponse](t, rr); resp.Code != tt.wantCode {
				t.Errorf("code: got %q, want %q", resp.Code, tt.wantCode)
			}
			if f.search.got != nil {
				t.Error("search service must not be called")
			}
			after := testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues("invalid"))
			if after != before+1 {
				t.Errorf("invalid counter: got +%v, want +1", after-before)
			}
		})
	}
}

func TestSearch_AllBranchesFailed(t *testing.T) {
	f := newFixture(t)
	f.search.err = fmt.Errorf("retrieve: %w", domain.NewAllBranchesFailed(map[string]error{
		"keyword": domain.ErrBranchTimeout,
		"vector":  domain.ErrBranchUnavailable,
		"collab":  errors.New("connection refused"),
	}))

	rr := f.do(t, http.MethodPost, "/v1/search", `{"query":"art"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rr.Code)
	}
	body := decodeBody[struct {
		Code     string            `json:"code"`
		Message  string            `json:"message"`
		Branches map[string]string `json:"branches"`
	}](t, rr)
	if body.Code != CodeAllBranchesFailed {
		t.Errorf("code: got %q", body.Code)
	}
	want := map[string]string{"keyword": "timeout", "vector": "unavailable", "collab": "error"}
	for k, v := range want {
		if body.Branches[k] != v {
			t.Errorf("branch %s: got %q, want %q", k, body.Branches[k], v)
		}
	}
	if body.Message != domain.ErrAllBranchesFailed.Error() {
		t.Errorf("message leaks internals: %q", body.Message)
	}
}

func TestSearch_UnknownErrorIs500(t *testing.T) {
	f := newFixture(t)
	f.search.err = errors.New("valkey: connection reset by peer")

	rr := f.do(t, http.MethodPost, "/v1/search", `{"query":"art"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	resp := decodeBody[ErrorResponse](t, rr)
	if resp.Code != CodeInternalError || resp.Message != "internal error" {
		t.Errorf("response: %+v", resp)
	}
}

func TestRecordInteraction_Accepted(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/v1/interactions",
		`{"id":"e1","user_id":"u1","content_id":"c1","type":"click","timestamp":"2026-01-02T03:04:05Z"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202 (%s)", rr.Code, rr.Body.String())
	}
	resp := decodeBody[InteractionAccepted](t, rr)
	if resp.ID != "e1" || resp.Status != "accepted" {
		t.Errorf("response: %+v", resp)
	}
	got := f.interactions.got
	if got.UserID != "u1" || got.Type != "click" || !got.Timestamp.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("params: %+v", got)
	}
}

func TestRecordInteraction_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode string
	}{
		{"missing user", `{"content_id":"c1","type":"click"}`, nil, CodeValidationFailed},
		{"unknown type", `{"user_id":"u1","content_id":"c1","type":"purchase"}`, nil, CodeValidationFailed},
		{"negative weight", `{"user_id":"u1","content_id":"c1","type":"view","weight":-1}`, nil, CodeValidationFailed},
		{
			"domain rejects", `{"user_id":"u1","content_id":"c1","type":"view"}`,
			fmt.Errorf("%w: timestamp is in the future", domain.ErrInvalidEvent), CodeInvalidEvent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.interactions.err = tt.err

			rr := f.do(t, http.MethodPost, "/v1/interactions", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400 (%s)", rr.Code, rr.Body.String())
			}
			if resp := decodeBody[ErrorResponse](t, rr); resp.Code != tt.wantCode {
				t.Errorf("code: got %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestUpsertContent(t *testing.T) {
	f := newFixture(t)
	f.content.tokens = 7

	rr := f.do(t, http.MethodPut, "/v1/content/c1",
		`{"title":"Intro to art","language":"en","category":"education","popularity":4,"version":1}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "7" {
		t.Errorf("X-Embedding-Tokens: got %q, want 7", got)
	}
	resp := decodeBody[ContentResponse](t, rr)
	if resp.ID != "c1" || resp.Version != 1 || resp.Dimensions != 3 {
		t.Errorf("response: %+v", resp)
	}

	rr = f.do(t, http.MethodGet, "/v1/content/c1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status: got %d", rr.Code)
	}
	if etag := rr.Header().Get("ETag"); etag != `"1"` {
		t.Errorf("ETag: got %s", etag)
	}
}

func TestUpsertContent_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			"missing title and body", `{"language":"en","category":"art","version":1}`,
			nil, http.StatusBadRequest, CodeValidationFailed,
		},
		{
			"zero version", `{"title":"t","language":"en","category":"art","version":0}`,
			nil, http.StatusBadRequest, CodeValidationFailed,
		},
		{
			"dimension mismatch", `{"title":"t","language":"en","category":"art","version":1,"embedding":[1,0]}`,
			nil, http.StatusBadRequest, CodeVectorDimMismatch,
		},
		{
			"stale version", `{"title":"t","language":"en","category":"art","version":1}`,
			fmt.Errorf("upsert content: %w", domain.ErrStaleVersion), http.StatusConflict, CodeStaleVersion,
		},
		{
			"embedding provider down", `{"title":"t","language":"en","category":"art","version":2}`,
			fmt.Errorf("vectorize content: %w", domain.ErrEmbeddingProviderError),
			http.StatusBadGateway, CodeEmbeddingProviderError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.content.err = tt.err

			rr := f.do(t, http.MethodPut, "/v1/content/c1", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if resp := decodeBody[ErrorResponse](t, rr); resp.Code != tt.wantCode {
				t.Errorf("code: got %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestGetContent_NotFound(t *testing.T) {
	f := newFixture(t)
	f.content.items = map[string]domcontent.Item{}

	rr := f.do(t, http.MethodGet, "/v1/content/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
	if resp := decodeBody[ErrorResponse](t, rr); resp.Code != CodeNotFound {
		t.Errorf("code: got %q", resp.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status     healthuc.Status
		wantStatus int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			f := newFixture(t)
			f.health.report = healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK, "breaker_vector": healthuc.CheckOpen},
			}

			rr := f.do(t, http.MethodGet, "/health", "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantStatus)
			}
			resp := decodeBody[HealthResponse](t, rr)
			if resp.Status != string(tt.status) || resp.Checks["breaker_vector"] != "open" {
				t.Errorf("response: %+v", resp)
			}
		})
	}
}

func TestMetricsAndUnknownRoutes(t *testing.T) {
	f := newFixture(t)

	if rr := f.do(t, http.MethodGet, "/metrics", ""); rr.Code != http.StatusOK {
		t.Errorf("metrics: got %d", rr.Code)
	}

	rr := f.do(t, http.MethodGet, "/v1/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown route: got %d, want 404", rr.Code)
	}
	if resp := decodeBody[ErrorResponse](t, rr); resp.Code != CodeNotFound {
		t.Errorf("unknown route code: %q", resp.Code)
	}

	rr = f.do(t, http.MethodGet, "/v1/search", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: got %d, want 405", rr.Code)
	}
}
