package chi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/metrics"
	healthuc "github.com/kailas-cloud/discovery/internal/usecase/health"
)

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		return
	}
	if err := validateStruct(&req); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	searchReq, err := searchRequestFromDTO(&req, r)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		s.handleDomainError(w, r, err)
		return
	}

	page, err := s.search.Search(r.Context(), &searchReq)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchPageToDTO(&page))
}

// RecordInteraction handles POST /v1/interactions.
func (s *Server) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	var req InteractionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	ev, err := s.interactions.Record(r.Context(), interactionParamsFromDTO(&req))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, InteractionAccepted{ID: ev.ID(), Status: "accepted"})
}

// UpsertContent handles PUT /v1/content/{id}.
func (s *Server) UpsertContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	item, err := s.content.Upsert(ctx, contentParamsFromDTO(id, &req))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, contentToDTO(&item))
}

// GetContent handles GET /v1/content/{id}.
func (s *Server) GetContent(w http.ResponseWriter, r *http.Request) {
	item, err := s.content.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(item.Version(), 10)))
	writeJSON(w, http.StatusOK, contentToDTO(&item))
}

// HealthCheck handles GET /health. Degraded still serves traffic and answers 200.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}
