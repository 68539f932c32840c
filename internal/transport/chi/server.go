package chi

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain"
	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	dominteraction "github.com/kailas-cloud/discovery/internal/domain/interaction"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/discovery/internal/logger"
	healthuc "github.com/kailas-cloud/discovery/internal/usecase/health"
	interactionuc "github.com/kailas-cloud/discovery/internal/usecase/interaction"
)

// maxBodyBytes caps request bodies; a content item with body and embedding fits well below it.
const maxBodyBytes = 1 << 20

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest              = "bad_request"
	CodeValidationFailed        = "validation_failed"
	CodeUnauthorized            = "unauthorized"
	CodeNotFound                = "not_found"
	CodeMethodNotAllowed        = "method_not_allowed"
	CodeInvalidQuery            = "invalid_query"
	CodeInvalidEvent            = "invalid_event"
	CodeInvalidContent          = "invalid_content"
	CodeVectorDimMismatch       = "vector_dim_mismatch"
	CodeStaleVersion            = "stale_version"
	CodeAllBranchesFailed       = "all_branches_failed"
	CodeEmbeddingProviderError  = "embedding_provider_error"
	CodeProfileStoreUnavailable = "profile_store_unavailable"
	CodeInternalError           = "internal_error"
)

// SearchService runs hybrid searches.
type SearchService interface {
	Search(ctx context.Context, req *request.Request) (result.Page, error)
}

// InteractionService accepts interaction events.
type InteractionService interface {
	Record(ctx context.Context, p interactionuc.Params) (dominteraction.Event, error)
}

// ContentService stores catalogue items pushed by the content pipeline.
type ContentService interface {
	Upsert(ctx context.Context, p domcontent.Params) (domcontent.Item, error)
	Get(ctx context.Context, id string) (domcontent.Item, error)
}

// HealthService reports dependency health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the discovery HTTP API.
type Server struct {
	search        SearchService
	interactions  InteractionService
	content       ContentService
	health        HealthService
	metrics       http.Handler
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. metricsHandler serves GET /metrics.
func NewServer(
	search SearchService,
	interactions InteractionService,
	content ContentService,
	health HealthService,
	metricsHandler http.Handler,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:       search,
		interactions: interactions,
		content:      content,
		health:       health,
		metrics:      metricsHandler,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		allBranchesFailedHandler,
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrInvalidEvent, http.StatusBadRequest, CodeInvalidEvent),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrInvalidContent, http.StatusBadRequest, CodeInvalidContent),
		sentinelHandler(domain.ErrStaleVersion, http.StatusConflict, CodeStaleVersion),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrProfileStoreUnavailable,
			http.StatusServiceUnavailable, CodeProfileStoreUnavailable),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Post("/interactions", s.RecordInteraction)
		r.Put("/content/{id}", s.UpsertContent)
		r.Get("/content/{id}", s.GetContent)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// decodeJSON reads a bounded body and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// clientErrors carry messages written by domain validation; they are safe to echo.
var clientErrors = []error{
	domain.ErrInvalidQuery,
	domain.ErrInvalidEvent,
	domain.ErrInvalidContent,
	domain.ErrVectorDimMismatch,
	domain.ErrStaleVersion,
}

// publicMessage returns a client-facing message without exposing internals.
func publicMessage(err error) string {
	for _, s := range clientErrors {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrAllBranchesFailed,
		domain.ErrEmbeddingProviderError,
		domain.ErrProfileStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, publicMessage(err))
		return true
	}
}

// allBranchesFailedHandler reports which branches failed and how.
func allBranchesFailedHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrAllBranchesFailed) {
		return false
	}
	branches := map[string]string{}
	var abf *domain.AllBranchesFailedError
	if errors.As(err, &abf) {
		names := make([]string, 0, len(abf.Causes))
		for name := range abf.Causes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			branches[name] = causeKind(abf.Causes[name])
		}
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]any{
		"code":     CodeAllBranchesFailed,
		"message":  domain.ErrAllBranchesFailed.Error(),
		"branches": branches,
	})
	return true
}

func causeKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrBranchTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrBranchUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// requestLogger prefers the per-request logger installed by WideEventMiddleware.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if l := logpkg.FromContext(r.Context()); l.Core().Enabled(zap.ErrorLevel) {
		return l
	}
	return s.logger
}
