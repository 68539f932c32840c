// Package health aggregates dependency and circuit breaker checks.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates search is served with reduced quality.
	Degraded Status = "degraded"
	// Unhealthy indicates search cannot be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckOpen marks a circuit breaker that is rejecting calls.
	CheckOpen CheckResult = "open"
	// CheckHalfOpen marks a circuit breaker that is probing.
	CheckHalfOpen CheckResult = "half-open"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	breakers  BreakerReporter
}

// New creates a Service. embedding and breakers can be nil.
func New(db DBPinger, embedding EmbeddingChecker, breakers BreakerReporter) *Service {
	return &Service{db: db, embedding: embedding, breakers: breakers}
}

// Check runs health checks against all components. A database failure is
// unhealthy; anything else failing or any breaker not closed is degraded.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
			status = worse(status, Degraded)
		} else {
			checks["embedding"] = CheckOK
		}
	}

	if s.breakers != nil {
		for name, state := range s.breakers.BreakerStates() {
			res := CheckResult(state)
			switch res {
			case CheckOpen, CheckHalfOpen:
				status = worse(status, Degraded)
			default:
				res = CheckOK
			}
			checks["breaker_"+name] = res
		}
	}

	return Report{Status: status, Checks: checks}
}

func worse(a, b Status) Status {
	rank := map[Status]int{Healthy: 0, Degraded: 1, Unhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
