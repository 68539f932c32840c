// Package embedding decorates the embedding provider for the query path.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/discovery/internal/domain"
)

// InstrumentedEmbedder logs provider calls and collapses concurrent
// requests for the same text into one provider call.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	group    singleflight.Group
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps inner.
func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		logger:   logger,
	}
}

// Embed implements domain.Embedder. Callers sharing a flight share its
// result and error; each caller still honours its own ctx.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	ch := p.group.DoChan(text, func() (any, error) {
		// detached so one caller's cancellation does not fail the others
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout(ctx))
		defer cancel()
		return p.call(callCtx, text)
	})

	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.EmbeddingResult{}, res.Err
		}
		out, _ := res.Val.(domain.EmbeddingResult)
		return out, nil
	}
}

func (p *InstrumentedEmbedder) call(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

const defaultFlightTimeout = 2 * time.Second

// flightTimeout keeps the caller's remaining budget for the shared call.
func flightTimeout(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return defaultFlightTimeout
}
