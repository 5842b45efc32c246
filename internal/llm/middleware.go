package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to the wrapped oracle.
type RateLimited struct {
	next    Oracle
	limiter *rate.Limiter
}

func NewRateLimited(next Oracle, requestsPerMinute int) *RateLimited {
	every := time.Minute / time.Duration(requestsPerMinute)
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
}

func (r *RateLimited) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return r.next.Complete(ctx, systemPrompt, userPrompt)
}

type timeoutOracle struct {
	next    Oracle
	timeout time.Duration
}

// WithTimeout bounds every call to next by d.
func WithTimeout(next Oracle, d time.Duration) Oracle {
	return &timeoutOracle{next: next, timeout: d}
}

func (t *timeoutOracle) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, systemPrompt, userPrompt)
}
