package provider

import (
	"context"

	"golang.org/x/time/rate"
)

// limiter bounds a single provider's in-flight request count and its
// requests-per-minute and tokens-per-minute budgets. It is process-local:
// adapted from the pack's goa-ai AdaptiveRateLimiter middleware with the
// cluster-coordination layer (a replicated map shared across processes)
// stripped, since this pipeline runs as a single process per invocation.
type limiter struct {
	sem      chan struct{}
	requests *rate.Limiter
	tokens   *rate.Limiter
}

// newLimiter builds a limiter with the given concurrency ceiling and
// requests-per-minute / tokens-per-minute budgets (§4.1's two-dimensional
// token bucket). A non-positive bound disables that dimension's throttling.
func newLimiter(maxConcurrency int, requestsPerMinute, tokensPerMinute float64) *limiter {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	l := &limiter{sem: make(chan struct{}, maxConcurrency)}
	if requestsPerMinute > 0 {
		burst := int(requestsPerMinute)
		if burst < 1 {
			burst = 1
		}
		l.requests = rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), burst)
	}
	if tokensPerMinute > 0 {
		l.tokens = rate.NewLimiter(rate.Limit(tokensPerMinute/60.0), int(tokensPerMinute))
	}
	return l
}

// wait blocks until both the requests-per-minute bucket has a slot and the
// estimated token cost of the upcoming request can be drawn from the
// tokens-per-minute bucket. A nil bucket in either dimension is a no-op.
func (l *limiter) wait(ctx context.Context, estimatedTokens int) error {
	if l.requests != nil {
		if err := l.requests.Wait(ctx); err != nil {
			return err
		}
	}
	if l.tokens == nil {
		return nil
	}
	if estimatedTokens <= 0 {
		estimatedTokens = 1
	}
	burst := l.tokens.Burst()
	if estimatedTokens > burst {
		estimatedTokens = burst
	}
	return l.tokens.WaitN(ctx, estimatedTokens)
}

// acquire blocks until a concurrency slot is free, returning a release func.
func (l *limiter) acquire(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
