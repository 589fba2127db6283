// Package ratelimit provides rolling-window usage tracking for LLM
// provider consumption: token counts and request counts, each trackable
// across minute/hour/day/week/month windows.
//
// The CharacterAnalyzer uses this package to stay under a provider's
// published tokens-per-minute ceiling while issuing its five stratified-
// sample extraction calls (§4.2): it calls CheckAndRecord before each call
// and suspends until the rolling window has room when denied.
//
// # Basic usage
//
//	store := ratelimit.NewMemoryStore()
//	limiter, err := ratelimit.NewLimiter(&ratelimit.Config{
//		Enabled: true,
//		Limits: []ratelimit.LimitRule{
//			{Type: ratelimit.LimitTypeToken, Window: ratelimit.WindowMinute, Limit: 100000},
//		},
//	}, store)
//	result, err := limiter.CheckAndRecord(ctx, "openai", 1200, 1)
//	if !result.Allowed {
//		// wait result.RetryAfter, or suspend until the window clears
//	}
//
// # Time windows
//
//   - minute: 60 seconds (burst protection)
//   - hour: 60 minutes (short-term limits)
//   - day: 24 hours (daily quotas)
//   - week: 7 days (weekly budgets)
//   - month: 30 days (monthly billing, approximate)
//
// Unlike the teacher's original rate-limiting package, there is no
// session/user scope distinction here — a single identifier (the provider
// name) is tracked per process — and no SQL-backed store: this pipeline
// runs as a single process with in-memory accounting only.
package ratelimit
