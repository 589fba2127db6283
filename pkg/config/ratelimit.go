package config

import (
	"fmt"

	"github.com/jsnhff/regender/pkg/ratelimit"
)

// RateLimitConfig configures the token/request ceilings applied to a
// single provider's rate limiter (§4.1). Unlike the teacher's original
// RateLimitConfig, there is no session/user scope or SQL backend here:
// this pipeline has one provider-scoped budget per process, tracked
// in-memory by pkg/ratelimit.
type RateLimitConfig struct {
	Enabled bool
	Limits  []RateLimitRule
}

// RateLimitRule defines a single rate limit rule.
type RateLimitRule struct {
	Type   string // "token" or "count"
	Window string // "minute", "hour", "day", "week", "month"
	Limit  int64
}

// SetDefaults applies sensible defaults when rate limiting is enabled with
// no explicit rules.
func (c *RateLimitConfig) SetDefaults() {
	if c.Enabled && len(c.Limits) == 0 {
		c.Limits = []RateLimitRule{
			{Type: "token", Window: "minute", Limit: 100000},
			{Type: "count", Window: "minute", Limit: 60},
		}
	}
}

// Validate checks the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Limits) == 0 {
		return fmt.Errorf("rate_limiting.limits is required when rate limiting is enabled")
	}
	validWindows := map[string]bool{"minute": true, "hour": true, "day": true, "week": true, "month": true}
	for i, limit := range c.Limits {
		if limit.Type != "token" && limit.Type != "count" {
			return fmt.Errorf("rate_limiting.limits[%d].type must be 'token' or 'count'", i)
		}
		if !validWindows[limit.Window] {
			return fmt.Errorf("rate_limiting.limits[%d].window is invalid", i)
		}
		if limit.Limit <= 0 {
			return fmt.Errorf("rate_limiting.limits[%d].limit must be positive", i)
		}
	}
	return nil
}

// Build translates c into pkg/ratelimit's own Config/LimitRule types and
// constructs a DefaultLimiter backed by an in-memory Store, honoring §4.2's
// "rate-limit-aware variant" of the analyzer. Returns nil, nil when rate
// limiting is disabled, so callers can wire the result straight into
// analyzer.Options.Limiter without a nil check of their own.
func (c *RateLimitConfig) Build() (*ratelimit.DefaultLimiter, error) {
	if !c.Enabled {
		return nil, nil
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	rules := make([]ratelimit.LimitRule, len(c.Limits))
	for i, l := range c.Limits {
		rules[i] = ratelimit.LimitRule{
			Type:   ratelimit.LimitType(l.Type),
			Window: ratelimit.TimeWindow(l.Window),
			Limit:  l.Limit,
		}
	}

	limiter, err := ratelimit.NewLimiter(&ratelimit.Config{Enabled: true, Limits: rules}, ratelimit.NewMemoryStore())
	if err != nil {
		return nil, fmt.Errorf("config: build rate limiter: %w", err)
	}
	return limiter, nil
}
