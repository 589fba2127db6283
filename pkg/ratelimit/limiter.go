package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultLimiter implements Limiter on top of a Store.
type DefaultLimiter struct {
	config *Config
	store  Store
	mu     sync.RWMutex
}

// NewLimiter creates a new rate limiter with the given configuration and store.
func NewLimiter(cfg *Config, store Store) (*DefaultLimiter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	for i, limit := range cfg.Limits {
		if limit.Type == "" {
			return nil, fmt.Errorf("limit[%d]: type is required", i)
		}
		if limit.Window == "" {
			return nil, fmt.Errorf("limit[%d]: window is required", i)
		}
		if limit.Limit <= 0 {
			return nil, fmt.Errorf("limit[%d]: limit must be positive", i)
		}
	}
	return &DefaultLimiter{config: cfg, store: store}, nil
}

// Check verifies if the operation is allowed without recording usage.
func (l *DefaultLimiter) Check(ctx context.Context, identifier string) (*CheckResult, error) {
	if !l.config.Enabled {
		return &CheckResult{Allowed: true}, nil
	}
	if identifier == "" {
		return nil, fmt.Errorf("identifier cannot be empty")
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.checkUnlocked(ctx, identifier)
}

// Record records actual usage (tokens and/or request count).
func (l *DefaultLimiter) Record(ctx context.Context, identifier string, tokenCount, requestCount int64) error {
	if !l.config.Enabled {
		return nil
	}
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recordUnlocked(ctx, identifier, tokenCount, requestCount)
}

// CheckAndRecord checks limits and records usage in a single atomic operation.
func (l *DefaultLimiter) CheckAndRecord(ctx context.Context, identifier string, tokenCount, requestCount int64) (*CheckResult, error) {
	if !l.config.Enabled {
		return &CheckResult{Allowed: true}, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	result, err := l.checkUnlocked(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !result.Allowed {
		return result, nil
	}
	if err := l.recordUnlocked(ctx, identifier, tokenCount, requestCount); err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}
	return l.checkUnlocked(ctx, identifier)
}

// GetUsage returns current usage statistics for an identifier.
func (l *DefaultLimiter) GetUsage(ctx context.Context, identifier string) ([]Usage, error) {
	if !l.config.Enabled {
		return []Usage{}, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	result, err := l.checkUnlocked(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return result.Usages, nil
}

// Reset resets usage for an identifier.
func (l *DefaultLimiter) Reset(ctx context.Context, identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.DeleteUsage(ctx, identifier)
}

func (l *DefaultLimiter) checkUnlocked(ctx context.Context, identifier string) (*CheckResult, error) {
	result := &CheckResult{Allowed: true, Usages: make([]Usage, 0, len(l.config.Limits))}
	now := time.Now()
	var earliestRetry *time.Time

	for _, limit := range l.config.Limits {
		current, windowEnd, err := l.store.GetUsage(ctx, identifier, limit.Type, limit.Window)
		if err != nil {
			return nil, fmt.Errorf("failed to get usage for %s/%s: %w", limit.Type, limit.Window, err)
		}
		if windowEnd.Before(now) {
			current = 0
			windowEnd = now.Add(limit.Window.Duration())
		}

		remaining := limit.Limit - current
		if remaining < 0 {
			remaining = 0
		}
		percentage := float64(current) / float64(limit.Limit) * 100

		result.Usages = append(result.Usages, Usage{
			LimitType: limit.Type, Window: limit.Window, Current: current,
			Limit: limit.Limit, WindowEnd: windowEnd, Remaining: remaining, Percentage: percentage,
		})

		if current > limit.Limit {
			result.Allowed = false
			if result.Reason == "" {
				result.Reason = fmt.Sprintf("%s limit exceeded for %s window (%d/%d)", limit.Type, limit.Window, current, limit.Limit)
			}
			if earliestRetry == nil || windowEnd.Before(*earliestRetry) {
				earliestRetry = &windowEnd
			}
		}
	}

	if !result.Allowed && earliestRetry != nil {
		if d := time.Until(*earliestRetry); d > 0 {
			result.RetryAfter = &d
		}
	}
	return result, nil
}

func (l *DefaultLimiter) recordUnlocked(ctx context.Context, identifier string, tokenCount, requestCount int64) error {
	now := time.Now()
	for _, limit := range l.config.Limits {
		var amount int64
		switch limit.Type {
		case LimitTypeToken:
			amount = tokenCount
		case LimitTypeCount:
			amount = requestCount
		default:
			continue
		}
		if amount <= 0 {
			continue
		}

		_, windowEnd, err := l.store.GetUsage(ctx, identifier, limit.Type, limit.Window)
		if err != nil {
			return fmt.Errorf("failed to get usage for %s/%s: %w", limit.Type, limit.Window, err)
		}
		if windowEnd.Before(now) {
			windowEnd = now.Add(limit.Window.Duration())
			if err := l.store.SetUsage(ctx, identifier, limit.Type, limit.Window, amount, windowEnd); err != nil {
				return fmt.Errorf("failed to reset usage for %s/%s: %w", limit.Type, limit.Window, err)
			}
			continue
		}
		if _, _, err := l.store.IncrementUsage(ctx, identifier, limit.Type, limit.Window, amount); err != nil {
			return fmt.Errorf("failed to increment usage for %s/%s: %w", limit.Type, limit.Window, err)
		}
	}
	return nil
}

// IsEnabled returns whether rate limiting is enabled.
func (l *DefaultLimiter) IsEnabled() bool {
	return l.config.Enabled
}
