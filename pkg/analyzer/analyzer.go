// Package analyzer implements the CharacterAnalyzer (§4.2): it produces a
// frozen book.CharacterRegistry covering the full cast of a book, using
// stratified sampling to stay within a model's context window and the
// registry's own strict-alias merge and anti-merge rules to reconcile
// overlapping windows.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jsnhff/regender/pkg/book"
	"github.com/jsnhff/regender/pkg/provider"
	"github.com/jsnhff/regender/pkg/ratelimit"
)

// Window is a normalized [Start, End] slice of the book's paragraph stream.
type Window struct {
	Start, End float64
}

// DefaultWindows is the five overlapping stratified-sampling windows from
// §4.2: the overlap zones catch characters introduced near a boundary.
var DefaultWindows = []Window{
	{0.00, 0.25},
	{0.20, 0.40},
	{0.40, 0.60},
	{0.60, 0.80},
	{0.75, 1.00},
}

// ContextFraction is the share of the model's context window a single
// extraction call may occupy.
const ContextFraction = 0.85

// rateLimitIdentifier is the single identifier this package tracks usage
// under: the analyzer consumes a provider-wide budget, not a per-window one.
const rateLimitIdentifier = "analyzer"

// Analyzer runs character extraction over a book.
type Analyzer struct {
	provider provider.Provider
	limiter  *ratelimit.DefaultLimiter
	model    string
}

// Options configures an Analyzer.
type Options struct {
	// Model overrides the provider's default model.
	Model string
	// Limiter, when non-nil, bounds cumulative prompt+completion tokens
	// within the limiter's configured rolling windows (§4.2 "rate-limit-
	// aware variant"). Pass nil to extract without throttling.
	Limiter *ratelimit.DefaultLimiter
}

// New creates an Analyzer backed by p.
func New(p provider.Provider, opts Options) *Analyzer {
	model := opts.Model
	if model == "" {
		model = p.DefaultModel()
	}
	return &Analyzer{provider: p, limiter: opts.Limiter, model: model}
}

// Analyze extracts the full cast of b into a frozen CharacterRegistry.
func (a *Analyzer) Analyze(ctx context.Context, b *book.Book) (*book.CharacterRegistry, error) {
	reg := book.NewCharacterRegistry()

	paragraphs := flattenParagraphs(b)
	if len(paragraphs) == 0 {
		reg.Freeze()
		return reg, nil
	}

	budget := int(float64(a.provider.ContextWindow(a.model)) * ContextFraction)

	var windows []window
	if total := a.sumTokens(paragraphs); total <= budget {
		windows = []window{{start: 0, end: 1, paragraphs: paragraphs}}
	} else {
		for _, w := range DefaultWindows {
			windows = append(windows, selectWindow(paragraphs, w, budget, a.countTokens))
		}
	}

	// Windows are dispatched concurrently (the provider's own semaphore and
	// token-bucket limiter in pkg/provider bound how many calls actually run
	// at once); results are collected in window order and merged
	// sequentially afterward so the registry's anti-merge disambiguation
	// stays deterministic regardless of which call returns first.
	results := make([][]*book.Character, len(windows))
	group, gctx := errgroup.WithContext(ctx)
	for i, w := range windows {
		i, w := i, w
		if len(w.paragraphs) == 0 {
			continue
		}
		group.Go(func() error {
			entries, err := a.extractWindow(gctx, w)
			if err != nil {
				return fmt.Errorf("analyzer: extraction window [%.2f,%.2f]: %w", w.start, w.end, err)
			}
			results[i] = entries
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	for _, entries := range results {
		for _, c := range entries {
			if err := reg.Merge(c); err != nil {
				return nil, fmt.Errorf("analyzer: merge %q: %w", c.CanonicalName, err)
			}
		}
	}

	reg.Freeze()
	return reg, nil
}

func (a *Analyzer) countTokens(text string) int {
	return a.provider.CountTokens(text, a.model)
}

func (a *Analyzer) sumTokens(paragraphs []paragraphRef) int {
	total := 0
	for _, p := range paragraphs {
		total += a.countTokens(p.text)
	}
	return total
}

func (a *Analyzer) extractWindow(ctx context.Context, w window) ([]*book.Character, error) {
	messages := buildExtractionPrompt(w)

	estimated := 0
	for _, m := range messages {
		estimated += a.countTokens(m.Content)
	}
	if err := a.awaitBudget(ctx, estimated); err != nil {
		return nil, err
	}

	text, usage, err := a.provider.Complete(ctx, messages, a.model, 0.2, provider.ResponseFormatJSON, 4096)
	if err != nil {
		return nil, err
	}
	if a.limiter != nil {
		if err := a.limiter.Record(ctx, rateLimitIdentifier, int64(usage.CompletionTokens), 0); err != nil {
			return nil, fmt.Errorf("analyzer: record completion usage: %w", err)
		}
	}

	entries, err := parseExtraction(text)
	if err != nil {
		return nil, err
	}

	out := make([]*book.Character, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.toCharacter(w.start, w.end))
	}
	return out, nil
}

// awaitBudget suspends until the rolling-window token budget has room for
// estimatedTokens, matching §4.2's "suspend before issuing a call that
// would breach it; resume when the window clears". A nil limiter is a
// no-op: rate tracking is opt-in.
func (a *Analyzer) awaitBudget(ctx context.Context, estimatedTokens int) error {
	if a.limiter == nil {
		return nil
	}
	for {
		result, err := a.limiter.CheckAndRecord(ctx, rateLimitIdentifier, int64(estimatedTokens), 1)
		if err != nil {
			return fmt.Errorf("analyzer: check rate limit: %w", err)
		}
		if result.Allowed {
			return nil
		}

		wait := time.Second
		if result.RetryAfter != nil {
			wait = *result.RetryAfter
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// extractedCharacter is the JSON shape requested in the extraction prompt.
type extractedCharacter struct {
	Name          string       `json:"name"`
	Gender        string       `json:"gender"`
	Pronouns      *pronounJSON `json:"pronouns"`
	Titles        []string     `json:"titles"`
	Aliases       []string     `json:"aliases"`
	Importance    string       `json:"importance"`
	Confidence    float64      `json:"confidence"`
	FirstSeenHint float64      `json:"first_seen_hint"`
}

type pronounJSON struct {
	Subject    string `json:"subject"`
	Object     string `json:"object"`
	Possessive string `json:"possessive"`
}

// parseExtraction decodes the model's JSON array. Models occasionally wrap
// the array in an object (e.g. {"characters": [...]}) despite the prompt;
// this is a response from an external system, so a bounded fallback is a
// boundary concern rather than speculative generality.
func parseExtraction(text string) ([]extractedCharacter, error) {
	var entries []extractedCharacter
	if err := json.Unmarshal([]byte(text), &entries); err == nil {
		return entries, nil
	}

	var wrapped struct {
		Characters []extractedCharacter `json:"characters"`
	}
	if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
		return nil, fmt.Errorf("analyzer: unmarshal extraction response: %w", err)
	}
	return wrapped.Characters, nil
}

func (e extractedCharacter) toCharacter(windowStart, windowEnd float64) *book.Character {
	gender := book.Gender(strings.ToLower(strings.TrimSpace(e.Gender)))
	switch gender {
	case book.GenderMale, book.GenderFemale, book.GenderNonbinary:
	default:
		gender = book.GenderUnknown
	}

	pronouns := book.DefaultPronouns(gender)
	if e.Pronouns != nil {
		if e.Pronouns.Subject != "" {
			pronouns.Subject = e.Pronouns.Subject
		}
		if e.Pronouns.Object != "" {
			pronouns.Object = e.Pronouns.Object
		}
		if e.Pronouns.Possessive != "" {
			pronouns.Possessive = e.Pronouns.Possessive
		}
	}

	importance := book.Importance(strings.ToLower(strings.TrimSpace(e.Importance)))
	switch importance {
	case book.ImportanceMain, book.ImportanceSupporting, book.ImportanceMinor:
	default:
		importance = book.ImportanceMinor
	}

	confidence := e.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	variants := map[string]struct{}{e.Name: {}}
	for _, alias := range e.Aliases {
		if alias != "" {
			variants[alias] = struct{}{}
		}
	}
	titles := map[string]struct{}{}
	for _, t := range e.Titles {
		if t != "" {
			titles[t] = struct{}{}
		}
	}

	hint := e.FirstSeenHint
	if hint < 0 {
		hint = 0
	}
	if hint > 1 {
		hint = 1
	}
	firstSeen := windowStart + hint*(windowEnd-windowStart)
	if firstSeen > 1 {
		firstSeen = 1
	}

	return &book.Character{
		CanonicalName: e.Name,
		Variants:      variants,
		Gender:        gender,
		Pronouns:      pronouns,
		Titles:        titles,
		Importance:    importance,
		Confidence:    confidence,
		FirstSeen:     firstSeen,
	}
}
