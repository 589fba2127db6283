// Package pipeline wires Provider, CharacterAnalyzer, TransformEngine, and
// QualityController into the two operations §6 names as the core's
// invocation surface: Analyze and Transform.
package pipeline

import (
	"context"
	"fmt"

	"github.com/jsnhff/regender/pkg/analyzer"
	"github.com/jsnhff/regender/pkg/book"
	"github.com/jsnhff/regender/pkg/observability"
	"github.com/jsnhff/regender/pkg/provider"
	"github.com/jsnhff/regender/pkg/quality"
	"github.com/jsnhff/regender/pkg/ratelimit"
	"github.com/jsnhff/regender/pkg/transform"
)

// Options configures a Pipeline. A zero Model lets each stage fall back to
// the provider's own default model.
type Options struct {
	Model       string
	RateLimiter *ratelimit.DefaultLimiter
	Metrics     *observability.Metrics
}

// Pipeline is the top-level orchestration over one Provider.
type Pipeline struct {
	analyzer *analyzer.Analyzer
	engine   *transform.Engine
	quality  *quality.Controller
	metrics  *observability.Metrics
}

// New builds a Pipeline backed by p.
func New(p provider.Provider, opts Options) *Pipeline {
	return &Pipeline{
		analyzer: analyzer.New(p, analyzer.Options{Model: opts.Model, Limiter: opts.RateLimiter}),
		engine:   transform.New(p, transform.Options{Model: opts.Model}),
		quality:  quality.New(p, quality.Options{Model: opts.Model}),
		metrics:  opts.Metrics,
	}
}

// Analyze produces a frozen CharacterRegistry covering b's cast (§4.2).
func (p *Pipeline) Analyze(ctx context.Context, b *book.Book) (*book.CharacterRegistry, error) {
	reg, err := p.analyzer.Analyze(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("pipeline: analyze: %w", err)
	}
	return reg, nil
}

// Transform rewrites b under spec using reg's character assignments, then
// runs the QualityController up to level's pass budget (§4.3, §4.4). reg
// must already be frozen — the registry is built once per book and frozen
// before transformation (§3 "Lifecycle"), and QualityHigh additionally
// requires that analysis actually ran rather than being skipped, which a
// frozen, non-empty registry demonstrates.
func (p *Pipeline) Transform(ctx context.Context, b *book.Book, reg *book.CharacterRegistry, spec book.TransformSpec, level book.QualityLevel) (*book.TransformedBook, *book.QualityReport, error) {
	if !reg.Frozen() {
		return nil, nil, fmt.Errorf("pipeline: transform: character registry must be frozen before transform")
	}
	if level == book.QualityHigh && reg.Count() == 0 {
		return nil, nil, fmt.Errorf("pipeline: transform: quality level %q requires a non-empty character analysis", level)
	}

	tb, defects, err := p.engine.Transform(ctx, b, reg, spec)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: transform: %w", err)
	}
	for range defects {
		p.metrics.RecordChunkOutcome("fallback")
	}

	report, err := p.quality.Run(ctx, tb, reg, spec, level, defects)
	if err != nil {
		return tb, nil, fmt.Errorf("pipeline: quality: %w", err)
	}
	tb.Transformation.Score = report.Score
	p.metrics.RecordQualityReport(report.Passes, report.Score)

	return tb, report, nil
}
