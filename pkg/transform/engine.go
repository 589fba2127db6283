// Package transform drives the LLM through the numbered-sentence protocol
// (§4.3) to rewrite a book into a target gender schema, validates the
// alignment invariant, falls back to a passthrough on repeated failure, and
// reassembles the chunks into a structurally identical TransformedBook.
package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jsnhff/regender/pkg/book"
	"github.com/jsnhff/regender/pkg/chunk"
	"github.com/jsnhff/regender/pkg/provider"
)

// Options configures an Engine.
type Options struct {
	// Model overrides the provider's default model.
	Model string
	// Temperature controls sampling; defaults to 0.3 (low, for consistent
	// per-character rewrites across chunks) when zero.
	Temperature float64
	// MaxTokens bounds a single chunk completion; defaults to 4096 when zero.
	MaxTokens int
}

// Engine transforms a Book under a TransformSpec.
type Engine struct {
	provider  provider.Provider
	chunker   *chunk.Chunker
	model     string
	temp      float64
	maxTokens int
}

// New creates an Engine backed by p.
func New(p provider.Provider, opts Options) *Engine {
	model := opts.Model
	if model == "" {
		model = p.DefaultModel()
	}
	temp := opts.Temperature
	if temp == 0 {
		temp = 0.3
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &Engine{
		provider:  p,
		chunker:   chunk.New(p),
		model:     model,
		temp:      temp,
		maxTokens: maxTokens,
	}
}

// Transform rewrites b per spec using reg's character assignments. It
// returns the transformed book alongside any alignment-fallback defects
// recorded for the quality controller.
func (e *Engine) Transform(ctx context.Context, b *book.Book, reg *book.CharacterRegistry, spec book.TransformSpec) (*book.TransformedBook, []book.Defect, error) {
	contextWindow := e.provider.ContextWindow(e.model)
	chunks := e.chunker.Chunk(b, chunk.Budget{
		Model:         e.model,
		ContextWindow: contextWindow,
		Fraction:      chunk.DefaultFraction(contextWindow),
	})

	charContext := book.BuildCharacterContext(reg, spec)
	out := book.CloneStructure(b)

	// Chunks are transformed concurrently up to the provider's own
	// concurrency ceiling; ordering is not required at dispatch (§4.3
	// "Concurrency") but assembly below always walks chunks in their
	// original, deterministic order.
	defects := make([][]book.Defect, len(chunks))
	group, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		i, c := i, c
		group.Go(func() error {
			transformed, defect, err := e.transformChunk(gctx, c, charContext, spec)
			if err != nil {
				return fmt.Errorf("transform: chunk %s (chapter %d): %w", c.ID, c.ChapterIdx, err)
			}
			if transformed != nil {
				applyChunk(out, c, transformed)
			}
			if defect != nil {
				defects[i] = []book.Defect{*defect}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	var allDefects []book.Defect
	for _, d := range defects {
		allDefects = append(allDefects, d...)
	}

	return &book.TransformedBook{
		Book: out,
		Transformation: book.TransformationMeta{
			Type:      spec.Kind,
			Model:     e.model,
			Timestamp: time.Now(),
		},
	}, allDefects, nil
}

// applyChunk writes a successfully transformed chunk's sentences into out
// at their original locations, leaving CloneStructure's passthrough copy
// in place for any index it somehow omits (belt-and-suspenders: Aligned
// already guarantees full coverage before this is called).
func applyChunk(out *book.Book, source *book.Chunk, transformed *book.TransformedChunk) {
	for idx, text := range transformed.Sentences {
		ref := source.Refs[idx-1]
		out.Chapters[ref.ChapterIdx].Paragraphs[ref.ParaIdx].Sentences[ref.SentenceIdx] = text
	}
}

// transformChunk drives one chunk through the provider, retrying once on an
// alignment violation (§4.3). Any failure that survives the retry —
// alignment violation or hard provider error — falls back to a passthrough
// and a recorded defect rather than aborting the transform. Two errors
// always propagate instead: cancellation of ctx itself, and a permanent
// provider error (provider.ErrProviderPermanent), which is not retried.
func (e *Engine) transformChunk(ctx context.Context, c *book.Chunk, charContext book.CharacterContext, spec book.TransformSpec) (*book.TransformedChunk, *book.Defect, error) {
	messages := buildTransformPrompt(c, charContext, spec)

	transformed, reply, err := e.complete(ctx, c, messages)
	if err == nil && transformed.Aligned(c) {
		return transformed, nil, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}
	if errors.Is(err, provider.ErrProviderPermanent) {
		return nil, nil, err
	}

	// A hard error retries the same request; an alignment violation
	// retries with a stricter reminder appended. Either way, only one
	// retry is allowed before falling back (§4.3).
	retryMessages := messages
	if err == nil {
		retryMessages = withAlignmentReminder(messages, reply, c.Len())
	}
	transformed, _, retryErr := e.complete(ctx, c, retryMessages)
	if retryErr == nil && transformed.Aligned(c) {
		return transformed, nil, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}
	if errors.Is(retryErr, provider.ErrProviderPermanent) {
		return nil, nil, retryErr
	}

	reason := "alignment violation"
	if retryErr != nil {
		reason = retryErr.Error()
	} else if err != nil {
		reason = err.Error()
	}

	ref := book.SentenceRef{ChapterIdx: c.ChapterIdx}
	if len(c.Refs) > 0 {
		ref = c.Refs[0]
	}
	return nil, &book.Defect{
		Kind:       book.DefectAlignmentFallback,
		ChapterIdx: ref.ChapterIdx,
		ParaIdx:    ref.ParaIdx,
		Sentence:   1,
		Evidence:   reason,
	}, nil
}

func (e *Engine) complete(ctx context.Context, c *book.Chunk, messages []provider.Message) (*book.TransformedChunk, string, error) {
	text, _, err := e.provider.Complete(ctx, messages, e.model, e.temp, provider.ResponseFormatJSON, e.maxTokens)
	if err != nil {
		return nil, "", err
	}

	sentences, err := parseIndexedSentences(text)
	if err != nil {
		return nil, text, fmt.Errorf("%w: %v", errAlignmentParse, err)
	}

	return &book.TransformedChunk{ChunkID: c.ID, Sentences: sentences}, text, nil
}

var errAlignmentParse = errors.New("transform: could not parse indexed sentence map")

func parseIndexedSentences(text string) (map[int]string, error) {
	var raw map[string]string
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}
	out := make(map[int]string, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("non-numeric sentence index %q", k)
		}
		out[idx] = v
	}
	return out, nil
}
