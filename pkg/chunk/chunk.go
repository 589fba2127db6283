// Package chunk partitions a parsed book into token-bounded chunks for the
// transform engine (§4.3): chunks never cross chapter boundaries, a
// paragraph is never split, and each chunk carries a contiguous run of
// 1-based sentence indices.
package chunk

import "github.com/jsnhff/regender/pkg/book"

// TokenCounter estimates the token cost of a string for a given model. A
// provider.Provider satisfies this directly; tests can supply a cheaper
// stand-in instead of constructing a real provider.
type TokenCounter interface {
	CountTokens(text string, model string) int
}

// Budget controls how large a chunk is allowed to grow before it closes.
type Budget struct {
	Model string
	// ContextWindow is the target model's total token window.
	ContextWindow int
	// Fraction is the share of ContextWindow a single chunk may occupy,
	// leaving room for the character context and completion. Use
	// DefaultFraction to pick one from the context window size alone.
	Fraction float64
}

// DefaultFraction returns 0.5 for small-context models and 0.35 for large-
// context ones, per §4.3's "50% for small-context, 30-40% for large".
func DefaultFraction(contextWindow int) float64 {
	if contextWindow >= 100_000 {
		return 0.35
	}
	return 0.5
}

// target returns the absolute token budget for a single chunk.
func (b Budget) target() int {
	t := int(float64(b.ContextWindow) * b.Fraction)
	if t <= 0 {
		t = 1
	}
	return t
}

// Chunker builds book.Chunk values from a Book.
type Chunker struct {
	counter TokenCounter
}

// New creates a Chunker that estimates token costs with counter.
func New(counter TokenCounter) *Chunker {
	return &Chunker{counter: counter}
}

// Chunk partitions b into a sequence of chunks honoring budget. Chunks are
// returned in document order: chapter order, then chunk order within a
// chapter.
func (c *Chunker) Chunk(b *book.Book, budget Budget) []*book.Chunk {
	target := budget.target()
	var chunks []*book.Chunk

	for chapterIdx, chapter := range b.Chapters {
		var current *book.Chunk

		for paraIdx, para := range chapter.Paragraphs {
			tokens := make([]int, len(para.Sentences))
			paraTokens := 0
			for si, s := range para.Sentences {
				t := c.counter.CountTokens(s, budget.Model)
				tokens[si] = t
				paraTokens += t
			}

			if current != nil && current.Len() > 0 && current.TokenCount+paraTokens > target {
				chunks = append(chunks, current)
				current = nil
			}
			if current == nil {
				current = book.NewChunk(chapterIdx)
			}

			for si, s := range para.Sentences {
				current.Add(book.SentenceRef{ChapterIdx: chapterIdx, ParaIdx: paraIdx, SentenceIdx: si}, s, tokens[si])
			}
		}

		if current != nil && current.Len() > 0 {
			chunks = append(chunks, current)
		}
	}

	return chunks
}
