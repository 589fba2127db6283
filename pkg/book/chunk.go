package book

import "github.com/google/uuid"

// SentenceRef locates a single sentence within a book.
type SentenceRef struct {
	ChapterIdx  int
	ParaIdx     int
	SentenceIdx int
}

// Chunk is a contiguous slice of a book sized to fit within a provider's
// context window. Chunks never cross chapter boundaries. Sentences are
// numbered 1-based within the chunk to support the numbered-sentence
// transform protocol (§4.3).
type Chunk struct {
	ID         uuid.UUID
	ChapterIdx int
	// Refs[i] is the source location of sentence i+1 (1-based numbering).
	Refs []SentenceRef
	// Sentences[i] is the text of sentence i+1.
	Sentences   []string
	TokenCount  int
}

// NewChunk allocates a chunk with a fresh ID.
func NewChunk(chapterIdx int) *Chunk {
	return &Chunk{ID: uuid.New(), ChapterIdx: chapterIdx}
}

// Add appends a sentence and its source location to the chunk.
func (c *Chunk) Add(ref SentenceRef, sentence string, tokens int) {
	c.Refs = append(c.Refs, ref)
	c.Sentences = append(c.Sentences, sentence)
	c.TokenCount += tokens
}

// Len returns the number of sentences in the chunk.
func (c *Chunk) Len() int { return len(c.Sentences) }

// Indices returns the set of valid 1-based sentence indices for this chunk.
func (c *Chunk) Indices() []int {
	idx := make([]int, len(c.Sentences))
	for i := range idx {
		idx[i] = i + 1
	}
	return idx
}

// TransformedChunk maps 1-based input sentence index to transformed text.
// The alignment invariant requires that the key set equal c.Indices()
// exactly for the Chunk that produced it.
type TransformedChunk struct {
	ChunkID  uuid.UUID
	Sentences map[int]string
}

// Aligned reports whether t's key set exactly matches source's indices.
func (t *TransformedChunk) Aligned(source *Chunk) bool {
	if len(t.Sentences) != source.Len() {
		return false
	}
	for _, idx := range source.Indices() {
		if _, ok := t.Sentences[idx]; !ok {
			return false
		}
	}
	return true
}
