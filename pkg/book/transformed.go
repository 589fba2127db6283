package book

import "time"

// TransformationMeta records how a TransformedBook was produced, matching
// the `{type, model, timestamp, score}` metadata block in §6.
type TransformationMeta struct {
	Type      TransformKind
	Model     string
	Timestamp time.Time
	Score     float64
}

// TransformedBook is a Book with identical chapter/paragraph structure to
// its source — the structural-preservation invariant in §3 — plus the
// transformation metadata block the sink emits alongside it.
type TransformedBook struct {
	*Book
	Transformation TransformationMeta
}

// CloneStructure copies a Book's chapter/paragraph/sentence structure into
// a fresh Book, ready for a transform engine to overwrite sentences in
// place. Copying first and overwriting only successfully transformed
// sentences makes the chunk-level passthrough fallback in §4.3 the default
// rather than something callers must special-case.
func CloneStructure(b *Book) *Book {
	chapters := make([]*Chapter, len(b.Chapters))
	for ci, ch := range b.Chapters {
		paragraphs := make([]*Paragraph, len(ch.Paragraphs))
		for pi, p := range ch.Paragraphs {
			sentences := make([]string, len(p.Sentences))
			copy(sentences, p.Sentences)
			paragraphs[pi] = &Paragraph{Sentences: sentences}
		}
		chapters[ci] = &Chapter{Number: ch.Number, Title: ch.Title, Paragraphs: paragraphs}
	}
	return &Book{Title: b.Title, Author: b.Author, Source: b.Source, Format: b.Format, Chapters: chapters}
}
