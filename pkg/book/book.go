// Package book defines the in-memory representation of a parsed book and
// the gender-transform vocabulary (characters, transform specs, chunks)
// that the rest of the pipeline operates on.
package book

// Book is an ordered sequence of chapters plus source metadata. A Book is
// produced by an external parser (out of scope for this module) and is
// treated as immutable once constructed.
type Book struct {
	Title    string
	Author   string
	Source   string
	Format   string
	Chapters []*Chapter
}

// Chapter is an ordered sequence of paragraphs.
type Chapter struct {
	Number int
	Title  string
	Paragraphs []*Paragraph
}

// Paragraph is the atomic unit of structural preservation: the transformed
// book must contain the same number of paragraphs, in the same chapters,
// in the same order, as the source book.
type Paragraph struct {
	Sentences []string
}

// TotalSentences returns the number of sentences in the paragraph.
func (p *Paragraph) TotalSentences() int {
	return len(p.Sentences)
}

// WalkParagraphs calls fn for every paragraph in the book in document
// order, passing the owning chapter index and paragraph index within that
// chapter.
func (b *Book) WalkParagraphs(fn func(chapterIdx, paraIdx int, p *Paragraph)) {
	for ci, ch := range b.Chapters {
		for pi, p := range ch.Paragraphs {
			fn(ci, pi, p)
		}
	}
}

// ParagraphCount returns the total number of paragraphs in the book.
func (b *Book) ParagraphCount() int {
	n := 0
	for _, ch := range b.Chapters {
		n += len(ch.Paragraphs)
	}
	return n
}
