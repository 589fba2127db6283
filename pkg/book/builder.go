package book

// Builder constructs a Book in memory without a real text parser. It is
// used by tests and by callers that already have structured chapter/
// paragraph data (e.g., from a prior JSON-persisted Book).
type Builder struct {
	b *Book
}

// NewBuilder starts a Book with the given metadata.
func NewBuilder(title, author string) *Builder {
	return &Builder{b: &Book{Title: title, Author: author}}
}

// Chapter appends a chapter and returns its index for AddParagraph calls.
func (bd *Builder) Chapter(number int, title string) int {
	bd.b.Chapters = append(bd.b.Chapters, &Chapter{Number: number, Title: title})
	return len(bd.b.Chapters) - 1
}

// AddParagraph appends a paragraph of sentences to the chapter at chapterIdx.
func (bd *Builder) AddParagraph(chapterIdx int, sentences ...string) {
	ch := bd.b.Chapters[chapterIdx]
	ch.Paragraphs = append(ch.Paragraphs, &Paragraph{Sentences: sentences})
}

// Build returns the constructed Book.
func (bd *Builder) Build() *Book {
	return bd.b
}
