// Package render turns a transformed Book back into plain text (§6 "Sink").
// Rendering is a pure function of the Book: it never consults a provider
// and never mutates its argument.
package render

import (
	"fmt"
	"strings"

	"github.com/jsnhff/regender/pkg/book"
)

// Render joins b's chapters into a single text document: sentences within
// a paragraph are space-joined, paragraphs within a chapter are separated
// by a blank line, and chapters are separated by a heading line plus a
// blank line.
func Render(b *book.Book) string {
	var out strings.Builder
	for ci, ch := range b.Chapters {
		if ci > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(chapterHeading(ch))
		out.WriteString("\n\n")
		for pi, p := range ch.Paragraphs {
			if pi > 0 {
				out.WriteString("\n\n")
			}
			out.WriteString(strings.Join(p.Sentences, " "))
		}
	}
	return out.String()
}

func chapterHeading(ch *book.Chapter) string {
	if ch.Title == "" {
		return fmt.Sprintf("Chapter %d", ch.Number)
	}
	return fmt.Sprintf("Chapter %d: %s", ch.Number, ch.Title)
}
