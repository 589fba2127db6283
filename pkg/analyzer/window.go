package analyzer

import "github.com/jsnhff/regender/pkg/book"

// paragraphRef is a flattened reference to a single paragraph's text,
// carrying its chapter index and its paragraph index within that chapter.
type paragraphRef struct {
	chapterIdx int
	paraIdx    int
	text       string
}

// window is a contiguous run of paragraphs selected for one extraction call,
// plus the normalized [start,end] range it was sampled from.
type window struct {
	start, end float64
	paragraphs []paragraphRef
}

// flattenParagraphs lists every paragraph in document order with its
// sentences joined into a single passage string.
func flattenParagraphs(b *book.Book) []paragraphRef {
	var out []paragraphRef
	b.WalkParagraphs(func(chapterIdx, paraIdx int, p *book.Paragraph) {
		out = append(out, paragraphRef{
			chapterIdx: chapterIdx,
			paraIdx:    paraIdx,
			text:       joinSentences(p.Sentences),
		})
	})
	return out
}

func joinSentences(sentences []string) string {
	out := ""
	for i, s := range sentences {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

// selectWindow slices all to the normalized [w.Start, w.End) paragraph
// range, then greedily trims it to fit budget tokens, never dropping a
// paragraph from the middle of the selection and never crossing the
// boundary a paragraph alone cannot fit in (it is included anyway, matching
// the chunker's own oversized-paragraph rule in §4.3).
func selectWindow(all []paragraphRef, w Window, budget int, countTokens func(string) int) window {
	n := len(all)
	if n == 0 {
		return window{start: w.Start, end: w.End}
	}

	startIdx := int(w.Start * float64(n))
	endIdx := int(w.End * float64(n))
	if endIdx > n {
		endIdx = n
	}
	if startIdx >= endIdx {
		return window{start: w.Start, end: w.End}
	}

	slice := all[startIdx:endIdx]
	selected := make([]paragraphRef, 0, len(slice))
	tokens := 0
	for _, p := range slice {
		t := countTokens(p.text)
		if len(selected) > 0 && tokens+t > budget {
			break
		}
		selected = append(selected, p)
		tokens += t
	}

	return window{start: w.Start, end: w.End, paragraphs: selected}
}
