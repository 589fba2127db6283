package chunk

import (
	"strconv"
	"strings"

	"github.com/jsnhff/regender/pkg/book"
)

// NumberedList renders a chunk's sentences as the "1. <sentence>\n2.
// <sentence>..." block the transform protocol sends to the model.
func NumberedList(c *book.Chunk) string {
	var b strings.Builder
	for i, s := range c.Sentences {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(s)
	}
	return b.String()
}
