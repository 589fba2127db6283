package analyzer

import (
	"fmt"
	"strings"

	"github.com/jsnhff/regender/pkg/provider"
)

const systemPrompt = `You are extracting the cast of characters from a passage of a novel.

Return a JSON array where each element has exactly these fields:
  name           - the character's most complete name as it appears in the text
  gender         - one of "male", "female", "nonbinary", "unknown"
  pronouns       - {"subject","object","possessive"}, e.g. {"subject":"she","object":"her","possessive":"her"}
  titles         - array of honorifics observed for this character (e.g. "Mrs.", "Dr.")
  aliases        - array of other names, nicknames, or descriptions used for this character
  importance     - one of "main", "supporting", "minor"
  confidence     - your confidence in the gender assignment, 0.0 to 1.0
  first_seen_hint - your best estimate, 0.0 to 1.0, of how far into the passage this character first appears

Rules:
  1. Include every named character, however minor.
  2. Never merge family members who have different given names, even if they share a surname or title.
  3. If gender cannot be inferred from the text, use "unknown" rather than guessing.

Respond with the JSON array only, no surrounding prose.`

// buildExtractionPrompt turns a sampled window of paragraphs into the
// extraction request sent to the provider.
func buildExtractionPrompt(w window) []provider.Message {
	var passage strings.Builder
	for i, p := range w.paragraphs {
		if i > 0 {
			passage.WriteString("\n\n")
		}
		passage.WriteString(p.text)
	}

	return []provider.Message{
		{Role: provider.RoleSystem, Content: systemPrompt},
		{Role: provider.RoleUser, Content: fmt.Sprintf("Passage (normalized position %.2f to %.2f of the book):\n\n%s", w.start, w.end, passage.String())},
	}
}
