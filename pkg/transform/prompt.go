package transform

import (
	"fmt"
	"strings"

	"github.com/jsnhff/regender/pkg/book"
	"github.com/jsnhff/regender/pkg/chunk"
	"github.com/jsnhff/regender/pkg/provider"
)

const jsonInstructionFmt = "Return a JSON object whose keys are the sentence numbers above, as strings, and whose " +
	"values are the transformed sentences. Include every index from 1 to %d exactly once, in the same order and " +
	"count as the input. Do not add, remove, merge, split, or renumber sentences. Respond with the JSON object only, " +
	"no surrounding prose."

const alignmentReminderFmt = "Your previous reply did not include exactly one transformed sentence per input index. " +
	"Reply again with a JSON object that has exactly one key for every index from 1 to %d, matching the input exactly."

// buildTransformPrompt assembles the numbered-sentence protocol request for
// a single chunk (§4.3): system preamble, character context, the numbered
// sentence list, and the JSON response instruction.
func buildTransformPrompt(c *book.Chunk, charContext book.CharacterContext, spec book.TransformSpec) []provider.Message {
	var system strings.Builder
	system.WriteString(rulesForSpec(spec.Kind))
	system.WriteString("\n\nCharacter context (original -> target):\n")
	system.WriteString(string(charContext))
	system.WriteString("\n")
	system.WriteString(fmt.Sprintf(jsonInstructionFmt, c.Len()))

	return []provider.Message{
		{Role: provider.RoleSystem, Content: system.String()},
		{Role: provider.RoleUser, Content: chunk.NumberedList(c)},
	}
}

// withAlignmentReminder appends a stricter follow-up turn to messages after
// an alignment violation, for the single retry §4.3 allows.
func withAlignmentReminder(messages []provider.Message, previousReply string, n int) []provider.Message {
	out := append([]provider.Message{}, messages...)
	out = append(out,
		provider.Message{Role: provider.RoleAssistant, Content: previousReply},
		provider.Message{Role: provider.RoleUser, Content: fmt.Sprintf(alignmentReminderFmt, n)},
	)
	return out
}
