package quality

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jsnhff/regender/pkg/book"
	"github.com/jsnhff/regender/pkg/provider"
)

const correctionJSONInstructionFmt = "Return a JSON object whose keys are the sentence numbers above, as strings, " +
	"and whose values are the corrected sentences. Include every index from 1 to %d exactly once, in the same " +
	"order and count as the input. Fix only the listed defects; leave everything else unchanged. Respond with the " +
	"JSON object only, no surrounding prose."

// buildCorrectionPrompt assembles a focused re-transform request for the
// paragraphs in c that a detector flagged, describing what is wrong with
// each (§4.4 "Correction").
func buildCorrectionPrompt(c *book.Chunk, charContext book.CharacterContext, spec book.TransformSpec, defects []book.Defect) []provider.Message {
	var system strings.Builder
	system.WriteString(rulesForSpec(spec.Kind))
	system.WriteString("\n\nCharacter context (original -> target):\n")
	system.WriteString(string(charContext))
	system.WriteString("\nDefects found in this passage:\n")
	system.WriteString(describeDefects(defects))
	system.WriteString("\n")
	system.WriteString(fmt.Sprintf(correctionJSONInstructionFmt, c.Len()))

	return []provider.Message{
		{Role: provider.RoleSystem, Content: system.String()},
		{Role: provider.RoleUser, Content: numberedList(c)},
	}
}

func numberedList(c *book.Chunk) string {
	var b strings.Builder
	for i, s := range c.Sentences {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, s)
	}
	return b.String()
}

func describeDefects(defects []book.Defect) string {
	sorted := append([]book.Defect{}, defects...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sentence < sorted[j].Sentence })

	var b strings.Builder
	for _, d := range sorted {
		fmt.Fprintf(&b, "- %s: %q\n", describeDefectKind(d.Kind), d.Evidence)
	}
	return b.String()
}

func describeDefectKind(k book.DefectKind) string {
	switch k {
	case book.DefectPronounMismatch:
		return "pronoun does not match the target gender"
	case book.DefectTitleMismatch:
		return "title does not match the target gender"
	case book.DefectNamedGender:
		return "a named character is referred to with the wrong pronoun"
	case book.DefectAlignmentFallback:
		return "this passage was never transformed and still needs rewriting"
	case book.DefectGrammar:
		return "subject-verb agreement is inconsistent with the rewritten pronoun"
	default:
		return string(k)
	}
}

// rulesForSpec restates, in shorter wording, the rewrite rules of
// pkg/transform's system preamble so a correction pass reinforces the same
// rules as the original transform.
func rulesForSpec(kind book.TransformKind) string {
	switch kind {
	case book.AllFemale:
		return "Every character in this book is female. Male pronouns (he/him/his) must read as female " +
			"(she/her/her), and titles such as Mr. must read as Ms. or Mrs."
	case book.AllMale:
		return "Every character in this book is male. Female pronouns (she/her/her) must read as male " +
			"(he/him/his), and titles such as Ms./Mrs. must read as Mr."
	case book.GenderSwap:
		return "Each character's gender is flipped from their original; apply the per-character mapping in the " +
			"character context below, not a single global swap."
	case book.Nonbinary:
		return "Every character's pronouns are singular they/them/their, with subject-verb agreement corrected " +
			"accordingly (they were, not they was). Titles read as Mx."
	case book.Custom:
		return "Apply only the name, pronoun, and title mappings given in the character context below."
	default:
		return "Leave every character's name, pronouns, and titles unchanged."
	}
}
