package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jsnhff/regender/pkg/book"
)

func wordPattern(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)
}

var (
	malePronouns   = wordPattern("he", "him", "his", "himself")
	femalePronouns = wordPattern("she", "her", "hers", "herself")
	maleTitles     = wordPattern(`Mr\.`, "Sir")
	femaleTitles   = wordPattern(`Mrs\.`, `Ms\.`, "Miss", "Madam")
	theyIsPattern  = regexp.MustCompile(`(?i)\bthey\s+(is|was|has)\b`)
)

func pronounWords(g book.Gender) []string {
	switch g {
	case book.GenderMale:
		return []string{"he", "him", "his", "himself"}
	case book.GenderFemale:
		return []string{"she", "her", "hers", "herself"}
	case book.GenderNonbinary:
		return []string{"they", "them", "their", "theirs", "themself", "themselves"}
	default:
		return nil
	}
}

// sentenceLoc is a single sentence with its location in the book, used to
// scan text defects without re-parsing the source.
type sentenceLoc struct {
	ChapterIdx  int
	ParaIdx     int
	SentenceIdx int
	Text        string
}

func flattenSentences(b *book.Book) []sentenceLoc {
	var out []sentenceLoc
	b.WalkParagraphs(func(ci, pi int, p *book.Paragraph) {
		for si, s := range p.Sentences {
			out = append(out, sentenceLoc{ChapterIdx: ci, ParaIdx: pi, SentenceIdx: si, Text: s})
		}
	})
	return out
}

// DetectAll runs every text-level detector from §4.4 over b and returns the
// combined defect list. It does not include alignment-fallback defects;
// those are recorded by the TransformEngine and carried separately since
// they aren't a text pattern to scan for.
func DetectAll(b *book.Book, reg *book.CharacterRegistry, spec book.TransformSpec) []book.Defect {
	var defects []book.Defect
	defects = append(defects, detectGlobalMismatches(b, spec.Kind)...)
	defects = append(defects, detectNamedCharacterMismatches(b, reg, spec)...)
	defects = append(defects, detectGrammar(b, spec.Kind)...)
	return defects
}

// detectGlobalMismatches flags pronouns/titles inconsistent with a single,
// book-wide target gender. It only applies to schemas with one global
// target (ALL_FEMALE, ALL_MALE, NONBINARY); GENDER_SWAP and CUSTOM assign
// gender per character, so only detectNamedCharacterMismatches applies to
// those.
func detectGlobalMismatches(b *book.Book, kind book.TransformKind) []book.Defect {
	var forbiddenPronouns, forbiddenTitles *regexp.Regexp
	switch kind {
	case book.AllFemale:
		forbiddenPronouns, forbiddenTitles = malePronouns, maleTitles
	case book.AllMale:
		forbiddenPronouns, forbiddenTitles = femalePronouns, femaleTitles
	case book.Nonbinary:
		forbiddenPronouns = wordPattern("he", "him", "his", "himself", "she", "her", "hers", "herself")
		forbiddenTitles = wordPattern(`Mr\.`, `Mrs\.`, `Ms\.`, "Miss", "Sir", "Madam")
	default:
		return nil
	}

	var defects []book.Defect
	for _, s := range flattenSentences(b) {
		if forbiddenPronouns.MatchString(s.Text) {
			defects = append(defects, book.Defect{
				Kind: book.DefectPronounMismatch, ChapterIdx: s.ChapterIdx, ParaIdx: s.ParaIdx,
				Sentence: s.SentenceIdx + 1, Evidence: s.Text,
			})
		}
		if forbiddenTitles.MatchString(s.Text) {
			defects = append(defects, book.Defect{
				Kind: book.DefectTitleMismatch, ChapterIdx: s.ChapterIdx, ParaIdx: s.ParaIdx,
				Sentence: s.SentenceIdx + 1, Evidence: s.Text,
			})
		}
	}
	return defects
}

// mentionWindow is how many sentences after a character's name mention are
// scanned for pronouns inconsistent with that character's target gender.
const mentionWindow = 4

// detectNamedCharacterMismatches flags a character mentioned by name
// followed, within mentionWindow sentences, by a pronoun of a different
// gender than the spec assigns them. Unlike detectGlobalMismatches this
// applies to every TransformKind, since it checks each character against
// its own resolved target rather than one book-wide target.
func detectNamedCharacterMismatches(b *book.Book, reg *book.CharacterRegistry, spec book.TransformSpec) []book.Defect {
	sentences := flattenSentences(b)
	var defects []book.Defect

	for _, c := range reg.List() {
		target, _ := spec.Resolve(c)
		words := pronounWords(target)
		if len(words) == 0 {
			continue
		}
		ownWords := make(map[string]struct{}, len(words))
		for _, w := range words {
			ownWords[strings.ToLower(w)] = struct{}{}
		}
		forbidden := otherPronounWords(target)
		if forbidden == nil {
			continue
		}

		for i, s := range sentences {
			if !mentionsCharacter(s.Text, c) {
				continue
			}
			end := i + mentionWindow
			if end > len(sentences) {
				end = len(sentences)
			}
			for j := i; j < end; j++ {
				if forbidden.MatchString(sentences[j].Text) {
					defects = append(defects, book.Defect{
						Kind:       book.DefectNamedGender,
						ChapterIdx: sentences[j].ChapterIdx,
						ParaIdx:    sentences[j].ParaIdx,
						Sentence:   sentences[j].SentenceIdx + 1,
						Evidence:   fmt.Sprintf("%s: %s", c.CanonicalName, sentences[j].Text),
					})
				}
			}
		}
	}
	return defects
}

// otherPronounWords returns a pattern matching every pronoun set except
// target's own, or nil if target has no resolvable pronoun set.
func otherPronounWords(target book.Gender) *regexp.Regexp {
	var words []string
	for _, g := range []book.Gender{book.GenderMale, book.GenderFemale, book.GenderNonbinary} {
		if g == target {
			continue
		}
		words = append(words, pronounWords(g)...)
	}
	if len(words) == 0 {
		return nil
	}
	return wordPattern(words...)
}

func mentionsCharacter(text string, c *book.Character) bool {
	for v := range c.Variants {
		if v != "" && strings.Contains(text, v) {
			return true
		}
	}
	return false
}

// detectGrammar flags simple subject-verb disagreement introduced by a
// NONBINARY rewrite ("they is" rather than "they were"). Only NONBINARY
// introduces the "they" subject this heuristic checks for.
func detectGrammar(b *book.Book, kind book.TransformKind) []book.Defect {
	if kind != book.Nonbinary {
		return nil
	}
	var defects []book.Defect
	for _, s := range flattenSentences(b) {
		if theyIsPattern.MatchString(s.Text) {
			defects = append(defects, book.Defect{
				Kind: book.DefectGrammar, ChapterIdx: s.ChapterIdx, ParaIdx: s.ParaIdx,
				Sentence: s.SentenceIdx + 1, Evidence: s.Text,
			})
		}
	}
	return defects
}
