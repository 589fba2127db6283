package book

import (
	"fmt"
	"sort"
	"strings"
)

// TransformKind selects the target gender schema applied to a book.
type TransformKind string

const (
	AllFemale  TransformKind = "ALL_FEMALE"
	AllMale    TransformKind = "ALL_MALE"
	GenderSwap TransformKind = "GENDER_SWAP"
	Nonbinary  TransformKind = "NONBINARY"
	Custom     TransformKind = "CUSTOM"
)

// CustomMapping is a per-character override used when Kind is Custom.
type CustomMapping struct {
	NewName   string
	NewGender Gender
}

// TransformSpec describes the target gender representation for a book.
type TransformSpec struct {
	Kind   TransformKind
	Custom map[string]CustomMapping // canonical name -> override
}

// Resolve computes the target gender/pronouns for a character under this
// spec. Characters with Gender == GenderUnknown are left unchanged
// regardless of Kind, per spec.md's default behavior for GENDER_SWAP (and,
// by the same reasoning, for every other schema): a schema can only
// reassign a gender it is confident the character actually has.
func (s TransformSpec) Resolve(c *Character) (Gender, Pronouns) {
	if c.Gender == GenderUnknown {
		return c.Gender, c.Pronouns
	}

	switch s.Kind {
	case AllFemale:
		return GenderFemale, DefaultPronouns(GenderFemale)
	case AllMale:
		return GenderMale, DefaultPronouns(GenderMale)
	case Nonbinary:
		return GenderNonbinary, DefaultPronouns(GenderNonbinary)
	case GenderSwap:
		switch c.Gender {
		case GenderMale:
			return GenderFemale, DefaultPronouns(GenderFemale)
		case GenderFemale:
			return GenderMale, DefaultPronouns(GenderMale)
		default:
			return c.Gender, c.Pronouns
		}
	case Custom:
		if s.Custom != nil {
			if m, ok := s.Custom[c.CanonicalName]; ok && m.NewGender != "" {
				return m.NewGender, DefaultPronouns(m.NewGender)
			}
		}
		return c.Gender, c.Pronouns
	default:
		return c.Gender, c.Pronouns
	}
}

// TargetName returns the replacement canonical name for a character under
// this spec. Only CUSTOM schemas with an explicit NewName rename a
// character; every other schema preserves names and only changes
// gendered language (pronouns, titles, gendered nouns).
func (s TransformSpec) TargetName(c *Character) string {
	if s.Kind == Custom && s.Custom != nil {
		if m, ok := s.Custom[c.CanonicalName]; ok && m.NewName != "" {
			return m.NewName
		}
	}
	return c.CanonicalName
}

// CharacterContext is the textual "who -> who" summary injected into every
// transform prompt so the model has a deterministic, shared view of the
// target cast.
type CharacterContext string

// BuildCharacterContext renders a CharacterContext from a frozen registry
// and transform spec, one line per character sorted by canonical name.
// reg.List() has no defined order (map iteration), so the sort is what
// makes this string byte-identical across calls and across runs for the
// same (registry, spec) — every caller (the transform engine, the quality
// controller) depends on that to build identical prompts.
func BuildCharacterContext(reg *CharacterRegistry, spec TransformSpec) CharacterContext {
	characters := reg.List()
	sort.Slice(characters, func(i, j int) bool {
		return characters[i].CanonicalName < characters[j].CanonicalName
	})

	var sb strings.Builder
	for _, c := range characters {
		gender, pronouns := spec.Resolve(c)
		name := spec.TargetName(c)
		if name == c.CanonicalName {
			fmt.Fprintf(&sb, "%s -> gender=%s pronouns=%s/%s/%s\n",
				c.CanonicalName, gender, pronouns.Subject, pronouns.Object, pronouns.Possessive)
		} else {
			fmt.Fprintf(&sb, "%s -> %s, gender=%s pronouns=%s/%s/%s\n",
				c.CanonicalName, name, gender, pronouns.Subject, pronouns.Object, pronouns.Possessive)
		}
	}
	return CharacterContext(sb.String())
}
