package transform

import "github.com/jsnhff/regender/pkg/book"

// rulesForSpec describes, for the system preamble, how a TransformKind
// rewrites pronouns, titles, gendered nouns, and names (§4.3 "Transformation
// rules"). Name rewrites themselves are resolved per-character in the
// character context, not here.
func rulesForSpec(kind book.TransformKind) string {
	switch kind {
	case book.AllFemale:
		return "Rewrite every character as female, regardless of their original gender. " +
			"All male pronouns (he/him/his) become female (she/her/her). Titles such as Mr. become Ms. or Mrs. " +
			"Gendered nouns take their feminine form (actor -> actress, waiter -> waitress). " +
			"Rewrite each character's name per the character context below."
	case book.AllMale:
		return "Rewrite every character as male, regardless of their original gender. " +
			"All female pronouns (she/her/her) become male (he/him/his). Titles such as Ms./Mrs. become Mr. " +
			"Gendered nouns take their masculine form (actress -> actor, waitress -> waiter). " +
			"Rewrite each character's name per the character context below."
	case book.GenderSwap:
		return "Flip each character's original gender: a character shown as female in the character context " +
			"below becomes male, and one shown as male becomes female. Nonbinary characters are left unchanged. " +
			"Rewrite each character's pronouns, titles, and name per the character context below; these mappings " +
			"are per-character, not a single global swap."
	case book.Nonbinary:
		return "Rewrite every character's pronouns to singular they/them/their, with subject-verb agreement " +
			"corrected accordingly (e.g. \"they was\" -> \"they were\"). Titles such as Mr./Mrs./Ms. become Mx. " +
			"Gendered nouns take a neutral form (actor/actress -> actor, waiter/waitress -> server)."
	case book.Custom:
		return "Apply only the name, pronoun, and title mappings given in the character context below. " +
			"Any character not listed there is left completely unchanged."
	default:
		return "Leave every character's name, pronouns, and titles unchanged."
	}
}
