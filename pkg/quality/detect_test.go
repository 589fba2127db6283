package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsnhff/regender/pkg/book"
	"github.com/jsnhff/regender/pkg/testutils"
)

func registryFor(t *testing.T) *book.CharacterRegistry {
	t.Helper()
	reg := book.NewCharacterRegistry()
	for _, c := range testutils.CharacterFixtures() {
		require.NoError(t, reg.Merge(c))
	}
	reg.Freeze()
	return reg
}

func TestDetectGlobalMismatchesFlagsWrongPronoun(t *testing.T) {
	b := testutils.SmallBook()
	defects := detectGlobalMismatches(b, book.AllFemale)

	require.NotEmpty(t, defects)
	found := false
	for _, d := range defects {
		if d.Kind == book.DefectPronounMismatch && d.Evidence == "John smiled and embraced his sister." {
			found = true
		}
	}
	assert.True(t, found, "expected a pronoun-mismatch defect for the unconverted \"his\"")
}

func TestDetectGlobalMismatchesIgnoresNonTargetSchema(t *testing.T) {
	b := testutils.SmallBook()
	assert.Nil(t, detectGlobalMismatches(b, book.GenderSwap))
	assert.Nil(t, detectGlobalMismatches(b, book.Custom))
}

func TestDetectNamedCharacterMismatchFlagsWrongPronounNearMention(t *testing.T) {
	b := testutils.SmallBook()
	reg := registryFor(t)

	defects := detectNamedCharacterMismatches(b, reg, book.TransformSpec{Kind: book.AllFemale})

	require.NotEmpty(t, defects)
	for _, d := range defects {
		assert.Equal(t, book.DefectNamedGender, d.Kind)
	}
}

func TestDetectGrammarFlagsTheyIsUnderNonbinary(t *testing.T) {
	bd := book.NewBuilder("T", "A")
	ch := bd.Chapter(1, "")
	bd.AddParagraph(ch, "They is happy today.")
	b := bd.Build()

	defects := detectGrammar(b, book.Nonbinary)
	require.Len(t, defects, 1)
	assert.Equal(t, book.DefectGrammar, defects[0].Kind)

	assert.Empty(t, detectGrammar(b, book.AllFemale))
}

func TestDetectAllCombinesDetectors(t *testing.T) {
	b := testutils.SmallBook()
	reg := registryFor(t)

	defects := DetectAll(b, reg, book.TransformSpec{Kind: book.AllFemale})
	assert.NotEmpty(t, defects)
}
