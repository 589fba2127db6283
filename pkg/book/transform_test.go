package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryWithManyCharacters(t *testing.T) *CharacterRegistry {
	t.Helper()
	reg := NewCharacterRegistry()
	names := []string{"Zelda", "Mary", "Anne", "John", "Elizabeth", "Beth", "William"}
	for i, name := range names {
		c := newCandidate(name, GenderMale)
		if i%2 == 0 {
			c.Gender = GenderFemale
			c.Pronouns = DefaultPronouns(GenderFemale)
		}
		require.NoError(t, reg.Merge(c))
	}
	reg.Freeze()
	return reg
}

// TestBuildCharacterContextDeterministic covers SPEC_FULL.md §8 Invariant
// #6: the context string is byte-identical across repeated calls on the
// same (registry, spec), which requires a stable character order despite
// CharacterRegistry.List's unspecified map-iteration order.
func TestBuildCharacterContextDeterministic(t *testing.T) {
	reg := registryWithManyCharacters(t)
	spec := TransformSpec{Kind: AllFemale}

	first := BuildCharacterContext(reg, spec)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, BuildCharacterContext(reg, spec))
	}
}

func TestBuildCharacterContextSortedByCanonicalName(t *testing.T) {
	reg := NewCharacterRegistry()
	require.NoError(t, reg.Merge(newCandidate("Zelda", GenderFemale)))
	require.NoError(t, reg.Merge(newCandidate("Anne", GenderFemale)))
	require.NoError(t, reg.Merge(newCandidate("Mary", GenderFemale)))
	reg.Freeze()

	ctx := string(BuildCharacterContext(reg, TransformSpec{Kind: AllFemale}))
	annePos := indexOf(ctx, "Anne")
	maryPos := indexOf(ctx, "Mary")
	zeldaPos := indexOf(ctx, "Zelda")

	assert.True(t, annePos < maryPos)
	assert.True(t, maryPos < zeldaPos)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
