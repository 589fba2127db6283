package analyzer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsnhff/regender/pkg/book"
	"github.com/jsnhff/regender/pkg/provider"
	"github.com/jsnhff/regender/pkg/ratelimit"
	"github.com/jsnhff/regender/pkg/testutils"
)

const twoCharacterJSON = `[
	{"name":"Mary","gender":"female","titles":[],"aliases":[],"importance":"main","confidence":0.95,"first_seen_hint":0.1},
	{"name":"John","gender":"male","titles":[],"aliases":["her brother John"],"importance":"main","confidence":0.9,"first_seen_hint":0.2}
]`

func TestAnalyzeSingleCallWhenBookFitsContext(t *testing.T) {
	mock := testutils.NewMockProvider(twoCharacterJSON)
	a := New(mock, Options{Model: "mock-model"})

	reg, err := a.Analyze(context.Background(), testutils.SmallBook())
	require.NoError(t, err)

	assert.Equal(t, 1, mock.Calls, "a book that fits in the context budget should take the single-call path")
	assert.True(t, reg.Frozen())
	assert.Equal(t, 2, reg.Count())

	mary, ok := reg.Get("Mary")
	require.True(t, ok)
	assert.Equal(t, book.GenderFemale, mary.Gender)
	assert.Equal(t, "she", mary.Pronouns.Subject)

	john, ok := reg.Get("John")
	require.True(t, ok)
	assert.Equal(t, book.GenderMale, john.Gender)
}

func TestAnalyzeUnknownGenderDefaultsSafely(t *testing.T) {
	mock := testutils.NewMockProvider(`[{"name":"The Stranger","gender":"unclear","importance":"minor","confidence":0.2,"first_seen_hint":0.5}]`)
	a := New(mock, Options{Model: "mock-model"})

	reg, err := a.Analyze(context.Background(), testutils.SmallBook())
	require.NoError(t, err)

	c, ok := reg.Get("The Stranger")
	require.True(t, ok)
	assert.Equal(t, book.GenderUnknown, c.Gender)
}

// positionBandCharacters returns the five names seeded one per stratified
// sampling window by positionBandBook, in window order.
func positionBandCharacters() []string {
	return []string{"Aria", "Bram", "Cleo", "Dorian", "Elowen"}
}

// positionBandBook builds a 20-paragraph book with a uniquely named
// character planted as the first paragraph of each of the five
// DefaultWindows bands (indices 0, 4, 8, 12, 15 for n=20), so that even the
// tiny per-window token budget forced by a small mock context window keeps
// that paragraph in the sampled window. Every other paragraph is unnamed
// filler, so each window's extraction call should recover exactly its own
// seeded character.
func positionBandBook() *book.Book {
	names := positionBandCharacters()
	seeded := map[int]string{0: names[0], 4: names[1], 8: names[2], 12: names[3], 15: names[4]}

	b := book.NewBuilder("Five Bands", "A. Writer")
	ch := b.Chapter(1, "")
	for i := 0; i < 20; i++ {
		if name, ok := seeded[i]; ok {
			b.AddParagraph(ch, name+" stepped into the room and looked around.")
		} else {
			b.AddParagraph(ch, "Nothing of note happened in this stretch of the story.")
		}
	}
	return b.Build()
}

// positionBandCompleteFunc answers each window's extraction call by
// scanning the passage for any of the seeded names and returning a
// character entry per match, so the mock genuinely reflects what that
// window's sampled text contains rather than a call-index lookup.
func positionBandCompleteFunc(ctx context.Context, messages []provider.Message, model string, temperature float64, format provider.ResponseFormat, maxTokens int) (string, provider.Usage, error) {
	passage := messages[len(messages)-1].Content
	var entries []string
	for _, name := range positionBandCharacters() {
		if strings.Contains(passage, name) {
			entries = append(entries, fmt.Sprintf(
				`{"name":%q,"gender":"female","titles":[],"aliases":[],"importance":"minor","confidence":0.9,"first_seen_hint":0.5}`,
				name))
		}
	}
	return "[" + strings.Join(entries, ",") + "]", provider.Usage{}, nil
}

func TestAnalyzeStratifiedSamplingForLargeBook(t *testing.T) {
	mock := testutils.NewMockProvider("")
	mock.Window = 4 // forces the book to exceed the 85% context budget
	mock.CompleteFunc = positionBandCompleteFunc
	a := New(mock, Options{Model: "mock-model"})

	reg, err := a.Analyze(context.Background(), positionBandBook())
	require.NoError(t, err)

	assert.Greater(t, mock.Calls, 1, "a book exceeding the context budget should sample multiple windows")
	assert.True(t, reg.Frozen())

	for _, name := range positionBandCharacters() {
		_, ok := reg.Get(name)
		assert.True(t, ok, "expected character %q seeded in its own position band to be recovered", name)
	}
	assert.Equal(t, len(positionBandCharacters()), reg.Count())
}

func TestAnalyzeWrapsProviderError(t *testing.T) {
	mock := testutils.NewMockProvider("")
	mock.Err = testutils.ErrMock
	a := New(mock, Options{Model: "mock-model"})

	_, err := a.Analyze(context.Background(), testutils.SmallBook())
	assert.ErrorIs(t, err, testutils.ErrMock)
}

func TestAnalyzeRecordsCompletionUsageAgainstLimiter(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	limiter, err := ratelimit.NewLimiter(&ratelimit.Config{
		Enabled: true,
		Limits:  []ratelimit.LimitRule{{Type: ratelimit.LimitTypeToken, Window: ratelimit.WindowMinute, Limit: 1_000_000}},
	}, store)
	require.NoError(t, err)

	mock := testutils.NewMockProvider(twoCharacterJSON)
	a := New(mock, Options{Model: "mock-model", Limiter: limiter})

	_, err = a.Analyze(context.Background(), testutils.SmallBook())
	require.NoError(t, err)

	usage, err := limiter.GetUsage(context.Background(), rateLimitIdentifier)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Greater(t, usage[0].Current, int64(0))
}

func TestAwaitBudgetRespectsCancellationWhenBlocked(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	limiter, err := ratelimit.NewLimiter(&ratelimit.Config{
		Enabled: true,
		Limits:  []ratelimit.LimitRule{{Type: ratelimit.LimitTypeToken, Window: ratelimit.WindowMinute, Limit: 1}},
	}, store)
	require.NoError(t, err)
	require.NoError(t, store.SetUsage(context.Background(), rateLimitIdentifier, ratelimit.LimitTypeToken, ratelimit.WindowMinute, 100, time.Now().Add(time.Minute)))

	a := &Analyzer{limiter: limiter}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = a.awaitBudget(ctx, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
