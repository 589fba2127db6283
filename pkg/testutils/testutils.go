// Package testutils provides testing helpers shared across package tests:
// a scriptable MockProvider and small Book fixtures built without a real
// parser.
package testutils

import (
	"context"
	"fmt"
	"time"

	"github.com/jsnhff/regender/pkg/book"
	"github.com/jsnhff/regender/pkg/provider"
)

// MockProvider implements provider.Provider for tests. Its behavior is
// driven by CompleteFunc when set; otherwise it echoes a canned response.
// Delay and Err let tests exercise retry and cancellation paths.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, messages []provider.Message, model string, temperature float64, format provider.ResponseFormat, maxTokens int) (string, provider.Usage, error)
	Response     string
	Delay        time.Duration
	Err          error
	Model        string
	Window       int
	Calls        int
}

// NewMockProvider creates a mock provider that returns Response on Complete.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response, Model: "mock-model", Window: 128_000}
}

// Complete implements provider.Provider.
func (m *MockProvider) Complete(ctx context.Context, messages []provider.Message, model string, temperature float64, format provider.ResponseFormat, maxTokens int) (string, provider.Usage, error) {
	m.Calls++

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", provider.Usage{}, ctx.Err()
		}
	}

	if m.Err != nil {
		return "", provider.Usage{}, m.Err
	}

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages, model, temperature, format, maxTokens)
	}

	return m.Response, provider.Usage{PromptTokens: len(messages) * 10, CompletionTokens: len(m.Response) / 4}, nil
}

// CountTokens implements provider.Provider using a char/4 heuristic.
func (m *MockProvider) CountTokens(text string, model string) int {
	return len(text) / 4
}

// DefaultModel implements provider.Provider.
func (m *MockProvider) DefaultModel() string {
	return m.Model
}

// ContextWindow implements provider.Provider.
func (m *MockProvider) ContextWindow(model string) int {
	return m.Window
}

// SmallBook builds a two-chapter Book fixture with known characters, for
// tests that exercise the analyzer/chunker/transform pipeline without a
// real parser.
func SmallBook() *book.Book {
	b := book.NewBuilder("Two Sisters", "A. Writer")

	ch1 := b.Chapter(1, "The Arrival")
	b.AddParagraph(ch1,
		"Mary walked into the old house.",
		"She had not seen her brother John in ten years.",
	)
	b.AddParagraph(ch1,
		"\"Hello, John,\" she said.",
		"John smiled and embraced his sister.",
	)

	ch2 := b.Chapter(2, "The Letter")
	b.AddParagraph(ch2,
		"Mrs. Smith brought a letter for Mary.",
		"It was from their mother, Mrs. Carter.",
	)

	return b.Build()
}

// CharacterFixtures returns canonical Character values matching SmallBook,
// for tests that build a CharacterRegistry without running an analyzer.
func CharacterFixtures() []*book.Character {
	return []*book.Character{
		{
			CanonicalName: "Mary",
			Variants:      map[string]struct{}{"Mary": {}},
			Gender:        book.GenderFemale,
			Pronouns:      book.DefaultPronouns(book.GenderFemale),
			Importance:    book.ImportanceMain,
			Confidence:    0.95,
		},
		{
			CanonicalName: "John",
			Variants:      map[string]struct{}{"John": {}},
			Gender:        book.GenderMale,
			Pronouns:      book.DefaultPronouns(book.GenderMale),
			Importance:    book.ImportanceMain,
			Confidence:    0.95,
		},
		{
			CanonicalName: "Mrs. Carter",
			Variants:      map[string]struct{}{"Mrs. Carter": {}, "their mother": {}},
			Titles:        map[string]struct{}{"Mrs.": {}},
			Gender:        book.GenderFemale,
			Pronouns:      book.DefaultPronouns(book.GenderFemale),
			Importance:    book.ImportanceSupporting,
			Confidence:    0.8,
		},
	}
}

// ErrMock is a sentinel error for tests configuring MockProvider.Err.
var ErrMock = fmt.Errorf("testutils: mock provider error")
