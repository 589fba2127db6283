package quality

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsnhff/regender/pkg/book"
	"github.com/jsnhff/regender/pkg/provider"
	"github.com/jsnhff/regender/pkg/testutils"
)

func numberedLines(text string) map[int]string {
	out := map[int]string{}
	for _, line := range strings.Split(text, "\n") {
		dot := strings.Index(line, ". ")
		if dot < 0 {
			continue
		}
		idx, err := strconv.Atoi(line[:dot])
		if err != nil {
			continue
		}
		out[idx] = line[dot+2:]
	}
	return out
}

func alignedResponse(messages []provider.Message, transform func(string) string) string {
	sentences := numberedLines(messages[len(messages)-1].Content)
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for idx, text := range sentences {
		if !first {
			b.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&b, "%q:%q", strconv.Itoa(idx), transform(text))
	}
	b.WriteByte('}')
	return b.String()
}

var pronounFix = strings.NewReplacer(
	"his", "her",
	"him", "her",
	"he ", "she ",
	"their", "her",
)

func TestControllerRunFixesDefectsAndImprovesScore(t *testing.T) {
	mock := testutils.NewMockProvider("")
	mock.CompleteFunc = func(ctx context.Context, messages []provider.Message, model string, temperature float64, format provider.ResponseFormat, maxTokens int) (string, provider.Usage, error) {
		return alignedResponse(messages, pronounFix.Replace), provider.Usage{}, nil
	}

	c := New(mock, Options{})
	b := testutils.SmallBook()
	reg := registryFor(t)
	tb := &book.TransformedBook{Book: b, Transformation: book.TransformationMeta{Type: book.AllFemale}}

	report, err := c.Run(context.Background(), tb, reg, book.TransformSpec{Kind: book.AllFemale}, book.QualityStandard, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Passes)
	assert.Empty(t, report.Defects)
	assert.Equal(t, 100.0, report.Score)
}

func TestControllerRunOscillationGuardStopsWithoutImprovement(t *testing.T) {
	mock := testutils.NewMockProvider("")
	mock.CompleteFunc = func(ctx context.Context, messages []provider.Message, model string, temperature float64, format provider.ResponseFormat, maxTokens int) (string, provider.Usage, error) {
		// Echo back unchanged: the defect is never actually fixed.
		return alignedResponse(messages, func(s string) string { return s }), provider.Usage{}, nil
	}

	c := New(mock, Options{})
	b := testutils.SmallBook()
	reg := registryFor(t)
	tb := &book.TransformedBook{Book: b, Transformation: book.TransformationMeta{Type: book.AllFemale}}

	report, err := c.Run(context.Background(), tb, reg, book.TransformSpec{Kind: book.AllFemale}, book.QualityHigh, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Passes, "oscillation guard should stop after the first unproductive pass")
	assert.NotEmpty(t, report.Defects)
	assert.Less(t, report.Score, 100.0)
}

func TestControllerRunFastLevelSkipsCorrection(t *testing.T) {
	mock := testutils.NewMockProvider("")
	mock.CompleteFunc = func(ctx context.Context, messages []provider.Message, model string, temperature float64, format provider.ResponseFormat, maxTokens int) (string, provider.Usage, error) {
		t.Fatal("fast quality level must never call the provider")
		return "", provider.Usage{}, nil
	}

	c := New(mock, Options{})
	b := testutils.SmallBook()
	reg := registryFor(t)
	tb := &book.TransformedBook{Book: b, Transformation: book.TransformationMeta{Type: book.AllFemale}}

	report, err := c.Run(context.Background(), tb, reg, book.TransformSpec{Kind: book.AllFemale}, book.QualityFast, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Passes)
	assert.NotEmpty(t, report.Defects)
}

func TestControllerRunCorrectsAlignmentFallbackDefects(t *testing.T) {
	mock := testutils.NewMockProvider("")
	mock.CompleteFunc = func(ctx context.Context, messages []provider.Message, model string, temperature float64, format provider.ResponseFormat, maxTokens int) (string, provider.Usage, error) {
		return alignedResponse(messages, pronounFix.Replace), provider.Usage{}, nil
	}

	c := New(mock, Options{})
	b := testutils.SmallBook()
	reg := registryFor(t)
	tb := &book.TransformedBook{Book: b, Transformation: book.TransformationMeta{Type: book.AllFemale}}

	fallback := []book.Defect{{Kind: book.DefectAlignmentFallback, ChapterIdx: 0, ParaIdx: 1, Sentence: 1, Evidence: "chunk fallback"}}
	report, err := c.Run(context.Background(), tb, reg, book.TransformSpec{Kind: book.AllFemale}, book.QualityStandard, fallback)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Passes)
	assert.Empty(t, report.Defects)
}
