// Package quality implements the QualityController (§4.4): detects residual
// gendered language that escaped the TransformEngine, issues focused
// re-transform requests for the affected paragraphs, and scores the result.
package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/jsnhff/regender/pkg/book"
	"github.com/jsnhff/regender/pkg/provider"
)

// Options configures a Controller.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Controller runs the bounded correction loop over a TransformedBook.
type Controller struct {
	provider  provider.Provider
	model     string
	temp      float64
	maxTokens int
}

// New creates a Controller backed by p.
func New(p provider.Provider, opts Options) *Controller {
	model := opts.Model
	if model == "" {
		model = p.DefaultModel()
	}
	temp := opts.Temperature
	if temp == 0 {
		temp = 0.2
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	return &Controller{provider: p, model: model, temp: temp, maxTokens: maxTokens}
}

// Run executes up to level.MaxPasses() correction passes over tb in place,
// using reg and spec to resolve each character's target gender and the
// alignment-fallback defects already recorded by the TransformEngine.
// Termination follows §4.4: no defects remain, the pass ceiling is
// reached, or a pass fails to reduce the defect count (oscillation guard).
func (c *Controller) Run(ctx context.Context, tb *book.TransformedBook, reg *book.CharacterRegistry, spec book.TransformSpec, level book.QualityLevel, alignmentDefects []book.Defect) (*book.QualityReport, error) {
	maxPasses := level.MaxPasses()
	charContext := book.BuildCharacterContext(reg, spec)

	current := append(DetectAll(tb.Book, reg, spec), alignmentDefects...)
	defectsInitial := len(current)

	passes := 0
	for passes < maxPasses && len(current) > 0 {
		passes++
		if err := c.correctPass(ctx, tb.Book, charContext, spec, groupByChapter(current)); err != nil {
			return nil, fmt.Errorf("quality: pass %d: %w", passes, err)
		}

		next := DetectAll(tb.Book, reg, spec)
		if len(next) >= len(current) {
			// Oscillation guard: this pass did not reduce the defect count.
			current = next
			break
		}
		current = next
	}

	return &book.QualityReport{
		Defects: current,
		Score:   score(len(current), defectsInitial),
		Passes:  passes,
	}, nil
}

func score(remaining, initial int) float64 {
	if initial < 1 {
		initial = 1
	}
	s := 100 * (1 - float64(remaining)/float64(initial))
	if s < 0 {
		s = 0
	}
	return s
}

func groupByChapter(defects []book.Defect) map[int][]book.Defect {
	out := make(map[int][]book.Defect)
	for _, d := range defects {
		out[d.ChapterIdx] = append(out[d.ChapterIdx], d)
	}
	return out
}

// correctPass issues one focused re-transform request per affected chapter,
// replacing its defective paragraphs on a fully aligned response and
// leaving them untouched otherwise — correction never partially overwrites
// a paragraph.
func (c *Controller) correctPass(ctx context.Context, b *book.Book, charContext book.CharacterContext, spec book.TransformSpec, byChapter map[int][]book.Defect) error {
	chapters := make([]int, 0, len(byChapter))
	for ci := range byChapter {
		chapters = append(chapters, ci)
	}
	sort.Ints(chapters)

	for _, ci := range chapters {
		defects := byChapter[ci]
		paraIdxs := affectedParagraphs(defects)
		chunk := buildChapterChunk(b, ci, paraIdxs)
		if chunk.Len() == 0 {
			continue
		}

		messages := buildCorrectionPrompt(chunk, charContext, spec, defects)
		text, _, err := c.provider.Complete(ctx, messages, c.model, c.temp, provider.ResponseFormatJSON, c.maxTokens)
		if err != nil {
			return fmt.Errorf("chapter %d: %w", ci, err)
		}

		sentences, err := parseIndexedSentences(text)
		if err != nil || !aligned(sentences, chunk.Len()) {
			// Falls back to leaving this chapter's paragraphs as they were;
			// the next pass (if any) will surface the same defects again.
			continue
		}
		applyChunk(b, chunk, sentences)
	}
	return nil
}

func affectedParagraphs(defects []book.Defect) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, d := range defects {
		if _, ok := seen[d.ParaIdx]; !ok {
			seen[d.ParaIdx] = struct{}{}
			out = append(out, d.ParaIdx)
		}
	}
	sort.Ints(out)
	return out
}

func buildChapterChunk(b *book.Book, chapterIdx int, paraIdxs []int) *book.Chunk {
	c := book.NewChunk(chapterIdx)
	ch := b.Chapters[chapterIdx]
	for _, pi := range paraIdxs {
		if pi < 0 || pi >= len(ch.Paragraphs) {
			continue
		}
		for si, s := range ch.Paragraphs[pi].Sentences {
			c.Add(book.SentenceRef{ChapterIdx: chapterIdx, ParaIdx: pi, SentenceIdx: si}, s, 0)
		}
	}
	return c
}

func applyChunk(b *book.Book, source *book.Chunk, sentences map[int]string) {
	for idx, text := range sentences {
		ref := source.Refs[idx-1]
		b.Chapters[ref.ChapterIdx].Paragraphs[ref.ParaIdx].Sentences[ref.SentenceIdx] = text
	}
}

func aligned(sentences map[int]string, n int) bool {
	if len(sentences) != n {
		return false
	}
	for i := 1; i <= n; i++ {
		if _, ok := sentences[i]; !ok {
			return false
		}
	}
	return true
}

func parseIndexedSentences(text string) (map[int]string, error) {
	var raw map[string]string
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}
	out := make(map[int]string, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("non-numeric sentence index %q", k)
		}
		out[idx] = v
	}
	return out, nil
}
