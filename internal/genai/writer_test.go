package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/watchguide/internal/domain"
)

// scripted 依次返回预设响应，并记录收到的 Prompt。
type scripted struct {
	responses []string
	err       error
	calls     []Prompt
}

func (s *scripted) Complete(_ context.Context, p Prompt) (string, error) {
	s.calls = append(s.calls, p)
	if s.err != nil {
		return "", s.err
	}
	if len(s.calls) > len(s.responses) {
		return "", errors.New("没有更多预设响应")
	}
	return s.responses[len(s.calls)-1], nil
}

func words(n int, w string) string {
	return "<p>" + strings.TrimSpace(strings.Repeat(w+" ", n)) + "</p>"
}

func testRecord() domain.WatchRecord {
	return domain.WatchRecord{
		Brand:          "Rolex",
		Name:           "Day-Date 40",
		ImageURL:       "https://cdn.test/img.png",
		LocalImagePath: "images/rolex_128348rbr-0026.png",
	}
}

func newWriter(t *testing.T, llm LLMClient, minWords, maxExt int) *Writer {
	t.Helper()
	w, err := NewWriter(llm, Options{MinWords: minWords, MaxExtensions: maxExt})
	require.NoError(t, err)
	return w
}

func TestDraft_StopsAtFirstResponseReachingThreshold(t *testing.T) {
	llm := &scripted{responses: []string{words(5, "a"), words(9, "b"), words(10, "c"), words(50, "d")}}
	w := newWriter(t, llm, 10, 6)

	d, err := w.Draft(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, words(10, "c"), d.HTML)
	assert.Equal(t, 10, d.Words)
	assert.Equal(t, 2, d.Extensions)
	assert.Len(t, llm.calls, 3, "达到阈值后不应再调用")
}

func TestDraft_ThresholdIsInclusive(t *testing.T) {
	llm := &scripted{responses: []string{words(10, "a")}}
	w := newWriter(t, llm, 10, 6)

	d, err := w.Draft(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, 0, d.Extensions)
	assert.Len(t, llm.calls, 1)
}

func TestDraft_ExtensionReplacesWholeText(t *testing.T) {
	llm := &scripted{responses: []string{words(4, "court"), words(12, "long")}}
	w := newWriter(t, llm, 10, 6)

	d, err := w.Draft(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, words(12, "long"), d.HTML)
	assert.NotContains(t, d.HTML, "court")

	ext := llm.calls[1]
	assert.Equal(t, KindExtend, ext.Kind)
	assert.Contains(t, ext.User, "Tu as rédigé un article de 4 mots")
	assert.Contains(t, ext.User, "Il manque environ 6 mots")
	assert.Contains(t, ext.User, words(4, "court"))
}

func TestDraft_BoundedLoopReturnsLastText(t *testing.T) {
	llm := &scripted{responses: []string{words(3, "a"), words(3, "b"), words(4, "c")}}
	w := newWriter(t, llm, 10, 2)

	d, err := w.Draft(context.Background(), testRecord())
	var te *ThresholdUnreachableError
	require.True(t, errors.As(err, &te), "期望 ThresholdUnreachableError，实际：%v", err)
	assert.Equal(t, ThresholdUnreachableError{Words: 4, MinWords: 10, Extensions: 2}, *te)
	assert.Equal(t, words(4, "c"), d.HTML, "返回最后一版全文")
	assert.Len(t, llm.calls, 3)
}

func TestDraft_ZeroExtensionsAllowed(t *testing.T) {
	llm := &scripted{responses: []string{words(3, "a")}}
	w := newWriter(t, llm, 10, 0)

	_, err := w.Draft(context.Background(), testRecord())
	var te *ThresholdUnreachableError
	require.True(t, errors.As(err, &te))
	assert.Len(t, llm.calls, 1)
}

func TestDraft_PromptOmitsImageFields(t *testing.T) {
	llm := &scripted{responses: []string{words(10, "a")}}
	w := newWriter(t, llm, 10, 0)

	_, err := w.Draft(context.Background(), testRecord())
	require.NoError(t, err)
	p := llm.calls[0]
	assert.Equal(t, KindDraft, p.Kind)
	assert.Contains(t, p.User, `"brand": "Rolex"`)
	assert.Contains(t, p.User, "EN FRANÇAIS")
	assert.Contains(t, p.User, "au moins 310 mots")
	assert.NotContains(t, p.User, "image_url")
	assert.NotContains(t, p.User, "local_image_path")
}

func TestDraftPrompt_DefaultTarget(t *testing.T) {
	p := DraftPrompt("{}", DefaultMinWords, DefaultLanguage)
	assert.Contains(t, p.User, "au moins 3500 mots")
	assert.Contains(t, p.User, "dépasser 3200")
}

func TestDraft_CallErrorIsGenerationFailure(t *testing.T) {
	llm := &scripted{err: errors.New("connection reset")}
	w := newWriter(t, llm, 10, 6)

	_, err := w.Draft(context.Background(), testRecord())
	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindDraft, ce.Kind)

	var te *ThresholdUnreachableError
	assert.False(t, errors.As(err, &te))
}

func TestDraft_TextModeIgnoresMarkup(t *testing.T) {
	// raw 模式下 10 个 token；text 模式下只有 8 个词
	html := `<div class="intro"> <p>un deux trois</p> <p>quatre cinq six sept huit</p></div>`
	assert.Equal(t, 10, CountWords(html, WordCountRaw))
	assert.Equal(t, 8, CountWords(html, WordCountText))

	llm := &scripted{responses: []string{html}}
	w, err := NewWriter(llm, Options{MinWords: 8, WordCount: WordCountText})
	require.NoError(t, err)
	d, err := w.Draft(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, 8, d.Words)
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()

	ok := &scripted{responses: []string{"```json\n{\"seo_title\":\"S\",\"meta_description\":\"M\",\"h1\":\"H\"}\n```"}}
	m, err := newWriter(t, ok, 10, 0).Metadata(ctx, "<p>x</p>")
	require.NoError(t, err)
	assert.Equal(t, domain.Metadata{SEOTitle: "S", MetaDescription: "M", H1: "H"}, m)

	for _, raw := range []string{
		"Voici le JSON demandé",
		`{"seo_title":"S","meta_description":"M"}`,
		`{"seo_title":"S","meta_description":"M","h1":3}`,
		`["S","M","H"]`,
	} {
		llm := &scripted{responses: []string{raw}}
		m, err := newWriter(t, llm, 10, 0).Metadata(ctx, "<p>x</p>")
		require.NoError(t, err, "解析失败不应返回错误：%q", raw)
		assert.Equal(t, domain.Metadata{
			SEOTitle:        "SEO Title indisponible",
			MetaDescription: "Description indisponible",
			H1:              "Titre principal indisponible",
			Fallback:        true,
		}, m, "raw=%q", raw)
	}

	_, err = newWriter(t, &scripted{err: errors.New("boom")}, 10, 0).Metadata(ctx, "x")
	var ce *CallError
	assert.True(t, errors.As(err, &ce))
}

func TestTranslate(t *testing.T) {
	llm := &scripted{responses: []string{"  Une montre iconique.\n"}}
	w := newWriter(t, llm, 10, 0)

	out, err := w.Translate(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, "", out)
	assert.Empty(t, llm.calls, "空描述不应调用模型")

	out, err = w.Translate(context.Background(), "An iconic watch.")
	require.NoError(t, err)
	assert.Equal(t, "Une montre iconique.", out)
	assert.Equal(t, "Traduis en français ce texte: An iconic watch.", llm.calls[0].User)
}

func TestTranslate_FollowsLanguage(t *testing.T) {
	llm := &scripted{responses: []string{"Una montre."}}
	w, err := NewWriter(llm, Options{MinWords: 10, Language: "italiano"})
	require.NoError(t, err)

	_, err = w.Translate(context.Background(), "An iconic watch.")
	require.NoError(t, err)
	assert.Equal(t, "Traduis en italiano ce texte: An iconic watch.", llm.calls[0].User)
}

func TestNewWriter_RejectsNegativeBound(t *testing.T) {
	_, err := NewWriter(&scripted{}, Options{MaxExtensions: -1})
	assert.Error(t, err)
	_, err = NewWriter(nil, Options{})
	assert.Error(t, err)
}
