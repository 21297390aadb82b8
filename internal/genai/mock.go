package genai

import (
	"context"
	"fmt"
	"strings"
)

const defaultMockWords = 3600

// MockLLM 是确定性的离线实现：相同 Prompt => 相同输出，不访问网络。
type MockLLM struct {
	// Words 是每篇草稿的词数；<=0 时为 3600。
	Words int
}

func (m MockLLM) Complete(_ context.Context, p Prompt) (string, error) {
	switch p.Kind {
	case KindMetadata:
		return `{"seo_title":"Guide complet de la montre","meta_description":"Histoire, technique et style : tout savoir sur ce modèle d'exception.","h1":"Tout savoir sur ce modèle d'exception"}`, nil
	case KindTranslate:
		_, text, _ := strings.Cut(p.User, translateMarker)
		return "(fr) " + strings.TrimSpace(text), nil
	case KindExtend:
		return mockArticle(m.words() * 2), nil
	default:
		return mockArticle(m.words()), nil
	}
}

func (m MockLLM) words() int {
	if m.Words <= 0 {
		return defaultMockWords
	}
	return m.Words
}

// mockArticle 生成恰好 n 个词的 HTML 片段（raw 与 text 两种计数一致）。
func mockArticle(n int) string {
	const perPara = 100
	var b strings.Builder
	written := 0
	for sec := 1; written < n; sec++ {
		words := n - written
		if words >= 2 {
			fmt.Fprintf(&b, "<h2>Section-%d</h2>\n", sec)
			written++
			words = min(perPara, n-written)
		}
		b.WriteString("<p>")
		for i := 0; i < words; i++ {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("horlogerie")
		}
		b.WriteString("</p>\n")
		written += words
	}
	return b.String()
}
