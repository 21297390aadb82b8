package genai

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

var fenceRE = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\r?\n(.*?)\r?\n?```$")

// StripFences 去掉包裹整段响应的 ``` / ```html 代码围栏。
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// PostProcess 规整模型返回的正文：去围栏；不含任何 HTML 元素时按 Markdown 转换为 HTML。
func PostProcess(raw string) (string, error) {
	s := StripFences(raw)
	if s == "" {
		return "", errors.New("模型返回空内容")
	}
	if containsElement(s) {
		return s, nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(s), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func containsElement(s string) bool {
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			return true
		}
	}
}
