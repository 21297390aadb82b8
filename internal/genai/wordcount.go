package genai

import (
	"strings"

	"golang.org/x/net/html"
)

// 计数模式。
const (
	// WordCountRaw 按空白切分整段文本（标签也参与切分），与历史阈值一致。
	WordCountRaw = "raw"
	// WordCountText 只统计 HTML 文本节点中的词。
	WordCountText = "text"
)

// CountWords 按 mode 统计词数；未知 mode 按 raw 处理。
func CountWords(text, mode string) int {
	if mode == WordCountText {
		return countTextWords(text)
	}
	return len(strings.Fields(text))
}

func countTextWords(text string) int {
	z := html.NewTokenizer(strings.NewReader(text))
	n := 0
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return n
		case html.StartTagToken:
			if isRawText(z) {
				skip++
			}
		case html.EndTagToken:
			if isRawText(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				n += len(strings.Fields(string(z.Text())))
			}
		}
	}
}

func isRawText(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}
