package genai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/John-Robertt/watchguide/internal/domain"
)

const (
	DefaultMinWords      = 3200
	DefaultMaxExtensions = 6
	DefaultLanguage      = "français"
)

// 元数据解析失败时的占位值。
const (
	PlaceholderSEOTitle        = "SEO Title indisponible"
	PlaceholderMetaDescription = "Description indisponible"
	PlaceholderH1              = "Titre principal indisponible"
)

// ThresholdUnreachableError 表示扩写次数用尽后仍未达到最低词数。
type ThresholdUnreachableError struct {
	Words      int
	MinWords   int
	Extensions int
}

func (e *ThresholdUnreachableError) Error() string {
	return fmt.Sprintf("扩写 %d 次后仍只有 %d 词（要求至少 %d 词）", e.Extensions, e.Words, e.MinWords)
}

// CallError 表示一次模型调用本身失败（传输错误或空响应）。
type CallError struct {
	Kind string
	Err  error
}

func (e *CallError) Error() string { return fmt.Sprintf("模型调用失败（%s）：%v", e.Kind, e.Err) }

func (e *CallError) Unwrap() error { return e.Err }

// Options 控制生成循环。
type Options struct {
	MinWords      int
	MaxExtensions int
	WordCount     string // raw / text
	Language      string
	Logger        *slog.Logger
}

// Draft 是生成循环的结果。
type Draft struct {
	HTML       string
	Words      int
	Extensions int
}

// Writer 串起长文生成、元数据与描述翻译三类调用。
type Writer struct {
	llm  LLMClient
	opts Options
	log  *slog.Logger
}

func NewWriter(llm LLMClient, opts Options) (*Writer, error) {
	if llm == nil {
		return nil, errors.New("llm client 不能为空")
	}
	if opts.MinWords <= 0 {
		opts.MinWords = DefaultMinWords
	}
	if opts.MaxExtensions < 0 {
		return nil, fmt.Errorf("max_extensions 不能为负数：%d", opts.MaxExtensions)
	}
	if opts.WordCount == "" {
		opts.WordCount = WordCountRaw
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{llm: llm, opts: opts, log: log}, nil
}

// Draft 生成首稿，词数不足时整篇替换式扩写，直到 words >= MinWords。
//
// 扩写最多 MaxExtensions 次；用尽后返回最后一版全文与 *ThresholdUnreachableError。
func (w *Writer) Draft(ctx context.Context, rec domain.WatchRecord) (Draft, error) {
	recJSON, err := RecordJSON(rec)
	if err != nil {
		return Draft{}, err
	}

	text, err := w.complete(ctx, DraftPrompt(recJSON, w.opts.MinWords, w.opts.Language))
	if err != nil {
		return Draft{}, err
	}
	d := Draft{HTML: text, Words: CountWords(text, w.opts.WordCount)}
	w.log.Info("初稿完成", "brand", rec.Brand, "name", rec.Name, "words", d.Words)

	for d.Words < w.opts.MinWords {
		if d.Extensions >= w.opts.MaxExtensions {
			return d, &ThresholdUnreachableError{Words: d.Words, MinWords: w.opts.MinWords, Extensions: d.Extensions}
		}
		text, err := w.complete(ctx, ExtendPrompt(d.HTML, d.Words, w.opts.MinWords, w.opts.Language))
		if err != nil {
			return d, err
		}
		d.Extensions++
		d.HTML = text
		d.Words = CountWords(text, w.opts.WordCount)
		w.log.Info("扩写完成", "brand", rec.Brand, "name", rec.Name, "words", d.Words, "extension", d.Extensions)
	}
	return d, nil
}

// Metadata 请求 seo_title / meta_description / h1。
//
// 响应不是合法 JSON 或缺少任一键时返回占位值（Fallback=true），不返回错误；
// 只有调用本身失败才返回错误。
func (w *Writer) Metadata(ctx context.Context, article string) (domain.Metadata, error) {
	raw, err := w.llm.Complete(ctx, MetadataPrompt(article, w.opts.Language))
	if err != nil {
		return domain.Metadata{}, &CallError{Kind: KindMetadata, Err: err}
	}
	m, reason := ParseMetadata(raw)
	if reason != "" {
		w.log.Warn("元数据解析失败，使用占位值", "reason", reason, "response", truncate(raw, 200))
	}
	return m, nil
}

// ParseMetadata 解析元数据 JSON（容忍代码围栏）；失败时返回占位值与原因。
func ParseMetadata(raw string) (domain.Metadata, string) {
	s := StripFences(raw)
	if !gjson.Valid(s) {
		return placeholderMetadata(), "响应不是合法 JSON"
	}
	root := gjson.Parse(s)
	if !root.IsObject() {
		return placeholderMetadata(), "响应不是 JSON 对象"
	}
	var vals [3]string
	for i, key := range []string{"seo_title", "meta_description", "h1"} {
		v := root.Get(key)
		if !v.Exists() {
			return placeholderMetadata(), "缺少键 " + key
		}
		if v.Type != gjson.String {
			return placeholderMetadata(), "键 " + key + " 不是字符串"
		}
		vals[i] = v.Str
	}
	return domain.Metadata{SEOTitle: vals[0], MetaDescription: vals[1], H1: vals[2]}, ""
}

func placeholderMetadata() domain.Metadata {
	return domain.Metadata{
		SEOTitle:        PlaceholderSEOTitle,
		MetaDescription: PlaceholderMetaDescription,
		H1:              PlaceholderH1,
		Fallback:        true,
	}
}

// Translate 翻译描述字段；空文本直接返回空串，不发起调用。
func (w *Writer) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	out, err := w.llm.Complete(ctx, TranslatePrompt(text, w.opts.Language))
	if err != nil {
		return "", &CallError{Kind: KindTranslate, Err: err}
	}
	return strings.TrimSpace(out), nil
}

func (w *Writer) complete(ctx context.Context, p Prompt) (string, error) {
	raw, err := w.llm.Complete(ctx, p)
	if err != nil {
		return "", &CallError{Kind: p.Kind, Err: err}
	}
	text, err := PostProcess(raw)
	if err != nil {
		return "", &CallError{Kind: p.Kind, Err: err}
	}
	return text, nil
}
