package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/watchguide/internal/domain"
)

// Cached 按 (provider, pageURL) 查询已缓存的原始页面与价格 JSON。
// 价格缺失时 prices 为 nil；ok=false 表示页面未命中。
type Cached func(provider, pageURL string) (html, prices []byte, ok bool)

// Options 控制 Extract 的可选行为。
type Options struct {
	Cached Cached
}

// Result 是一次抽取的完整产物。
type Result struct {
	Provider string
	Record   domain.WatchRecord

	// HTML 与 Prices 是原始字节（用于写缓存）；价格未取得时 Prices 为 nil。
	HTML   []byte
	Prices []byte

	FromCache bool
	Warnings  []string
}

// Extract 对单个目录页执行 匹配 provider -> Fetch -> Parse -> 价格数据。
//
// 页面抓取或解析失败返回 *Error；价格数据失败只记 warning，记录的 prices 保持 []。
func Extract(ctx context.Context, reg Registry, pageURL string, c *http.Client, opts Options) (Result, error) {
	pageURL = strings.TrimSpace(pageURL)
	p, ok := reg.ForURL(pageURL)
	if !ok {
		return Result{}, &Error{
			Provider: hostOf(pageURL),
			Stage:    "parse",
			Err:      &ParseError{URL: pageURL, Reason: "没有可处理该地址的 provider"},
		}
	}
	name := p.Name()
	res := Result{Provider: name}

	var cachedPrices []byte
	if opts.Cached != nil {
		if h, pr, hit := opts.Cached(name, pageURL); hit {
			res.HTML, cachedPrices, res.FromCache = h, pr, true
		}
	}
	if !res.FromCache {
		h, err := p.Fetch(ctx, pageURL, c)
		if err != nil {
			return Result{}, &Error{Provider: name, Stage: "fetch", Err: err}
		}
		res.HTML = h
	}

	listing, err := p.Parse(res.HTML, pageURL)
	if err != nil {
		return Result{}, &Error{Provider: name, Stage: "parse", Err: err}
	}
	res.Record = listing.Record

	if listing.PriceDataURL != "" {
		raw := cachedPrices
		if raw == nil {
			raw, err = p.Fetch(ctx, listing.PriceDataURL, c)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("价格数据获取失败：%v", err))
				raw = nil
			}
		}
		if raw != nil {
			prices, perr := domain.NewPrices(raw)
			if perr != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("价格数据解析失败（%s）：%v", listing.PriceDataURL, perr))
			} else {
				res.Record.Prices = prices
				res.Prices = raw
			}
		}
	}
	return res, nil
}

// Error 是 provider 阶段的可追溯错误。
// 上层据此把失败归类为 fetch_failed / parse_failed，并写入 report。
type Error struct {
	Provider string
	Stage    string // "fetch" 或 "parse"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
