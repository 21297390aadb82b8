package httpx

import (
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultTimeout = 30 * time.Second

// Options 是 HTTP 客户端的可配置项（来自 config.http）。
type Options struct {
	// ProxyURL 非空时页面请求走该代理。
	ProxyURL string
	// ImageProxy 为 true 时图片下载也走 ProxyURL。
	ImageProxy bool
	// RetryMax 是传输层错误的最大重试次数（不含首次）；默认 0，即不重试。
	RetryMax int
	// Timeout 是单个请求的总超时；<=0 时使用默认值。
	Timeout time.Duration
}

// Transport 给每个请求带上浏览器 UA，并对可重放请求做有界重试。
//
// 只有传输层错误会重试；非 200 状态码原样返回给调用方判断。
type Transport struct {
	Base *http.Transport

	ua *uaPool

	RetryMax int

	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", t.ua.random())
		}
		if t.DisableKeepAlives {
			r.Close = true
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// NewPageClient 构造目录页与价格接口使用的 client。
func NewPageClient(opts Options) (*http.Client, error) {
	return newClient(strings.TrimSpace(opts.ProxyURL), opts)
}

// NewImageClient 构造图片下载使用的 client。
//
// ImageProxy=false 时图片直连（忽略 ProxyURL）。
func NewImageClient(opts Options) (*http.Client, error) {
	if !opts.ImageProxy {
		return newClient("", opts)
	}
	p := strings.TrimSpace(opts.ProxyURL)
	if p == "" {
		return nil, errors.New("image_proxy=true 但 http.proxy_url 为空")
	}
	return newClient(p, opts)
}

func newClient(proxyURL string, opts Options) (*http.Client, error) {
	base := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
	}
	disableKeepAlives := false
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Transport: &Transport{
			Base:              base,
			ua:                globalUA,
			RetryMax:          opts.RetryMax,
			DisableKeepAlives: disableKeepAlives,
		},
		Timeout: timeout,
	}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = &uaPool{
	rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	uas: []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	},
}
