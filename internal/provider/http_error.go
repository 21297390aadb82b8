package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// FetchError 表示站点返回了非 200 的 HTTP 状态码。
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	if e == nil {
		return "fetch error"
	}
	return fmt.Sprintf("HTTP %d（%s）", e.StatusCode, e.URL)
}

// ParseError 表示页面结构不符合预期（通常是站点改版或返回了非目录页）。
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	if e == nil {
		return "parse error"
	}
	return fmt.Sprintf("%s（%s）", e.Reason, e.URL)
}

// Get 发起 GET 请求；只有 200 视为成功，其它状态码返回 *FetchError。
func Get(ctx context.Context, c *http.Client, rawURL string) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}
