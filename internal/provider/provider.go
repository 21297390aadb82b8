package provider

import (
	"context"
	"net/http"
	"net/url"

	"github.com/John-Robertt/watchguide/internal/domain"
)

// Listing 是一个目录页的解析结果。
type Listing struct {
	Record domain.WatchRecord
	// PriceDataURL 是价格接口的绝对地址；页面没有价格图表时为空。
	PriceDataURL string
}

// Provider 把“站点结构”限制在 provider 包内部；核心流程只依赖统一接口与 WatchRecord。
//
// 约束：
// - Fetch 不做缓存、不做限速（由上层统一实现）
// - Parse 必须是纯函数：相同 (html, pageURL) => 相同输出
type Provider interface {
	Name() string
	Match(u *url.URL) bool
	Fetch(ctx context.Context, rawURL string, c *http.Client) ([]byte, error)
	Parse(html []byte, pageURL string) (Listing, error)
}
