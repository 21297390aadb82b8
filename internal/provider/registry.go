package provider

import (
	"fmt"
	"net/url"
	"strings"
)

// Registry 是 provider 的只读注册表：按 name 索引，按 URL 的 host 匹配。
type Registry struct {
	ordered []Provider
	byName  map[string]Provider
}

func NewRegistry(providers ...Provider) (Registry, error) {
	byName := make(map[string]Provider, len(providers))
	ordered := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p == nil {
			return Registry{}, fmt.Errorf("provider 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("provider.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 provider：%q", name)
		}
		byName[name] = p
		ordered = append(ordered, p)
	}
	return Registry{ordered: ordered, byName: byName}, nil
}

func (r Registry) Get(name string) (Provider, bool) {
	if r.byName == nil {
		return nil, false
	}
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// ForURL 返回第一个能处理 rawURL 的 provider（按注册顺序）。
func (r Registry) ForURL(rawURL string) (Provider, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return nil, false
	}
	for _, p := range r.ordered {
		if p.Match(u) {
			return p, true
		}
	}
	return nil, false
}
