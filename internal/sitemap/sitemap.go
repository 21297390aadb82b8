package sitemap

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
)

const (
	FileName = "sitemap.xml"
	xmlns    = "http://www.sitemaps.org/schemas/sitemap/0.9"
)

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []entry  `xml:"url"`
}

type entry struct {
	Loc string `xml:"loc"`
}

// Encode 生成 sitemap.xml：页面名去重、按字典序排列，不输出 lastmod（保证重跑字节一致）。
func Encode(baseURL string, pages []string) ([]byte, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("site_base_url 非法：%w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("site_base_url 必须是 http(s) 地址：%q", baseURL)
	}
	prefix := strings.TrimRight(base.String(), "/") + "/"

	names := normList(pages)
	set := urlset{Xmlns: xmlns, URLs: make([]entry, 0, len(names))}
	for _, n := range names {
		set.URLs = append(set.URLs, entry{Loc: prefix + url.PathEscape(n)})
	}

	b, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	out := append([]byte(xml.Header), b...)
	return append(out, '\n'), nil
}

// Collect 列出 dir 下的所有 .html 页面文件名（已排序）；目录不存在时返回空列表。
func Collect(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ".html") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func normList(in []string) []string {
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
