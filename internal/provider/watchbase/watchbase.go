package watchbase

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/John-Robertt/watchguide/internal/domain"
	providerx "github.com/John-Robertt/watchguide/internal/provider"
)

var defaultHosts = []string{"watchbase.com", "www.watchbase.com"}

// Provider 实现 watchbase.com 目录页的抓取与解析。
//
// 页面结构：
// - table.info-table 按位置区分：0=基本信息，1=表壳，2=表盘
// - 每行 <th>标签:</th><td>值</td>，标签小写后精确匹配
type Provider struct {
	// Hosts 覆盖可匹配的 host（测试用）；为空时为 watchbase.com / www.watchbase.com。
	Hosts []string
}

func (Provider) Name() string { return "watchbase" }

func (p Provider) Match(u *url.URL) bool {
	if u == nil {
		return false
	}
	hosts := p.Hosts
	if len(hosts) == 0 {
		hosts = defaultHosts
	}
	h := strings.ToLower(u.Hostname())
	for _, want := range hosts {
		if h == want {
			return true
		}
	}
	return false
}

func (Provider) Fetch(ctx context.Context, rawURL string, c *http.Client) ([]byte, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("url 不能为空")
	}
	return providerx.Get(ctx, c, rawURL)
}

// Parse 把目录页 HTML 解析为 WatchRecord；缺少基本信息表时返回 *provider.ParseError。
func (Provider) Parse(body []byte, pageURL string) (providerx.Listing, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return providerx.Listing{}, &providerx.ParseError{URL: pageURL, Reason: "页面内容为空"}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return providerx.Listing{}, err
	}

	tables := doc.Find("table.info-table")
	if tables.Length() == 0 {
		return providerx.Listing{}, &providerx.ParseError{URL: pageURL, Reason: "未找到 info-table 信息表"}
	}

	var rec domain.WatchRecord
	parseGeneral(tables.Eq(0), &rec)
	if tables.Length() > 1 {
		rec.Case = parseCase(tables.Eq(1))
	}
	if tables.Length() > 2 {
		rec.Dial = parseDial(tables.Eq(2))
	}

	if p := doc.Find("div.watch-description").First().Find("p").First(); p.Length() > 0 {
		rec.Description = joinedText(p, "")
	}
	if src, ok := doc.Find("div.watch-main-image").First().Find("img").First().Attr("src"); ok {
		rec.ImageURL = resolveURL(pageURL, src)
	}

	var priceURL string
	if du, ok := doc.Find("canvas#pricechart").First().Attr("data-url"); ok {
		priceURL = resolveURL(pageURL, du)
	}
	return providerx.Listing{Record: rec, PriceDataURL: priceURL}, nil
}

// eachRow 遍历同时含 th 与 td 的行，label 已小写。
func eachRow(table *goquery.Selection, fn func(label string, td *goquery.Selection)) {
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		td := row.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}
		fn(strings.ToLower(joinedText(th, "")), td)
	})
}

func parseGeneral(table *goquery.Selection, rec *domain.WatchRecord) {
	eachRow(table, func(label string, td *goquery.Selection) {
		value := joinedText(td, " ")
		switch label {
		case "brand:":
			rec.Brand = value
		case "family:":
			rec.Family = value
		case "reference:":
			rec.Reference = value
		case "name:":
			rec.Name = value
		case "movement:":
			if a := td.Find("a").First(); a.Length() > 0 {
				rec.Movement.Caliber = joinedText(a, "")
			}
			if div := td.Find("div").First(); div.Length() > 0 {
				rec.Movement.Details = joinedText(div, "")
			}
		case "produced:":
			rec.Produced = value
		case "limited:":
			rec.Limited = value
		}
	})
}

func parseCase(table *goquery.Selection) domain.CaseInfo {
	var c domain.CaseInfo
	eachRow(table, func(label string, td *goquery.Selection) {
		v := domain.Ptr(joinedText(td, ""))
		switch label {
		case "material:":
			c.Material = v
		case "glass:":
			c.Glass = v
		case "back:":
			c.Back = v
		case "diameter:":
			c.Diameter = v
		case "height:":
			c.Height = v
		case "lug width:":
			c.LugWidth = v
		}
	})
	return c
}

func parseDial(table *goquery.Selection) domain.DialInfo {
	var d domain.DialInfo
	eachRow(table, func(label string, td *goquery.Selection) {
		v := domain.Ptr(joinedText(td, ""))
		switch label {
		case "color:":
			d.Color = v
		case "indexes:":
			d.Indexes = v
		}
	})
	return d
}

// joinedText 收集所有后代文本节点，逐段去空白、丢弃空段后以 sep 拼接。
func joinedText(s *goquery.Selection, sep string) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}
