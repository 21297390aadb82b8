package slug

import (
	"net/url"
	"strings"
)

const (
	unknownBrand = "unknownbrand"

	// 页面文件名兜底（与历史输出保持一致）。
	UnknownPageBrand = "UnknownBrand"
	UnknownPageModel = "UnknownModel"
)

var (
	brandReplacer = strings.NewReplacer(" ", "-", "/", "-", "&", "and", "'", "")
	refReplacer   = strings.NewReplacer(" ", "-", "/", "-")
	pageReplacer  = strings.NewReplacer(" ", "_", "/", "_", ":", "", "(", "", ")", "")
)

// ImagePrefix 由 brand + reference 生成图片文件名前缀（不含扩展名），形如 "rolex_128348rbr-0026"。
//
// 规则：
// - brand：小写；空格与 '/' -> '-'；'&' -> "and"；去掉 '\''；为空时用 unknownbrand
// - reference：小写；空格与 '/' -> '-'；为空时回退为页面 URL 的最后一段
func ImagePrefix(brand, reference, pageURL string) string {
	b := brandReplacer.Replace(strings.ToLower(brand))
	if b == "" {
		b = unknownBrand
	}
	r := refReplacer.Replace(strings.ToLower(reference))
	if r == "" {
		r = URLTail(pageURL)
	}
	return b + "_" + r
}

// PageName 由 brand + name 生成 HTML 文件名（不含扩展名）。
//
// 空格与 '/' -> '_'；去掉 ':' '(' ')'。结果不含路径分隔符，可直接作为文件名。
func PageName(brand, name string) string {
	if brand == "" {
		brand = UnknownPageBrand
	}
	if name == "" {
		name = UnknownPageModel
	}
	return pageReplacer.Replace(brand + "_" + name)
}

// Reference 把 reference 规范化为可拼进文件名的片段（用于文件名冲突时的消歧）。
func Reference(reference string) string {
	return pageReplacer.Replace(refReplacer.Replace(strings.TrimSpace(reference)))
}

// URLTail 返回 URL 去掉首尾 '/' 后的最后一段（与历史图片命名保持一致）。
func URLTail(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// CacheKey 把 URL 映射为缓存文件名（host + path，非字母数字统一为 '-'）。
func CacheKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	s := raw
	if err == nil {
		s = u.Host + u.Path
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
