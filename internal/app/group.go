package app

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/watchguide/internal/domain"
	"github.com/John-Robertt/watchguide/internal/slug"
)

// PageItem 是一条目录记录及其分配到的输出文件名。
type PageItem struct {
	Index  int // 在目录中的位置（0 起）
	Record domain.WatchRecord
	Name   string // 含 .html
}

// GroupByPage 为每条记录分配唯一的页面文件名，保持目录顺序。
//
// 同名时，后出现的记录依次尝试 <name>_<reference>，再追加 _2、_3…，不会静默覆盖。
func GroupByPage(records []domain.WatchRecord) []PageItem {
	used := make(map[string]struct{}, len(records))
	items := make([]PageItem, 0, len(records))
	for i, r := range records {
		base := slug.PageName(r.Brand, r.Name)
		name := base
		if _, taken := used[strings.ToLower(name)]; taken {
			if ref := slug.Reference(r.Reference); ref != "" {
				name = base + "_" + ref
			}
			name = allocName(name, used)
		}
		used[strings.ToLower(name)] = struct{}{}
		items = append(items, PageItem{Index: i, Record: r, Name: name + ".html"})
	}
	return items
}

// 比较不区分大小写：避免在大小写不敏感的文件系统上互相覆盖。
func allocName(name string, used map[string]struct{}) string {
	if _, ok := used[strings.ToLower(name)]; !ok {
		return name
	}
	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s_%d", name, n)
		if _, ok := used[strings.ToLower(cand)]; !ok {
			return cand
		}
	}
}
