package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Catalog 是 extract 与 compose 之间唯一的接口文件（all_watches.json）。
type Catalog struct {
	Watches []WatchRecord `json:"watches"`
}

// EncodeCatalog 输出稳定的目录 JSON：4 空格缩进、UTF-8 原样输出（不转义 <>&）。
func EncodeCatalog(records []WatchRecord) ([]byte, error) {
	c := Catalog{Watches: make([]WatchRecord, 0, len(records))}
	for _, r := range records {
		r.Normalize()
		c.Watches = append(c.Watches, r)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCatalog 解析目录 JSON，并为每条记录补齐默认值。
func DecodeCatalog(b []byte) ([]WatchRecord, error) {
	var c Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("目录 JSON 无效：%w", err)
	}
	if c.Watches == nil {
		return nil, fmt.Errorf("目录 JSON 缺少 watches 字段")
	}
	for i := range c.Watches {
		c.Watches[i].Normalize()
	}
	return c.Watches, nil
}
