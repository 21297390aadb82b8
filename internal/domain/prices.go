package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// Prices 保存价格数据接口返回的原始 JSON（逐字节保留），并提供只读的数据集视图。
//
// JSON 形态：
// - 无价格数据：[]
// - 有价格数据：provider 返回的对象，例如 {"labels":[...],"datasets":[{"label":...,"data":[...]}]}；语义不变，写目录时随整体重新缩进
type Prices struct {
	raw json.RawMessage
}

var emptyPrices = []byte("[]")

// NewPrices 校验并包装价格 JSON；空白 / null / [] 都视为“无价格数据”。
func NewPrices(b []byte) (Prices, error) {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return Prices{}, nil
	}
	if !json.Valid(t) {
		return Prices{}, errors.New("价格数据不是合法 JSON")
	}
	p := Prices{raw: append(json.RawMessage(nil), t...)}
	return p.normalized(), nil
}

func (p Prices) normalized() Prices {
	t := bytes.TrimSpace(p.raw)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return Prices{}
	}
	if r := gjson.ParseBytes(t); r.IsArray() && len(r.Array()) == 0 {
		return Prices{}
	}
	return p
}

// IsEmpty 表示没有任何价格数据（JSON 输出为 []）。
func (p Prices) IsEmpty() bool { return len(p.normalized().raw) == 0 }

// Raw 返回原始 JSON（空时为 []）。
func (p Prices) Raw() []byte {
	if p.IsEmpty() {
		return append([]byte(nil), emptyPrices...)
	}
	return append([]byte(nil), p.raw...)
}

func (p Prices) MarshalJSON() ([]byte, error) { return p.Raw(), nil }

func (p *Prices) UnmarshalJSON(b []byte) error {
	np, err := NewPrices(b)
	if err != nil {
		return err
	}
	*p = np
	return nil
}

// Dataset 是价格图表中的一条序列。
type Dataset struct {
	Label string
	Data  []PricePoint
}

// PricePoint 是序列中的一个点：数字、字符串或 null。
type PricePoint struct {
	v gjson.Result
}

// IsBlank 表示该点没有价格（null 或空字符串）。
func (pp PricePoint) IsBlank() bool {
	switch pp.v.Type {
	case gjson.Null:
		return true
	case gjson.String:
		return pp.v.Str == ""
	default:
		return !pp.v.Exists()
	}
}

// String 返回展示用文本：字符串原样，数字保持原始书写（15 / 15.5）。
func (pp PricePoint) String() string {
	if pp.v.Type == gjson.String {
		return pp.v.Str
	}
	return strings.TrimSpace(pp.v.Raw)
}

// Datasets 返回 "datasets" 数组的视图；结构不符时返回 nil。
func (p Prices) Datasets() []Dataset {
	if p.IsEmpty() {
		return nil
	}
	ds := gjson.GetBytes(p.raw, "datasets")
	if !ds.IsArray() {
		return nil
	}
	var out []Dataset
	for _, d := range ds.Array() {
		set := Dataset{Label: d.Get("label").String()}
		for _, v := range d.Get("data").Array() {
			set.Data = append(set.Data, PricePoint{v: v})
		}
		out = append(out, set)
	}
	return out
}

// PriceQuote 是“最近价格”及其来源序列名。
type PriceQuote struct {
	Value string
	Label string
}

// Latest 从第一条序列的末尾向前扫描，返回第一个非 null / 非空的值。
// 没有任何可用值时 ok=false（渲染层据此省略价格行）。
func (p Prices) Latest() (PriceQuote, bool) {
	sets := p.Datasets()
	if len(sets) == 0 {
		return PriceQuote{}, false
	}
	first := sets[0]
	for i := len(first.Data) - 1; i >= 0; i-- {
		if first.Data[i].IsBlank() {
			continue
		}
		return PriceQuote{Value: first.Data[i].String(), Label: first.Label}, true
	}
	return PriceQuote{}, false
}
