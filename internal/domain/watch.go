package domain

// WatchRecord 是一条目录页解析得到的结构化记录。
//
// 约束（下游只按“是否为空”分支，不按“字段是否存在”分支）：
// - 所有可选字段都有默认值：空字符串 / 空对象 / 空数组，永远不输出 null
// - 字段顺序即 JSON 输出顺序，需与历史 all_watches.json 保持一致
type WatchRecord struct {
	Brand     string `json:"brand"`
	Family    string `json:"family"`
	Reference string `json:"reference"`
	Name      string `json:"name"`

	Movement Movement `json:"movement"`

	Produced string `json:"produced"`
	Limited  string `json:"limited"`

	Case CaseInfo `json:"case"`
	Dial DialInfo `json:"dial"`

	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Prices      Prices `json:"prices"`

	LocalImagePath string `json:"local_image_path"`
}

// Movement 的两个字段总是输出（缺失即空串）。
type Movement struct {
	Caliber string `json:"caliber"`
	Details string `json:"details"`
}

// CaseInfo 只输出页面上出现过的键；出现但值为空也照样输出。
type CaseInfo struct {
	Material *string `json:"material,omitempty"`
	Glass    *string `json:"glass,omitempty"`
	Back     *string `json:"back,omitempty"`
	Diameter *string `json:"diameter,omitempty"`
	Height   *string `json:"height,omitempty"`
	LugWidth *string `json:"lug_width,omitempty"`
}

// DialInfo 与 CaseInfo 相同的“部分出现”规则。
type DialInfo struct {
	Color   *string `json:"color,omitempty"`
	Indexes *string `json:"indexes,omitempty"`
}

// Field 是一个按固定顺序展开的键值对（用于渲染/遍历，不参与 JSON）。
type Field struct {
	Key   string
	Value string
}

// Fields 按固定顺序返回出现过的 case 字段。
func (c CaseInfo) Fields() []Field {
	return presentFields([]string{"material", "glass", "back", "diameter", "height", "lug_width"},
		[]*string{c.Material, c.Glass, c.Back, c.Diameter, c.Height, c.LugWidth})
}

func (c CaseInfo) IsEmpty() bool { return len(c.Fields()) == 0 }

// Fields 按固定顺序返回出现过的 dial 字段。
func (d DialInfo) Fields() []Field {
	return presentFields([]string{"color", "indexes"}, []*string{d.Color, d.Indexes})
}

func (d DialInfo) IsEmpty() bool { return len(d.Fields()) == 0 }

func presentFields(keys []string, vals []*string) []Field {
	out := make([]Field, 0, len(keys))
	for i, k := range keys {
		if vals[i] == nil {
			continue
		}
		out = append(out, Field{Key: k, Value: *vals[i]})
	}
	return out
}

// Str 把可选字段解引用为字符串（nil => ""）。
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ptr 返回 s 的指针，便于构造“出现过”的可选字段。
func Ptr(s string) *string { return &s }

// Normalize 补齐零值记录中的默认值（例如旧 JSON 里的 "prices": null）。
func (r *WatchRecord) Normalize() {
	r.Prices = r.Prices.normalized()
}
