package page

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"

	"github.com/John-Robertt/watchguide/internal/domain"
)

//go:embed layout.html.tmpl
var layoutSrc string

var (
	layout = template.Must(template.New("page").Parse(layoutSrc))
	// UGC 策略保留标题、段落、列表、链接等排版标签，去掉脚本与事件属性。
	articlePolicy = bluemonday.UGCPolicy()
)

// PageData 是渲染一张页面所需的全部输入。Description 为已翻译的描述（可为空）。
type PageData struct {
	Record      domain.WatchRecord
	Article     string
	Metadata    domain.Metadata
	Description string
}

// Row 是技术规格表的一行。
type Row struct {
	Label string
	Value string
}

type view struct {
	Title       string
	Description string
	H1          string
	Rows        []Row
	ImageSrc    string
	Article     template.HTML
}

var caseLabels = map[string]string{
	"material":  "Boîtier - Matériau",
	"glass":     "Boîtier - Verre",
	"back":      "Boîtier - Fond",
	"diameter":  "Boîtier - Diamètre",
	"height":    "Boîtier - Hauteur",
	"lug_width": "Boîtier - Entre-cornes",
}

// Render 是纯函数：相同输入 => 相同字节。
//
// 所有字段值经 html/template 上下文转义；正文经 bluemonday 清洗后才作为可信 HTML 嵌入。
func Render(d PageData) ([]byte, error) {
	v := view{
		Title:       d.Metadata.SEOTitle,
		Description: d.Metadata.MetaDescription,
		H1:          d.Metadata.H1,
		Rows:        Rows(d.Record, d.Description),
		ImageSrc:    ImageSrc(d.Record),
		Article:     template.HTML(articlePolicy.Sanitize(d.Article)),
	}
	var buf bytes.Buffer
	if err := layout.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("渲染页面失败：%w", err)
	}
	return buf.Bytes(), nil
}

// Rows 按固定顺序生成规格表。
func Rows(r domain.WatchRecord, description string) []Row {
	rows := []Row{
		{"Marque", r.Brand},
		{"Famille", r.Family},
		{"Référence", r.Reference},
		{"Nom", r.Name},
		{"Date de sortie / Production", r.Produced},
		{"Édition Limitée ?", r.Limited},
		{"Mouvement - Calibre", r.Movement.Caliber},
		{"Détails Mouvement", r.Movement.Details},
	}
	for _, f := range r.Case.Fields() {
		rows = append(rows, Row{caseLabels[f.Key], f.Value})
	}
	rows = append(rows,
		Row{"Cadran - Couleur", domain.Str(r.Dial.Color)},
		Row{"Cadran - Indexes", domain.Str(r.Dial.Indexes)},
	)
	if description != "" {
		rows = append(rows, Row{"Description", description})
	}
	if q, ok := r.Prices.Latest(); ok {
		rows = append(rows, Row{"Prix (le plus récent)", fmt.Sprintf("%s (selon '%s')", q.Value, q.Label)})
	}
	return rows
}

// ImageSrc 优先远程地址，其次本地路径，都没有时为 "#"。
func ImageSrc(r domain.WatchRecord) string {
	switch {
	case r.ImageURL != "":
		return r.ImageURL
	case r.LocalImagePath != "":
		return r.LocalImagePath
	default:
		return "#"
	}
}
