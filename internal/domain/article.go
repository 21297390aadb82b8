package domain

// Metadata 是由成稿派生出的 SEO 三元组。
type Metadata struct {
	SEOTitle        string `json:"seo_title"`
	MetaDescription string `json:"meta_description"`
	H1              string `json:"h1"`

	// Fallback=true 表示模型输出不可用，三个字段都是占位文案（降级输出）。
	Fallback bool `json:"-"`
}

// ArticleBundle 只在单条记录的 compose 过程中存在：生成 -> 渲染 -> 丢弃。
type ArticleBundle struct {
	ArticleHTML string
	Metadata    Metadata
	Words       int
	Extensions  int
}
