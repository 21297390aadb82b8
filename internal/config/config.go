package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// FileName 是 <root> 下自动发现的配置文件名。
const FileName = "watchguide.yaml"

const (
	DefaultCatalog       = "all_watches.json"
	DefaultImagesDir     = "images"
	DefaultOutDir        = "output_pages"
	DefaultDelay         = 2 * time.Second
	DefaultTimeout       = 30 * time.Second
	DefaultMinWords      = 3200
	DefaultMaxExtensions = 6
	DefaultWordCount     = "raw"
	DefaultOnShort       = "fail"
	DefaultLanguage      = "français"
	DefaultLLMProvider   = "openai"
	DefaultAPIKeyEnv     = "OPENAI_API_KEY"
)

// DefaultURLs 是内置的目录页列表。
var DefaultURLs = []string{
	"https://watchbase.com/a-lange-sohne/zeitwerk/140-029",
	"https://watchbase.com/audemars-piguet/royal-oak/15202st-oo-0944st-01",
	"https://watchbase.com/bulgari/octo/102138",
	"https://watchbase.com/cartier/crash-de-cartier/whch0006",
	"https://watchbase.com/panerai/luminor-1950/pam01060",
	"https://watchbase.com/rolex/day-date/128348rbr-0026",
}

var defaultModels = map[string]string{
	"openai":   "o3-mini",
	"deepseek": "deepseek-chat",
	"ollama":   "llama3.1",
	"mock":     "mock",
}

// CLIArgs 是 CLI 暴露的入口，保留“是否显式指定”的信息，
// 保证 --dry-run=false 能覆盖配置文件里的 dry_run: true。
type CLIArgs struct {
	Config string // --config
	Root   string // --root

	URLs []string // extract 的位置参数

	DryRun    bool
	DryRunSet bool

	UseCache    bool
	UseCacheSet bool

	Force bool
}

// FileConfig 对应 watchguide.yaml（JSON 也是合法 YAML）。
type FileConfig struct {
	Root      string         `yaml:"root"`
	Catalog   string         `yaml:"catalog"`
	ImagesDir string         `yaml:"images_dir"`
	OutDir    string         `yaml:"out_dir"`
	URLs      []string       `yaml:"urls"`
	Delay     *time.Duration `yaml:"delay"`
	UseCache  *bool          `yaml:"use_cache"`
	DryRun    *bool          `yaml:"dry_run"`

	HTTP    HTTPFile    `yaml:"http"`
	LLM     LLMFile     `yaml:"llm"`
	Compose ComposeFile `yaml:"compose"`
}

type HTTPFile struct {
	RetryMax   *int           `yaml:"retry_max"`
	Timeout    *time.Duration `yaml:"timeout"`
	ProxyURL   string         `yaml:"proxy_url"`
	ImageProxy bool           `yaml:"image_proxy"`
}

type LLMFile struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
}

type ComposeFile struct {
	MinWords      *int   `yaml:"min_words"`
	MaxExtensions *int   `yaml:"max_extensions"`
	WordCount     string `yaml:"word_count"`
	OnShort       string `yaml:"on_short"`
	Language      string `yaml:"language"`
	SiteBaseURL   string `yaml:"site_base_url"`
}

// EffectiveConfig 是合并并规范化后的最终配置；路径均为绝对路径。
type EffectiveConfig struct {
	Root      string
	Catalog   string
	ImagesDir string
	OutDir    string

	URLs     []string
	Delay    time.Duration
	UseCache bool
	DryRun   bool
	Force    bool

	HTTP    HTTP
	LLM     LLM
	Compose Compose

	// ConfigFile 是实际读取的配置文件（未读取时为空）。
	ConfigFile string
}

type HTTP struct {
	RetryMax   int
	Timeout    time.Duration
	ProxyURL   string
	ImageProxy bool
}

type LLM struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

type Compose struct {
	MinWords      int
	MaxExtensions int
	WordCount     string
	OnShort       string
	Language      string
	SiteBaseURL   string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) --config 指定文件：必须存在；root 默认为该文件所在目录
// 2) 否则读取 <root>/watchguide.yaml（可选），root 为 --root 或 cwd
//
// 覆盖优先级：CLI > 配置文件 > 内置默认值。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		baseDir string
		fc      FileConfig
		exists  bool
	)
	if strings.TrimSpace(cli.Config) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.Config)
		baseDir = filepath.Dir(cfgPath)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		baseDir = cwdAbs
		if strings.TrimSpace(cli.Root) != "" {
			baseDir = absCleanFrom(cwdAbs, cli.Root)
		}
		cfgPath = filepath.Join(baseDir, FileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}
	if !exists {
		cfgPath = ""
	}

	// root：CLI > 配置文件（相对配置文件所在目录）> 配置文件所在目录 / cwd
	root := baseDir
	if strings.TrimSpace(cli.Root) != "" {
		root = absCleanFrom(cwdAbs, cli.Root)
	} else if strings.TrimSpace(fc.Root) != "" {
		root = absCleanFrom(baseDir, fc.Root)
	}

	eff, err := merge(root, cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigFile = cfgPath
	return eff, nil
}

func merge(root string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		Root:      root,
		Catalog:   pathOr(root, fc.Catalog, DefaultCatalog),
		ImagesDir: pathOr(root, fc.ImagesDir, DefaultImagesDir),
		OutDir:    pathOr(root, fc.OutDir, DefaultOutDir),
		Delay:     DefaultDelay,
		Force:     cli.Force,
	}

	// urls：CLI 位置参数 > 配置文件 > 内置列表
	switch {
	case len(cli.URLs) > 0:
		eff.URLs = append([]string(nil), cli.URLs...)
	case len(fc.URLs) > 0:
		eff.URLs = append([]string(nil), fc.URLs...)
	default:
		eff.URLs = append([]string(nil), DefaultURLs...)
	}
	for i, u := range eff.URLs {
		u = strings.TrimSpace(u)
		if err := validateHTTPURL(u); err != nil {
			return EffectiveConfig{}, fmt.Errorf("urls[%d] 无效：%w", i, err)
		}
		eff.URLs[i] = u
	}

	if fc.Delay != nil {
		if *fc.Delay < 0 {
			return EffectiveConfig{}, fmt.Errorf("delay 不能为负数：%s", *fc.Delay)
		}
		eff.Delay = *fc.Delay
	}

	switch {
	case cli.DryRunSet:
		eff.DryRun = cli.DryRun
	case fc.DryRun != nil:
		eff.DryRun = *fc.DryRun
	}
	switch {
	case cli.UseCacheSet:
		eff.UseCache = cli.UseCache
	case fc.UseCache != nil:
		eff.UseCache = *fc.UseCache
	}

	h, err := mergeHTTP(fc.HTTP)
	if err != nil {
		return EffectiveConfig{}, err
	}
	eff.HTTP = h

	l, err := mergeLLM(fc.LLM)
	if err != nil {
		return EffectiveConfig{}, err
	}
	eff.LLM = l

	c, err := mergeCompose(fc.Compose)
	if err != nil {
		return EffectiveConfig{}, err
	}
	eff.Compose = c
	return eff, nil
}

func mergeHTTP(f HTTPFile) (HTTP, error) {
	h := HTTP{Timeout: DefaultTimeout, ImageProxy: f.ImageProxy}
	if f.RetryMax != nil {
		if *f.RetryMax < 0 {
			return HTTP{}, fmt.Errorf("http.retry_max 不能为负数：%d", *f.RetryMax)
		}
		h.RetryMax = *f.RetryMax
	}
	if f.Timeout != nil {
		if *f.Timeout <= 0 {
			return HTTP{}, fmt.Errorf("http.timeout 必须大于 0：%s", *f.Timeout)
		}
		h.Timeout = *f.Timeout
	}
	h.ProxyURL = strings.TrimSpace(f.ProxyURL)
	if h.ProxyURL != "" {
		if _, err := url.Parse(h.ProxyURL); err != nil {
			return HTTP{}, fmt.Errorf("http.proxy_url 无效：%w", err)
		}
	}
	if h.ImageProxy && h.ProxyURL == "" {
		return HTTP{}, fmt.Errorf("http.image_proxy=true 但 http.proxy_url 为空")
	}
	return h, nil
}

func mergeLLM(f LLMFile) (LLM, error) {
	provider := strings.ToLower(strings.TrimSpace(f.Provider))
	if provider == "" {
		provider = DefaultLLMProvider
	}
	model, ok := defaultModels[provider]
	if !ok {
		return LLM{}, fmt.Errorf("llm.provider 只能是 openai / deepseek / ollama / mock，实际是 %q", f.Provider)
	}
	if m := strings.TrimSpace(f.Model); m != "" {
		model = m
	}

	key := strings.TrimSpace(f.APIKey)
	if key == "" {
		env := strings.TrimSpace(f.APIKeyEnv)
		if env == "" {
			env = DefaultAPIKeyEnv
		}
		key = strings.TrimSpace(os.Getenv(env))
	}

	base := strings.TrimSpace(f.BaseURL)
	if base != "" {
		if err := validateHTTPURL(base); err != nil {
			return LLM{}, fmt.Errorf("llm.base_url 无效：%w", err)
		}
	}
	if provider == "deepseek" && base == "" {
		return LLM{}, fmt.Errorf("llm.provider=deepseek 需要配置 llm.base_url")
	}
	return LLM{Provider: provider, Model: model, APIKey: key, BaseURL: base}, nil
}

func mergeCompose(f ComposeFile) (Compose, error) {
	c := Compose{
		MinWords:      DefaultMinWords,
		MaxExtensions: DefaultMaxExtensions,
		WordCount:     DefaultWordCount,
		OnShort:       DefaultOnShort,
		Language:      DefaultLanguage,
	}
	if f.MinWords != nil {
		if *f.MinWords <= 0 {
			return Compose{}, fmt.Errorf("compose.min_words 必须大于 0：%d", *f.MinWords)
		}
		c.MinWords = *f.MinWords
	}
	if f.MaxExtensions != nil {
		if *f.MaxExtensions < 0 {
			return Compose{}, fmt.Errorf("compose.max_extensions 不能为负数：%d", *f.MaxExtensions)
		}
		c.MaxExtensions = *f.MaxExtensions
	}
	if v := strings.ToLower(strings.TrimSpace(f.WordCount)); v != "" {
		if v != "raw" && v != "text" {
			return Compose{}, fmt.Errorf("compose.word_count 只能是 raw 或 text，实际是 %q", f.WordCount)
		}
		c.WordCount = v
	}
	if v := strings.ToLower(strings.TrimSpace(f.OnShort)); v != "" {
		if v != "fail" && v != "accept" {
			return Compose{}, fmt.Errorf("compose.on_short 只能是 fail 或 accept，实际是 %q", f.OnShort)
		}
		c.OnShort = v
	}
	if v := strings.TrimSpace(f.Language); v != "" {
		c.Language = v
	}
	if v := strings.TrimSpace(f.SiteBaseURL); v != "" {
		if err := validateHTTPURL(v); err != nil {
			return Compose{}, fmt.Errorf("compose.site_base_url 无效：%w", err)
		}
		c.SiteBaseURL = v
	}
	return c, nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("必须是 http/https 绝对地址：%q", raw)
	}
	return nil
}

func pathOr(root, p, def string) string {
	if strings.TrimSpace(p) == "" {
		p = def
	}
	return absCleanFrom(root, p)
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return base
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件；未知字段视为错误。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
