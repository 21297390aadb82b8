package genai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// 调用类型；MockLLM 与日志据此区分。
const (
	KindDraft     = "draft"
	KindExtend    = "extend"
	KindMetadata  = "metadata"
	KindTranslate = "translate"
)

// Prompt 是一次模型调用的输入。
type Prompt struct {
	Kind   string
	System string
	User   string
}

// LLMClient 抽象生成式模型：一次阻塞的请求/响应。
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Settings 是构造具体后端所需的配置。
type Settings struct {
	Provider string // openai / deepseek / ollama / mock
	Model    string
	APIKey   string
	BaseURL  string

	HTTPClient *http.Client
}

// New 按 Provider 构造后端。
func New(s Settings) (LLMClient, error) {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "", "openai":
		return NewOpenAILLM(s)
	case "deepseek":
		if strings.TrimSpace(s.BaseURL) == "" {
			return nil, fmt.Errorf("deepseek 需要配置 llm.base_url")
		}
		return NewOpenAILLM(s)
	case "ollama":
		return NewOllamaLLM(s)
	case "mock":
		return MockLLM{}, nil
	default:
		return nil, fmt.Errorf("未知的 llm.provider：%q", s.Provider)
	}
}
