package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaLLM 调用 Ollama 原生接口 /api/generate（stream=false）。
type OllamaLLM struct {
	BaseURL string
	Model   string
	HC      *http.Client
}

func NewOllamaLLM(s Settings) (*OllamaLLM, error) {
	if strings.TrimSpace(s.Model) == "" {
		return nil, errors.New("llm.model 不能为空")
	}
	base := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if base == "" {
		base = defaultOllamaURL
	}
	hc := s.HTTPClient
	if hc == nil {
		// 长文生成耗时较长。
		hc = &http.Client{Timeout: 10 * time.Minute}
	}
	return &OllamaLLM{BaseURL: base, Model: s.Model, HC: hc}, nil
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func (o *OllamaLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	b, err := json.Marshal(ollamaRequest{
		Model:  o.Model,
		Prompt: prompt.User,
		System: prompt.System,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("ollama 请求编码失败：%w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.HC.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama 请求失败：%w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama 返回 HTTP %d：%s", resp.StatusCode, truncate(string(body), 200))
	}

	var out ollamaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("ollama 响应不是合法 JSON：%w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama 错误：%s", out.Error)
	}
	return out.Response, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
