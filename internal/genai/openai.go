package genai

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM 通过 openai-go 调用 chat completions（也用于 OpenAI 兼容的 deepseek）。
type OpenAILLM struct {
	Model string
	Opts  []option.RequestOption
}

func NewOpenAILLM(s Settings) (*OpenAILLM, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, errors.New("缺少 API key：请设置 llm.api_key 或 llm.api_key_env 指向的环境变量")
	}
	if strings.TrimSpace(s.Model) == "" {
		return nil, errors.New("llm.model 不能为空")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		// 失败不重试：单次调用失败即记为条目失败。
		option.WithMaxRetries(0),
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	if s.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(s.HTTPClient))
	}
	return &OpenAILLM{Model: s.Model, Opts: opts}, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	client := openai.NewClient(o.Opts...)

	var msgs []openai.ChatCompletionMessageParamUnion
	if prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.System))
	}
	msgs = append(msgs, openai.UserMessage(prompt.User))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: msgs,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
