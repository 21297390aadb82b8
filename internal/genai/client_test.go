package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Providers(t *testing.T) {
	_, err := New(Settings{Provider: "openai", Model: "o3-mini"})
	assert.Error(t, err, "缺少 api key 应报错")

	_, err = New(Settings{Provider: "deepseek", Model: "deepseek-chat", APIKey: "k"})
	assert.Error(t, err, "deepseek 缺少 base_url 应报错")

	_, err = New(Settings{Provider: "gemini"})
	assert.Error(t, err)

	c, err := New(Settings{Provider: "mock"})
	require.NoError(t, err)
	assert.IsType(t, MockLLM{}, c)

	c, err = New(Settings{Provider: "ollama", Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, defaultOllamaURL, c.(*OllamaLLM).BaseURL)
}

func TestOpenAILLM_Complete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"o3-mini",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"<p>Bonjour</p>"}}]}`))
	}))
	defer srv.Close()

	c, err := New(Settings{Provider: "openai", Model: "o3-mini", APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), Prompt{Kind: KindDraft, User: "Écris un article."})
	require.NoError(t, err)
	assert.Equal(t, "<p>Bonjour</p>", out)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "o3-mini", got.Model)
	require.Len(t, got.Messages, 1, "没有 System 时只发送 user 消息")
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "Écris un article.", got.Messages[0].Content)
}

func TestOpenAILLM_ServerErrorNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(Settings{Provider: "deepseek", Model: "deepseek-chat", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Prompt{User: "x"})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "失败不应重试")
}

func TestOllamaLLM_Complete(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3","response":"<p>Salut</p>","done":true}`))
	}))
	defer srv.Close()

	c, err := New(Settings{Provider: "ollama", Model: "llama3", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	out, err := c.Complete(context.Background(), Prompt{User: "Bonjour ?"})
	require.NoError(t, err)
	assert.Equal(t, "<p>Salut</p>", out)
	assert.Equal(t, ollamaRequest{Model: "llama3", Prompt: "Bonjour ?", Stream: false}, got)
}

func TestOllamaLLM_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(Settings{Provider: "ollama", Model: "nope", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Prompt{User: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestMockLLM_Deterministic(t *testing.T) {
	m := MockLLM{Words: 50}
	a, err := m.Complete(context.Background(), Prompt{Kind: KindDraft, User: "x"})
	require.NoError(t, err)
	b, _ := m.Complete(context.Background(), Prompt{Kind: KindDraft, User: "x"})
	assert.Equal(t, a, b)
	assert.Equal(t, 50, CountWords(a, WordCountRaw))

	meta, _ := m.Complete(context.Background(), Prompt{Kind: KindMetadata})
	md, reason := ParseMetadata(meta)
	assert.Empty(t, reason)
	assert.False(t, md.Fallback)

	tr, _ := m.Complete(context.Background(), TranslatePrompt("Steel case.", DefaultLanguage))
	assert.Equal(t, "(fr) Steel case.", tr)
}
