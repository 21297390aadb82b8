package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/John-Robertt/watchguide/internal/config"
	"github.com/John-Robertt/watchguide/internal/domain"
)

func TestProgressUI_ItemLines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnStart(domain.CommandCompose, config.EffectiveConfig{Root: "/srv/site", LLM: config.LLM{Provider: "mock", Model: "mock"}})
	p.OnPhaseDone("exec", map[string]any{"total_items": 3}, 0)
	p.OnItemStart(1, 3, "Rolex_Day-Date_36.html")
	p.OnItemDone(1, 3, domain.ItemResult{Key: "Rolex_Day-Date_36.html", Status: domain.StatusProcessed}, 1500*time.Millisecond)
	p.OnItemDone(2, 3, domain.ItemResult{Key: "Omega_Speedmaster.html", Status: domain.StatusDegraded, Warnings: []string{"元数据解析失败", "x"}}, 0)
	p.OnItemDone(3, 3, domain.ItemResult{Key: "Bulgari_Octo.html", Status: domain.StatusFailed, ErrorCode: domain.ErrCodeGenerationFailed, ErrorMsg: "503"}, 0)
	p.Stop()

	out := buf.String()
	assert.Contains(t, out, "watchguide compose (apply)")
	assert.Contains(t, out, "llm: mock (mock)")
	assert.Contains(t, out, "[1/3] Rolex_Day-Date_36.html OK (1.5s)")
	assert.Contains(t, out, "[2/3] Omega_Speedmaster.html DEGRADED warn=元数据解析失败 (+1)")
	assert.Contains(t, out, "[3/3] Bulgari_Octo.html FAIL generation_failed: 503")
	assert.False(t, p.tickerStarted, "最后一条完成后 ticker 已停止")
}

func TestProgressUI_ProgressLineShowsActive(t *testing.T) {
	p := newProgressUI(&bytes.Buffer{})
	p.startedAt = time.Now()
	p.total = 2
	p.OnItemStart(1, 2, "https://watchbase.com/rolex/day-date/128348rbr-0026")

	line := p.progressLineLocked()
	assert.True(t, strings.HasPrefix(line, "进度: done=0/2"))
	assert.Contains(t, line, "active=https://watchbase.com/rolex/day-date/128348rbr-0026")
}

func TestFormatProxy(t *testing.T) {
	assert.Equal(t, "off", formatProxy(""))
	assert.Equal(t, "on (http://proxy.local:8080, auth=on)", formatProxy("http://u:p@proxy.local:8080"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "éé...", truncate("éééééé", 5), "按 rune 截断")
}
