package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/watchguide/internal/app/run"
	"github.com/John-Robertt/watchguide/internal/config"
	"github.com/John-Robertt/watchguide/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：生成一篇长文可能要数分钟，期间定期输出一行，降低等待焦虑
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total    int
	done     int
	ok       int
	degraded int
	fail     int
	skip     int
	active   string

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 10 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(command string, eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "apply"
	modeHint := ""
	if eff.DryRun {
		mode = "dry-run"
		if command == domain.CommandExtract {
			modeHint = " (不写目录/不下载图片/不写缓存)"
		} else {
			modeHint = " (不调用模型/不写页面)"
		}
	}

	fmt.Fprintf(p.w, "[%s] watchguide %s (%s)\n", now.Format("15:04:05"), command, mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  root: %s\n", eff.Root)
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	switch command {
	case domain.CommandExtract:
		fmt.Fprintf(p.w, "  urls: %d\n", len(eff.URLs))
		fmt.Fprintf(p.w, "  delay: %s\n", eff.Delay)
		fmt.Fprintf(p.w, "  use_cache: %s\n", onOff(eff.UseCache))
		fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.HTTP.ProxyURL))
		fmt.Fprintf(p.w, "  image_proxy: %s\n", onOff(eff.HTTP.ImageProxy))
	default:
		fmt.Fprintf(p.w, "  llm: %s (%s)\n", eff.LLM.Provider, eff.LLM.Model)
		if eff.LLM.BaseURL != "" {
			fmt.Fprintf(p.w, "  base_url: %s\n", truncate(eff.LLM.BaseURL, 120))
		}
		fmt.Fprintf(p.w, "  min_words: %d (%s)\n", eff.Compose.MinWords, eff.Compose.WordCount)
		fmt.Fprintf(p.w, "  max_extensions: %d on_short=%s\n", eff.Compose.MaxExtensions, eff.Compose.OnShort)
		fmt.Fprintf(p.w, "  force: %s\n", onOff(eff.Force))
	}

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  catalog: %s\n", eff.Catalog)
	if command == domain.CommandExtract {
		fmt.Fprintf(p.w, "  images: %s\n", eff.ImagesDir)
	} else {
		fmt.Fprintf(p.w, "  out: %s\n", eff.OutDir)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "load":
		fmt.Fprintf(p.w, "读取目录: watches=%d (%s)\n", intField(fields, "watches"), formatShortDuration(dur))
	case "plan":
		fmt.Fprintf(p.w, "规划: pages=%d skip=%d (%s)\n",
			intField(fields, "pages"), intField(fields, "skip"), formatShortDuration(dur),
		)
	case "exec":
		p.total = intField(fields, "total_items")
		fmt.Fprintf(p.w, "执行: total_items=%d\n\n", p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	case "catalog":
		fmt.Fprintf(p.w, "\n目录: watches=%d (%s)\n", intField(fields, "watches"), formatShortDuration(dur))
	case "sitemap":
		fmt.Fprintf(p.w, "\nsitemap: pages=%d (%s)\n", intField(fields, "pages"), formatShortDuration(dur))
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemStart(idx, total int, key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = key
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// idx/total 由 run 层给出；这里同时维护自己的计数，供 keepalive 使用。
	p.done = idx
	p.total = total
	p.active = ""

	key := res.Key
	if key == "" {
		key = res.URL
	}

	switch res.Status {
	case domain.StatusProcessed:
		p.ok++
		fmt.Fprintf(p.w, "[%d/%d] %s OK%s (%s)\n", idx, total, key, formatWarnings(res.Warnings), formatShortDuration(dur))
	case domain.StatusDegraded:
		p.degraded++
		fmt.Fprintf(p.w, "[%d/%d] %s DEGRADED%s (%s)\n", idx, total, key, formatWarnings(res.Warnings), formatShortDuration(dur))
	case domain.StatusSkipped:
		p.skip++
		fmt.Fprintf(p.w, "[%d/%d] %s SKIP (已存在，使用 --force 重新生成) (%s)\n", idx, total, key, formatShortDuration(dur))
	case domain.StatusFailed:
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s (%s)\n",
			idx, total, key, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n", idx, total, key, strings.ToUpper(res.Status), formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

// Stop 停止 keepalive ticker（运行提前结束时由 CLI 调用；可重复调用）。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) progressLineLocked() string {
	line := fmt.Sprintf("进度: done=%d/%d ok=%d degraded=%d fail=%d skip=%d elapsed=%s",
		p.done, p.total, p.ok, p.degraded, p.fail, p.skip, formatElapsed(time.Since(p.startedAt)),
	)
	if p.active != "" {
		line += " active=" + truncate(p.active, 80)
	}
	return line
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stopCh := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 10 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done < p.total && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintln(p.w, p.progressLineLocked())
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatWarnings(ws []string) string {
	if len(ws) == 0 {
		return ""
	}
	s := " warn=" + truncate(ws[0], 90)
	if len(ws) > 1 {
		s += fmt.Sprintf(" (+%d)", len(ws)-1)
	}
	return s
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
