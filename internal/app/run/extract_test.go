package run

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/watchguide/internal/config"
	"github.com/John-Robertt/watchguide/internal/domain"
	"github.com/John-Robertt/watchguide/internal/provider"
	"github.com/John-Robertt/watchguide/internal/provider/watchbase"
)

const watchPage = `<!DOCTYPE html>
<html><body>
<div class="watch-main-image"><img src="/img/140-029-0.png"></div>
<table class="info-table">
  <tr><th>Brand:</th><td><a href="/a-lange-sohne">A. Lange &amp; Söhne</a></td></tr>
  <tr><th>Family:</th><td>Zeitwerk</td></tr>
  <tr><th>Reference:</th><td>140.029</td></tr>
  <tr><th>Name:</th><td>Zeitwerk</td></tr>
  <tr><th>Movement:</th><td><a href="/c">L043.1</a><div>Manual winding</div></td></tr>
  <tr><th>Produced:</th><td>2009</td></tr>
  <tr><th>Limited:</th><td>No</td></tr>
</table>
<table class="info-table">
  <tr><th>Material:</th><td>Platinum</td></tr>
</table>
<div class="watch-description"><p>Digital hours & minutes.</p></div>
<canvas id="pricechart" data-url="/prices/140-029.json"></canvas>
</body></html>`

// site 是一个最小的 watchbase 替身：目录页、价格接口、图片，外加 404 与非目录页。
type site struct {
	srv       *httptest.Server
	pageHits  atomic.Int32
	imageHits atomic.Int32
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{}
	mux := http.NewServeMux()
	mux.HandleFunc("/a-lange-sohne/zeitwerk/140-029", func(w http.ResponseWriter, r *http.Request) {
		s.pageHits.Add(1)
		_, _ = w.Write([]byte(watchPage))
	})
	mux.HandleFunc("/prices/140-029.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"labels":["2023","2024"],"datasets":[{"label":"Prix catalogue","data":[41000,43500]}]}`))
	})
	mux.HandleFunc("/img/140-029-0.png", func(w http.ResponseWriter, r *http.Request) {
		s.imageHits.Add(1)
		_, _ = w.Write([]byte("\x89PNG-fake"))
	})
	mux.HandleFunc("/not-a-watch", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>maintenance</p></body></html>"))
	})
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *site) url(path string) string { return s.srv.URL + path }

func testRegistry(t *testing.T) provider.Registry {
	t.Helper()
	reg, err := provider.NewRegistry(watchbase.Provider{Hosts: []string{"127.0.0.1"}})
	require.NoError(t, err)
	return reg
}

func testEff(root string, urls ...string) config.EffectiveConfig {
	return config.EffectiveConfig{
		Root:      root,
		Catalog:   filepath.Join(root, config.DefaultCatalog),
		ImagesDir: filepath.Join(root, config.DefaultImagesDir),
		OutDir:    filepath.Join(root, config.DefaultOutDir),
		URLs:      urls,
		HTTP:      config.HTTP{Timeout: 5 * time.Second},
		LLM:       config.LLM{Provider: "mock", Model: "mock"},
		Compose: config.Compose{
			MinWords:      50,
			MaxExtensions: 2,
			WordCount:     "raw",
			OnShort:       "fail",
			Language:      "français",
		},
	}
}

type recordObserver struct {
	mu sync.Mutex

	commands []string
	phases   []string
	started  []string
	items    []domain.ItemResult
}

func (o *recordObserver) OnStart(command string, eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commands = append(o.commands, command)
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnItemStart(idx, total int, key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, key)
}

func (o *recordObserver) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, res)
}

func TestExecuteExtract_WritesCatalogImagesAndCache(t *testing.T) {
	s := newSite(t)
	root := t.TempDir()
	good := s.url("/a-lange-sohne/zeitwerk/140-029")
	eff := testEff(root, s.url("/missing"), good, s.url("/not-a-watch"))
	obs := &recordObserver{}

	rr := ExecuteExtract(context.Background(), eff, testRegistry(t), Options{Observer: obs})

	require.Len(t, rr.Items, 3)
	assert.Equal(t, domain.CommandExtract, rr.Command)
	assert.NotEmpty(t, rr.RunID)
	assert.False(t, rr.DryRun)

	assert.Equal(t, domain.StatusFailed, rr.Items[0].Status)
	assert.Equal(t, domain.ErrCodeFetchFailed, rr.Items[0].ErrorCode)
	assert.Contains(t, rr.Items[0].ErrorMsg, "404")

	assert.Equal(t, domain.StatusProcessed, rr.Items[1].Status, "msg=%s", rr.Items[1].ErrorMsg)
	assert.Equal(t, "a.-lange-and-söhne_140.029", rr.Items[1].Key)
	assert.Empty(t, rr.Items[1].Warnings)

	assert.Equal(t, domain.StatusFailed, rr.Items[2].Status)
	assert.Equal(t, domain.ErrCodeParseFailed, rr.Items[2].ErrorCode)

	assert.Equal(t, domain.ReportSummary{Processed: 1, Failed: 2}, rr.Summary)

	b, err := os.ReadFile(eff.Catalog)
	require.NoError(t, err)
	recs, err := domain.DecodeCatalog(b)
	require.NoError(t, err)
	require.Len(t, recs, 1, "失败的 URL 不进入目录")
	rec := recs[0]
	assert.Equal(t, "A. Lange & Söhne", rec.Brand)
	assert.Equal(t, s.url("/img/140-029-0.png"), rec.ImageURL)
	assert.Equal(t, "images/a.-lange-and-söhne_140.029.png", rec.LocalImagePath)
	q, ok := rec.Prices.Latest()
	require.True(t, ok)
	assert.Equal(t, "43500", q.Value)
	assert.True(t, strings.Contains(string(b), `"brand": "A. Lange & Söhne"`), "目录不转义 &")

	img, err := os.ReadFile(filepath.Join(root, "images", "a.-lange-and-söhne_140.029.png"))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG-fake", string(img))

	entries, err := os.ReadDir(filepath.Join(root, "cache", "pages", "watchbase"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "页面 HTML 与价格 JSON 各一份")

	assert.Equal(t, []string{domain.CommandExtract}, obs.commands)
	assert.Equal(t, []string{"exec", "catalog"}, obs.phases)
	assert.Len(t, obs.started, 3)
	assert.Len(t, obs.items, 3)
}

func TestExecuteExtract_RerunIsByteIdentical(t *testing.T) {
	s := newSite(t)
	root := t.TempDir()
	eff := testEff(root, s.url("/a-lange-sohne/zeitwerk/140-029"))

	ExecuteExtract(context.Background(), eff, testRegistry(t), Options{})
	first, err := os.ReadFile(eff.Catalog)
	require.NoError(t, err)

	ExecuteExtract(context.Background(), eff, testRegistry(t), Options{})
	second, err := os.ReadFile(eff.Catalog)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestExecuteExtract_UseCacheSkipsPageFetch(t *testing.T) {
	s := newSite(t)
	root := t.TempDir()
	eff := testEff(root, s.url("/a-lange-sohne/zeitwerk/140-029"))

	ExecuteExtract(context.Background(), eff, testRegistry(t), Options{})
	require.EqualValues(t, 1, s.pageHits.Load())
	first, err := os.ReadFile(eff.Catalog)
	require.NoError(t, err)

	eff.UseCache = true
	rr := ExecuteExtract(context.Background(), eff, testRegistry(t), Options{})
	assert.Equal(t, 1, rr.Summary.Processed)
	assert.EqualValues(t, 1, s.pageHits.Load(), "命中缓存时不再请求目录页")

	second, err := os.ReadFile(eff.Catalog)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestExecuteExtract_DryRunWritesNothing(t *testing.T) {
	s := newSite(t)
	root := t.TempDir()
	eff := testEff(root, s.url("/a-lange-sohne/zeitwerk/140-029"))
	eff.DryRun = true

	rr := ExecuteExtract(context.Background(), eff, testRegistry(t), Options{})
	require.Len(t, rr.Items, 1)
	assert.Equal(t, domain.StatusProcessed, rr.Items[0].Status)
	assert.True(t, rr.DryRun)
	assert.EqualValues(t, 0, s.imageHits.Load(), "dry-run 不下载图片")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecuteExtract_ImageFailureIsWarning(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/w", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Replace(watchPage, `data-url="/prices/140-029.json"`, `data-url="/prices/gone.json"`, 1)))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	root := t.TempDir()
	eff := testEff(root, srv.URL+"/w")
	rr := ExecuteExtract(context.Background(), eff, testRegistry(t), Options{})

	require.Len(t, rr.Items, 1)
	it := rr.Items[0]
	assert.Equal(t, domain.StatusProcessed, it.Status)
	assert.Len(t, it.Warnings, 2, "价格与图片各一条 warning：%v", it.Warnings)

	b, err := os.ReadFile(eff.Catalog)
	require.NoError(t, err)
	recs, err := domain.DecodeCatalog(b)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "", recs[0].LocalImagePath)
	assert.True(t, recs[0].Prices.IsEmpty())
	assert.Contains(t, string(b), `"prices": []`)
}

func TestExecuteExtract_UnknownHost(t *testing.T) {
	root := t.TempDir()
	eff := testEff(root, "https://example.com/watch/1")
	eff.DryRun = true

	rr := ExecuteExtract(context.Background(), eff, testRegistry(t), Options{})
	require.Len(t, rr.Items, 1)
	assert.Equal(t, domain.ErrCodeParseFailed, rr.Items[0].ErrorCode)
}

func TestExecuteExtract_ImageProxyWithoutProxyIsConfigError(t *testing.T) {
	root := t.TempDir()
	eff := testEff(root, "https://watchbase.com/x")
	eff.HTTP.ImageProxy = true

	rr := ExecuteExtract(context.Background(), eff, testRegistry(t), Options{})
	require.Len(t, rr.Items, 1)
	assert.Equal(t, domain.ErrCodeConfigInvalid, rr.Items[0].ErrorCode)
}

func TestExecuteExtract_DelayOnlyBetweenSuccesses(t *testing.T) {
	s := newSite(t)
	root := t.TempDir()
	good := s.url("/a-lange-sohne/zeitwerk/140-029")
	eff := testEff(root, good, s.url("/missing"), good)
	eff.DryRun = true
	eff.Delay = 3 * time.Second

	var slept []time.Duration
	opts := Options{Sleep: func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}}
	rr := ExecuteExtract(context.Background(), eff, testRegistry(t), opts)

	assert.Equal(t, domain.ReportSummary{Processed: 2, Failed: 1}, rr.Summary)
	// 第一条成功后等待；失败条与最后一条之后都不等。
	assert.Equal(t, []time.Duration{3 * time.Second}, slept)

	slept = nil
	eff.Delay = 0
	ExecuteExtract(context.Background(), eff, testRegistry(t), opts)
	assert.Empty(t, slept, "delay=0 不等待")
}

func TestSleepCtx_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := sleepCtx(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
