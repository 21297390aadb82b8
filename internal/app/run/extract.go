package run

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/watchguide/internal/config"
	"github.com/John-Robertt/watchguide/internal/domain"
	"github.com/John-Robertt/watchguide/internal/infra/cache"
	"github.com/John-Robertt/watchguide/internal/infra/fsx"
	"github.com/John-Robertt/watchguide/internal/infra/httpx"
	"github.com/John-Robertt/watchguide/internal/infra/imgx"
	"github.com/John-Robertt/watchguide/internal/provider"
	"github.com/John-Robertt/watchguide/internal/slug"
)

// ExecuteExtract 按配置顺序逐个抓取目录页，最后一次性写出目录 JSON。
//
// 单条 URL 的失败只记入 report，不影响后续 URL；图片与价格失败只记 warning。
// dry-run 只做 fetch+parse：不写目录、不下载图片、不写缓存。
func ExecuteExtract(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, opts Options) domain.RunReport {
	started := time.Now().UTC()
	obs := opts.Observer
	log := opts.logger()
	sleep := opts.sleep()

	if obs != nil {
		obs.OnStart(domain.CommandExtract, eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Command:   domain.CommandExtract,
		DryRun:    eff.DryRun,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, len(eff.URLs)+1),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	hopts := httpx.Options{
		ProxyURL:   eff.HTTP.ProxyURL,
		ImageProxy: eff.HTTP.ImageProxy,
		RetryMax:   eff.HTTP.RetryMax,
		Timeout:    eff.HTTP.Timeout,
	}
	pageClient, err := httpx.NewPageClient(hopts)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed("", domain.ErrCodeConfigInvalid, fmt.Sprintf("http.proxy_url 无效：%v", err)))
		return finish()
	}
	var imageClient *http.Client
	if !eff.DryRun {
		ic, e := httpx.NewImageClient(hopts)
		if e != nil {
			rr.Items = append(rr.Items, syntheticFailed("", domain.ErrCodeConfigInvalid, e.Error()))
			return finish()
		}
		imageClient = ic
	}

	store := cache.New(eff.Root, eff.DryRun)
	popts := provider.Options{}
	if eff.UseCache {
		popts.Cached = cachedPages(store, log)
	}

	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"total_items": len(eff.URLs),
		}, 0)
	}

	records := make([]domain.WatchRecord, 0, len(eff.URLs))
	for i, u := range eff.URLs {
		if obs != nil {
			obs.OnItemStart(i+1, len(eff.URLs), u)
		}
		oneStarted := time.Now()
		item, rec, ok := extractOne(ctx, eff, reg, u, pageClient, imageClient, store, popts, log)
		rr.Items = append(rr.Items, item)
		if ok {
			records = append(records, rec)
		}
		if obs != nil {
			obs.OnItemDone(i+1, len(eff.URLs), item, time.Since(oneStarted))
		}

		// 成功后礼貌等待；最后一条之后不等。
		if ok && i < len(eff.URLs)-1 && eff.Delay > 0 {
			_ = sleep(ctx, eff.Delay)
		}
	}

	if eff.DryRun {
		return finish()
	}
	if ctx.Err() != nil {
		// 中断时不覆盖已有目录，避免用半截结果替换上一次的完整输出。
		rr.Items = append(rr.Items, syntheticFailed(relTo(eff.Root, eff.Catalog), domain.ErrCodeIOFailed, "运行被中断，未写出目录 JSON"))
		return finish()
	}

	writeStarted := time.Now()
	b, err := domain.EncodeCatalog(records)
	if err == nil {
		err = fsx.WriteFile(eff.Catalog, b)
	}
	if err != nil {
		item := syntheticFailed(relTo(eff.Root, eff.Catalog), "", "")
		fillIOError(&item, "写入目录 JSON ", err)
		rr.Items = append(rr.Items, item)
		log.Error("写入目录失败", "path", eff.Catalog, "err", err)
		return finish()
	}
	log.Info("目录已写出", "path", eff.Catalog, "watches", len(records))
	if obs != nil {
		obs.OnPhaseDone("catalog", map[string]any{
			"watches": len(records),
		}, time.Since(writeStarted))
	}
	return finish()
}

func extractOne(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, pageURL string, pageClient, imageClient *http.Client, store cache.Store, popts provider.Options, log *slog.Logger) (domain.ItemResult, domain.WatchRecord, bool) {
	item := domain.ItemResult{
		Key:      slug.URLTail(pageURL),
		URL:      pageURL,
		Status:   domain.StatusProcessed,
		Warnings: []string{},
	}

	res, err := provider.Extract(ctx, reg, pageURL, pageClient, popts)
	if err != nil {
		fillProviderError(&item, err)
		log.Warn("抓取失败", "url", pageURL, "code", item.ErrorCode, "err", err)
		return item, domain.WatchRecord{}, false
	}
	item.Warnings = append(item.Warnings, res.Warnings...)
	for _, w := range res.Warnings {
		log.Warn("可选数据缺失", "url", pageURL, "warning", w)
	}

	rec := res.Record
	prefix := slug.ImagePrefix(rec.Brand, rec.Reference, pageURL)
	item.Key = prefix

	if eff.DryRun {
		return item, rec, true
	}

	// 缓存写入失败不影响本条结果。
	key := slug.CacheKey(pageURL)
	if !res.FromCache {
		if err := store.WritePage(res.Provider, key, res.HTML); err != nil {
			item.Warnings = append(item.Warnings, fmt.Sprintf("写入页面缓存失败：%v", err))
		}
	}
	if res.Prices != nil {
		if err := store.WritePrices(res.Provider, key, res.Prices); err != nil {
			item.Warnings = append(item.Warnings, fmt.Sprintf("写入价格缓存失败：%v", err))
		}
	}

	path, err := imgx.Download(ctx, imageClient, rec.ImageURL, eff.ImagesDir, prefix)
	if err != nil {
		item.Warnings = append(item.Warnings, fmt.Sprintf("图片下载失败：%v", err))
		log.Warn("图片下载失败", "url", rec.ImageURL, "err", err)
	}
	rec.LocalImagePath = relTo(eff.Root, path)
	item.Output = rec.LocalImagePath
	return item, rec, true
}

// cachedPages 把文件缓存适配为 provider.Cached；读失败视为未命中。
func cachedPages(store cache.Store, log *slog.Logger) provider.Cached {
	return func(prov, pageURL string) ([]byte, []byte, bool) {
		key := slug.CacheKey(pageURL)
		html, ok, err := store.ReadPage(prov, key)
		if err != nil {
			log.Debug("读取页面缓存失败", "provider", prov, "key", key, "err", err)
			return nil, nil, false
		}
		if !ok {
			return nil, nil, false
		}
		prices, ok, err := store.ReadPrices(prov, key)
		if err != nil || !ok {
			prices = nil
		}
		log.Debug("命中页面缓存", "provider", prov, "key", key)
		return html, prices, true
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
