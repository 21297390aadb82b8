package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/watchguide/internal/app"
	"github.com/John-Robertt/watchguide/internal/app/planner"
	"github.com/John-Robertt/watchguide/internal/config"
	"github.com/John-Robertt/watchguide/internal/domain"
	"github.com/John-Robertt/watchguide/internal/genai"
	"github.com/John-Robertt/watchguide/internal/infra/fsx"
	"github.com/John-Robertt/watchguide/internal/page"
	"github.com/John-Robertt/watchguide/internal/sitemap"
)

// ExecuteCompose 读取目录 JSON，为每条记录生成长文并渲染一张 HTML 页面。
//
// 记录逐条串行处理：初稿/扩写 -> 元数据 -> 描述翻译 -> 渲染 -> 原子写入。
// 已存在的页面默认跳过（--force 重新生成）；dry-run 只规划，不调用模型、不写文件。
func ExecuteCompose(ctx context.Context, eff config.EffectiveConfig, llm genai.LLMClient, opts Options) domain.RunReport {
	started := time.Now().UTC()
	obs := opts.Observer
	log := opts.logger()

	if obs != nil {
		obs.OnStart(domain.CommandCompose, eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Command:   domain.CommandCompose,
		DryRun:    eff.DryRun,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 16),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	loadStarted := time.Now()
	records, item, ok := loadCatalog(eff)
	if !ok {
		rr.Items = append(rr.Items, item)
		return finish()
	}
	pages := app.GroupByPage(records)
	if obs != nil {
		obs.OnPhaseDone("load", map[string]any{
			"watches": len(records),
		}, time.Since(loadStarted))
	}

	planStarted := time.Now()
	st, err := planner.ReadOutState(eff.OutDir)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(relTo(eff.Root, eff.OutDir), domain.ErrCodeIOFailed, fmt.Sprintf("读取输出目录失败：%v", err)))
		return finish()
	}
	plans := make([]planner.PagePlan, 0, len(pages))
	var skips int
	for _, p := range pages {
		pl := planner.PlanPage(p.Name, st, eff.Force)
		if pl.Skip {
			skips++
		}
		plans = append(plans, pl)
	}
	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{
			"pages": len(plans),
			"skip":  skips,
		}, time.Since(planStarted))
	}

	var w *genai.Writer
	if !eff.DryRun && skips < len(plans) {
		if err := ensureDir(eff.OutDir); err != nil {
			item := syntheticFailed(relTo(eff.Root, eff.OutDir), "", "")
			fillIOError(&item, "创建输出目录", err)
			rr.Items = append(rr.Items, item)
			return finish()
		}
		w, err = genai.NewWriter(llm, genai.Options{
			MinWords:      eff.Compose.MinWords,
			MaxExtensions: eff.Compose.MaxExtensions,
			WordCount:     eff.Compose.WordCount,
			Language:      eff.Compose.Language,
			Logger:        log,
		})
		if err != nil {
			rr.Items = append(rr.Items, syntheticFailed("", domain.ErrCodeConfigInvalid, err.Error()))
			return finish()
		}
	}

	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"total_items": len(pages),
		}, 0)
	}

	for i, p := range pages {
		pl := plans[i]
		if obs != nil {
			obs.OnItemStart(i+1, len(pages), p.Name)
		}
		oneStarted := time.Now()

		item := domain.ItemResult{
			Key:      p.Name,
			Output:   relTo(eff.Root, pl.Path),
			Status:   domain.StatusProcessed,
			Warnings: []string{},
		}
		switch {
		case pl.Skip:
			item.Status = domain.StatusSkipped
		case eff.DryRun:
			// 只规划
		default:
			composeOne(ctx, w, eff, p, &item, log)
		}
		rr.Items = append(rr.Items, item)
		if obs != nil {
			obs.OnItemDone(i+1, len(pages), item, time.Since(oneStarted))
		}
	}

	if eff.Compose.SiteBaseURL != "" && !eff.DryRun && ctx.Err() == nil {
		sitemapStarted := time.Now()
		n, err := writeSitemap(eff)
		if err != nil {
			item := syntheticFailed(sitemap.FileName, "", "")
			fillIOError(&item, "写入 sitemap ", err)
			rr.Items = append(rr.Items, item)
			log.Error("写入 sitemap 失败", "dir", eff.OutDir, "err", err)
		} else if obs != nil {
			obs.OnPhaseDone("sitemap", map[string]any{
				"pages": n,
			}, time.Since(sitemapStarted))
		}
	}
	return finish()
}

func loadCatalog(eff config.EffectiveConfig) ([]domain.WatchRecord, domain.ItemResult, bool) {
	key := relTo(eff.Root, eff.Catalog)
	b, err := os.ReadFile(eff.Catalog)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, syntheticFailed(key, domain.ErrCodeIOFailed, fmt.Sprintf("目录 JSON 不存在：%s（请先运行 watchguide extract）", eff.Catalog)), false
		}
		return nil, syntheticFailed(key, domain.ErrCodeIOFailed, fmt.Sprintf("读取目录 JSON 失败：%v", err)), false
	}
	records, err := domain.DecodeCatalog(b)
	if err != nil {
		return nil, syntheticFailed(key, domain.ErrCodeParseFailed, err.Error()), false
	}
	return records, domain.ItemResult{}, true
}

func composeOne(ctx context.Context, w *genai.Writer, eff config.EffectiveConfig, p app.PageItem, item *domain.ItemResult, log *slog.Logger) {
	rec := p.Record

	d, err := w.Draft(ctx, rec)
	if err != nil {
		var te *genai.ThresholdUnreachableError
		if !errors.As(err, &te) || eff.Compose.OnShort != "accept" || d.HTML == "" {
			fillGenerationError(item, err)
			log.Warn("生成失败", "page", p.Name, "code", item.ErrorCode, "err", err)
			return
		}
		item.Status = domain.StatusDegraded
		item.Warnings = append(item.Warnings, fmt.Sprintf("词数不足，按 on_short=accept 保留：%v", te))
	}

	meta, err := w.Metadata(ctx, d.HTML)
	if err != nil {
		fillGenerationError(item, err)
		return
	}
	if meta.Fallback {
		item.Status = domain.StatusDegraded
		item.Warnings = append(item.Warnings, "元数据解析失败，已使用占位标题与描述")
	}
	bundle := domain.ArticleBundle{ArticleHTML: d.HTML, Metadata: meta, Words: d.Words, Extensions: d.Extensions}

	desc, err := w.Translate(ctx, rec.Description)
	if err != nil {
		fillGenerationError(item, err)
		return
	}

	b, err := page.Render(page.PageData{
		Record:      rec,
		Article:     bundle.ArticleHTML,
		Metadata:    bundle.Metadata,
		Description: desc,
	})
	if err != nil {
		fillIOError(item, "渲染页面", err)
		return
	}
	if err := fsx.WriteFileAtomic(eff.OutDir, p.Name, b); err != nil {
		fillIOError(item, "写入页面", err)
		return
	}
	log.Info("页面已写出", "page", p.Name, "words", bundle.Words, "extensions", bundle.Extensions, "fallback", bundle.Metadata.Fallback)
}

func writeSitemap(eff config.EffectiveConfig) (int, error) {
	names, err := sitemap.Collect(eff.OutDir)
	if err != nil {
		return 0, err
	}
	b, err := sitemap.Encode(eff.Compose.SiteBaseURL, names)
	if err != nil {
		return 0, err
	}
	if err := fsx.WriteFileAtomic(eff.OutDir, sitemap.FileName, b); err != nil {
		return 0, err
	}
	return len(names), nil
}
