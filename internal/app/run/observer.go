package run

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/John-Robertt/watchguide/internal/config"
	"github.com/John-Robertt/watchguide/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：CLI 的 keepalive ticker 与 run 层会同时调用。
type Observer interface {
	// OnStart 在 ExecuteExtract / ExecuteCompose 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(command string, eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemStart 在开始处理某一条 URL / 记录时调用（生成一篇长文可能要数分钟）。
	OnItemStart(idx, total int, key string)
	// OnItemDone 在某一条处理完成时调用（用于每条结果的一行输出）。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
}

// Options 是两个命令共用的可选依赖。
type Options struct {
	Observer Observer
	Logger   *slog.Logger

	// Sleep 为空时使用 sleepCtx；测试可注入以记录请求间隔。
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o Options) sleep() func(ctx context.Context, d time.Duration) error {
	if o.Sleep != nil {
		return o.Sleep
	}
	return sleepCtx
}
