package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/watchguide/internal/app/run"
	"github.com/John-Robertt/watchguide/internal/config"
	"github.com/John-Robertt/watchguide/internal/domain"
	"github.com/John-Robertt/watchguide/internal/genai"
	"github.com/John-Robertt/watchguide/internal/infra/fsx"
	"github.com/John-Robertt/watchguide/internal/provider"
	"github.com/John-Robertt/watchguide/internal/provider/watchbase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

func runMain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(stdout)
		return 0
	}

	switch args[0] {
	case domain.CommandExtract, domain.CommandCompose:
		return runCmd(ctx, args[0], args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "未知命令：%q\n\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func runCmd(ctx context.Context, command string, args []string, stdout, stderr io.Writer) int {
	for _, a := range args {
		if isHelp(a) {
			printCmdUsage(stdout, command)
			return 0
		}
	}

	ra, err := parseArgs(command, args)
	if err != nil {
		fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
		printCmdUsage(stderr, command)
		return 2
	}

	level := slog.LevelInfo
	if ra.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Config:      ra.Config,
		Root:        ra.Root,
		URLs:        ra.URLs,
		DryRun:      ra.DryRun,
		DryRunSet:   ra.DryRunSet,
		UseCache:    ra.UseCache,
		UseCacheSet: ra.UseCacheSet,
		Force:       ra.Force,
	})
	if err != nil {
		emitReport(stdout, stderr, syntheticReport(command, ra.DryRunSet && ra.DryRun, config.Code(err), err.Error()))
		return 1
	}
	if eff.ConfigFile != "" {
		log.Debug("已加载配置文件", "path", eff.ConfigFile)
	}

	progressW, interactive := pickProgressWriter(stdout, stderr)
	opts := run.Options{Logger: log}
	var ui *progressUI
	if interactive {
		ui = newProgressUI(progressW)
		opts.Observer = ui
	}

	var rr domain.RunReport
	switch command {
	case domain.CommandExtract:
		reg, e := provider.NewRegistry(watchbase.Provider{})
		if e != nil {
			fmt.Fprintf(stderr, "初始化 provider registry 失败：%v\n", e)
			return 1
		}
		rr = run.ExecuteExtract(ctx, eff, reg, opts)
	case domain.CommandCompose:
		var llm genai.LLMClient
		if !eff.DryRun {
			llm, err = genai.New(genai.Settings{
				Provider: eff.LLM.Provider,
				Model:    eff.LLM.Model,
				APIKey:   eff.LLM.APIKey,
				BaseURL:  eff.LLM.BaseURL,
			})
			if err != nil {
				emitReport(stdout, stderr, syntheticReport(command, eff.DryRun, domain.ErrCodeConfigInvalid, fmt.Sprintf("初始化 llm 失败：%v", err)))
				return 1
			}
		}
		rr = run.ExecuteCompose(ctx, eff, llm, opts)
	}
	if ui != nil {
		ui.Stop()
	}

	// apply：写入 <root>/cache/<command>-report.json；dry-run 禁止落盘。
	if !eff.DryRun {
		if err := writeReportFile(eff.Root, rr); err != nil {
			fmt.Fprintf(stderr, "写入 report 失败：%v\n", err)
			emitReport(stdout, stderr, rr)
			return 1
		}
	}

	emitReport(stdout, stderr, rr)
	if interactive {
		emitLocations(progressW, command, eff)
	}
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

type cmdArgs struct {
	Config      string
	Root        string
	URLs        []string
	DryRun      bool
	DryRunSet   bool
	UseCache    bool
	UseCacheSet bool
	Force       bool
	Verbose     bool
}

func parseArgs(command string, args []string) (cmdArgs, error) {
	ca := cmdArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--config" || a == "--root":
			if i+1 >= len(args) {
				return cmdArgs{}, fmt.Errorf("%s 需要一个值", a)
			}
			i++
			if a == "--config" {
				ca.Config = args[i]
			} else {
				ca.Root = args[i]
			}
		case strings.HasPrefix(a, "--config="):
			ca.Config = strings.TrimPrefix(a, "--config=")
		case strings.HasPrefix(a, "--root="):
			ca.Root = strings.TrimPrefix(a, "--root=")
		case a == "--dry-run" || strings.HasPrefix(a, "--dry-run="):
			v, err := boolFlag(a, "--dry-run")
			if err != nil {
				return cmdArgs{}, err
			}
			ca.DryRun, ca.DryRunSet = v, true
		case a == "--use-cache" || strings.HasPrefix(a, "--use-cache="):
			if command != domain.CommandExtract {
				return cmdArgs{}, fmt.Errorf("--use-cache 只适用于 extract")
			}
			v, err := boolFlag(a, "--use-cache")
			if err != nil {
				return cmdArgs{}, err
			}
			ca.UseCache, ca.UseCacheSet = v, true
		case a == "--force":
			if command != domain.CommandCompose {
				return cmdArgs{}, fmt.Errorf("--force 只适用于 compose")
			}
			ca.Force = true
		case a == "-v" || a == "--verbose":
			ca.Verbose = true
		case strings.HasPrefix(a, "-"):
			return cmdArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if command != domain.CommandExtract {
				return cmdArgs{}, fmt.Errorf("compose 不接受位置参数：%q", a)
			}
			ca.URLs = append(ca.URLs, a)
		}
	}

	if ca.Config != "" && strings.TrimSpace(ca.Config) == "" {
		return cmdArgs{}, fmt.Errorf("--config 不能为空")
	}
	return ca, nil
}

// boolFlag 解析 --x / --x=true / --x=false。
func boolFlag(arg, name string) (bool, error) {
	if arg == name {
		return true, nil
	}
	switch v := strings.TrimPrefix(arg, name+"="); v {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%s 只能是 true 或 false，实际是 %q", name, v)
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  watchguide extract [url...] [--config file] [--root dir] [--dry-run[=true|false]] [--use-cache[=true|false]] [-v]
  watchguide compose [--config file] [--root dir] [--dry-run[=true|false]] [--force] [-v]

命令：
  extract  抓取目录页，写出 all_watches.json 与图片
  compose  读取 all_watches.json，生成文章并写出 HTML 页面

使用 "watchguide <命令> --help" 查看详细说明。
`)
}

func printCmdUsage(w io.Writer, command string) {
	switch command {
	case domain.CommandExtract:
		fmt.Fprint(w, `用法：
  watchguide extract [url...] [--config file] [--root dir] [--dry-run[=true|false]] [--use-cache[=true|false]] [-v]

参数：
  url          要抓取的目录页（未指定则读配置文件；最终默认内置列表）
  --config     配置文件路径（默认 <root>/watchguide.yaml，可选）
  --root       工作目录（默认配置文件所在目录或当前目录）
  --dry-run    只抓取与解析，不写目录/图片/缓存
  --use-cache  优先使用 <root>/cache 下的页面缓存
  -v           输出 debug 日志
  -h, --help   显示帮助
`)
	default:
		fmt.Fprint(w, `用法：
  watchguide compose [--config file] [--root dir] [--dry-run[=true|false]] [--force] [-v]

参数：
  --config     配置文件路径（默认 <root>/watchguide.yaml，可选）
  --root       工作目录（默认配置文件所在目录或当前目录）
  --dry-run    只规划，不调用模型、不写页面
  --force      重新生成已存在的页面
  -v           输出 debug 日志
  -h, --help   显示帮助
`)
	}
}

func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	summary := fmt.Sprintf("完成：processed=%d degraded=%d skipped=%d failed=%d\n",
		rr.Summary.Processed, rr.Summary.Degraded, rr.Summary.Skipped, rr.Summary.Failed,
	)
	if isTTY(stdout) {
		fmt.Fprint(stdout, summary)
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed {
				continue
			}
			key := it.Key
			if key == "" {
				key = it.URL
			}
			if key == "" {
				key = "<unknown>"
			}
			fmt.Fprintf(stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprint(stderr, summary)
}

func syntheticReport(command string, dryRun bool, code, msg string) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		RunID:      uuid.NewString(),
		Command:    command,
		DryRun:     dryRun,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  msg,
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(root string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(filepath.Join(root, "cache"), rr.Command+"-report.json", b)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(stderr) {
		return stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(stdout) {
		return stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, command string, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	if !eff.DryRun {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Root, "cache", command+"-report.json"))
	}
	switch command {
	case domain.CommandExtract:
		fmt.Fprintf(w, "catalog: %s\n", eff.Catalog)
		fmt.Fprintf(w, "images: %s\n", eff.ImagesDir)
	default:
		fmt.Fprintf(w, "out: %s\n", eff.OutDir)
	}
}
