package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/watchguide/internal/domain"
	"github.com/John-Robertt/watchguide/internal/genai"
	"github.com/John-Robertt/watchguide/internal/infra/fsx"
	"github.com/John-Robertt/watchguide/internal/provider"
)

func syntheticFailed(key, code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Key:       key,
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Warnings:  []string{},
	}
}

func fillProviderError(item *domain.ItemResult, err error) {
	item.Status = domain.StatusFailed

	var pe *provider.Error
	if errors.As(err, &pe) {
		switch pe.Stage {
		case "fetch":
			item.ErrorCode = domain.ErrCodeFetchFailed
			item.ErrorMsg = humanizeFetchError(pe.Provider, pe.Err)
		case "parse":
			item.ErrorCode = domain.ErrCodeParseFailed
			item.ErrorMsg = humanizeParseError(pe.Provider, pe.Err)
		default:
			item.ErrorCode = domain.ErrCodeFetchFailed
			item.ErrorMsg = fmt.Sprintf("%s 失败：%v", pe.Provider, pe.Err)
		}
		return
	}

	item.ErrorCode = domain.ErrCodeFetchFailed
	item.ErrorMsg = err.Error()
}

func humanizeFetchError(providerName string, err error) string {
	if err == nil {
		return providerName + " 抓取失败"
	}

	// HTTP 非 200：尽量给出可操作提示（反爬/限流是最常见问题）。
	var fe *provider.FetchError
	if errors.As(err, &fe) {
		switch fe.StatusCode {
		case 403, 429:
			return fmt.Sprintf("%s 返回 HTTP %d（可能触发反爬/限流）。建议调大 delay 或配置 http.proxy_url。", providerName, fe.StatusCode)
		case 404:
			return fmt.Sprintf("%s 返回 HTTP 404（页面不存在或已下架）：%s", providerName, fe.URL)
		default:
			return fmt.Sprintf("%s 返回 HTTP %d：%s", providerName, fe.StatusCode, fe.URL)
		}
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Sprintf("%s 抓取已取消。", providerName)
	}
	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 抓取超时。建议检查网络/代理，或调大 http.timeout 后重试。", providerName)
	}
	if strings.Contains(low, "tls") || strings.Contains(low, "handshake") || strings.Contains(low, "ssl") {
		return fmt.Sprintf("%s 连接失败（TLS/SSL）。建议配置 http.proxy_url 或稍后重试。", providerName)
	}

	return fmt.Sprintf("%s 抓取失败：%v", providerName, err)
}

func humanizeParseError(providerName string, err error) string {
	if err == nil {
		return providerName + " 解析失败"
	}
	// 解析失败通常意味着站点结构漂移或被返回了非预期页面（例如验证页/空内容）。
	return fmt.Sprintf("%s 解析失败（站点结构可能变化或返回了非目录页内容）：%v", providerName, err)
}

// fillGenerationError 把 genai 的错误归类为 threshold_unreachable / generation_failed。
func fillGenerationError(item *domain.ItemResult, err error) {
	item.Status = domain.StatusFailed

	var te *genai.ThresholdUnreachableError
	if errors.As(err, &te) {
		item.ErrorCode = domain.ErrCodeThresholdUnreachable
		item.ErrorMsg = fmt.Sprintf("%v；可调大 compose.max_extensions，或设置 compose.on_short: accept", te)
		return
	}
	item.ErrorCode = domain.ErrCodeGenerationFailed
	if errors.Is(err, context.Canceled) {
		item.ErrorMsg = "生成已取消"
		return
	}
	item.ErrorMsg = err.Error()
}

func fillIOError(item *domain.ItemResult, what string, err error) {
	item.Status = domain.StatusFailed
	item.ErrorCode = domain.ErrCodeIOFailed
	if fsx.IsPathTypeConflict(err) {
		item.ErrorMsg = err.Error()
		return
	}
	item.ErrorMsg = fmt.Sprintf("%s失败：%v", what, err)
}

func ensureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return &fsx.PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// relTo 返回 p 相对 root 的 '/' 分隔路径；无法相对化时原样返回。
func relTo(root, p string) string {
	if p == "" {
		return ""
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
