package imgx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/watchguide/internal/infra/fsx"
)

const defaultExt = ".jpg"

// HTTPStatusError 表示图片地址返回了非 200。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("图片下载失败：HTTP %d（%s）", e.StatusCode, e.URL)
}

// Download 下载 imageURL 并原子写入 dir/prefix+ext，返回写出的路径。
//
// - imageURL 为空：返回 ("", nil)
// - 非 200 或传输错误：返回 ("", err)，由调用方记为 warning
func Download(ctx context.Context, c *http.Client, imageURL, dir, prefix string) (string, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return "", nil
	}
	if c == nil {
		return "", errors.New("image client 为空")
	}
	if strings.TrimSpace(prefix) == "" {
		return "", errors.New("图片文件名前缀为空")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &HTTPStatusError{URL: imageURL, StatusCode: resp.StatusCode}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	name := prefix + ExtFromURL(imageURL)
	if err := fsx.WriteFileAtomic(dir, name, b); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ExtFromURL 取 URL 路径最后一段的扩展名（含 '.'），没有时为 .jpg。
func ExtFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	ext := path.Ext(path.Base(p))
	if ext == "" || ext == "." || strings.ContainsAny(ext, `/\`) {
		return defaultExt
	}
	return ext
}
