package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/watchguide/internal/infra/fsx"
)

// Store 提供 <root>/cache/pages/<provider>/ 下的原始页面缓存。
//
// 每个目录页对应两份文件：<key>.html（页面原文）与 <key>.json（价格接口原文）。
// dry-run 时 ReadOnly=true，只读不写。
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// PagePath 返回页面 HTML 缓存路径。
func (s Store) PagePath(provider, key string) (string, error) {
	return s.path(provider, key, ".html")
}

// PricesPath 返回价格 JSON 缓存路径。
func (s Store) PricesPath(provider, key string) (string, error) {
	return s.path(provider, key, ".json")
}

func (s Store) ReadPage(provider, key string) ([]byte, bool, error) {
	return s.read(provider, key, ".html")
}

func (s Store) ReadPrices(provider, key string) ([]byte, bool, error) {
	return s.read(provider, key, ".json")
}

func (s Store) WritePage(provider, key string, html []byte) error {
	return s.write(provider, key, ".html", html)
}

func (s Store) WritePrices(provider, key string, raw []byte) error {
	return s.write(provider, key, ".json", raw)
}

func (s Store) path(provider, key, ext string) (string, error) {
	p, err := cleanProvider(provider)
	if err != nil {
		return "", err
	}
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "cache", "pages", p, k+ext), nil
}

func (s Store) read(provider, key, ext string) ([]byte, bool, error) {
	path, err := s.path(provider, key, ext)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) write(provider, key, ext string, data []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.path(provider, key, ext)
	if err != nil {
		return err
	}
	return fsx.WriteFile(path, data)
}

var (
	providerNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)
	keyRE          = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

func cleanProvider(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "", fmt.Errorf("provider 不能为空")
	}
	if !providerNameRE.MatchString(p) {
		return "", fmt.Errorf("非法 provider：%q", p)
	}
	return p, nil
}

func cleanKey(k string) (string, error) {
	k = strings.TrimSpace(k)
	if k == "" {
		return "", fmt.Errorf("缓存 key 不能为空")
	}
	if !keyRE.MatchString(k) || strings.Contains(k, "..") {
		return "", fmt.Errorf("非法缓存 key：%q", k)
	}
	return k, nil
}
