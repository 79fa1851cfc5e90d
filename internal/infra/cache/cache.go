package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/ffbuild/internal/infra/fsx"
)

// Store 提供 <out>/cache/ 下的文件缓存读写（目前只缓存下载的源码包）。
//
// 约束：
// - plan（dry-run）：只允许读（ReadOnly=true）
// - build：允许写（ReadOnly=false）
type Store struct {
	Root     string // <out>/cache
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// DownloadPath 返回下载缓存文件的路径。
func (s Store) DownloadPath(name string) (string, error) {
	n, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "downloads", n), nil
}

// ReadDownload 读取缓存；未命中时 ok=false 且 err=nil。
func (s Store) ReadDownload(name string) ([]byte, bool, error) {
	path, err := s.DownloadPath(name)
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

func (s Store) WriteDownload(name string, data []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	n, err := cleanName(name)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Join(s.Root, "downloads"), n, data, 0o644)
}

// RemoveDownload 删除一条缓存（例如内容校验失败时）；不存在不算错误。
func (s Store) RemoveDownload(name string) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.DownloadPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var downloadNameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("缓存名不能为空")
	}
	// 只接受单个文件名，避免路径穿越。
	if !downloadNameRE.MatchString(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("非法缓存名：%q", name)
	}
	return name, nil
}
