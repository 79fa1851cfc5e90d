package fetch

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"

	"github.com/John-Robertt/ffbuild/internal/infra/fsx"
	"github.com/John-Robertt/ffbuild/internal/infra/httpx"
)

// 源码包的大小上限；nasm 的 tar.gz 不到 2MB。
const maxArchiveBytes = 256 << 20

// TarballSource 下载 .tar.gz 并解压到 Dir。
//
// 下载结果缓存在 Cache/downloads/<CacheName>，重复构建不再访问网络。
// 压缩包通常只有一个顶层目录（nasm-<ver>/），该目录的内容就是 Dir 的内容。
type TarballSource struct {
	Label     string
	URL       string
	CacheName string
	Dir       string
}

var _ Source = TarballSource{}

func (s TarballSource) Name() string { return s.Label }
func (s TarballSource) Dest() string { return s.Dir }

func (s TarballSource) Fetch(ctx context.Context, deps Deps) error {
	log := deps.logger()
	if fsx.IsDir(s.Dir) {
		log.Debug("source already present", "source", s.Label, "dir", s.Dir)
		return nil
	}

	data, err := s.archive(ctx, deps)
	if err != nil {
		return &Error{Source: s.Label, Stage: "download", Err: err}
	}
	if err := extractTarGz(data, s.Dir); err != nil {
		return &Error{Source: s.Label, Stage: "extract", Err: err}
	}
	log.Info("extracted", "source", s.Label, "dir", s.Dir)
	return nil
}

// archive 优先读缓存；缓存内容不是 gzip 时丢弃并重新下载。
func (s TarballSource) archive(ctx context.Context, deps Deps) ([]byte, error) {
	log := deps.logger()
	if s.CacheName != "" {
		b, ok, err := deps.Cache.ReadDownload(s.CacheName)
		if err != nil {
			return nil, err
		}
		if ok {
			if isGzip(b) {
				log.Debug("download cache hit", "source", s.Label, "name", s.CacheName)
				return b, nil
			}
			log.Warn("discarding corrupt cached archive", "name", s.CacheName)
			_ = deps.Cache.RemoveDownload(s.CacheName)
		}
	}

	log.Info("downloading", "source", s.Label, "url", s.URL)
	b, err := httpx.Get(ctx, deps.HTTP, s.URL, maxArchiveBytes)
	if err != nil {
		return nil, err
	}
	if !isGzip(b) {
		return nil, fmt.Errorf("下载内容不是 gzip（%s）：%s", mimetype.Detect(b).String(), s.URL)
	}
	if s.CacheName != "" {
		if err := deps.Cache.WriteDownload(s.CacheName, b); err != nil {
			// 缓存写失败不影响本次构建。
			log.Warn("download cache write failed", "name", s.CacheName, "error", err)
		}
	}
	return b, nil
}

func isGzip(b []byte) bool {
	return mimetype.Detect(b).Is("application/gzip")
}

// extractTarGz 先解压到 dest 同级的临时目录，成功后再 rename 到 dest。
func extractTarGz(data []byte, dest string) error {
	parent := filepath.Dir(dest)
	if err := fsx.EnsureDir(parent); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(parent, ".extract-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer zr.Close()

	if err := untar(tar.NewReader(zr), tmp); err != nil {
		return err
	}

	root, err := singleTopDir(tmp)
	if err != nil {
		return err
	}
	return fsx.Rename(root, dest)
}

func untar(tr *tar.Reader, dir string) error {
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := walkInside(dir, hdr.Name); err != nil {
				return err
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := walkInside(dir, hdr.Name); err != nil {
				return err
			}
			if err := writeEntry(tr, target, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) {
				return fmt.Errorf("拒绝绝对路径符号链接：%q -> %q", hdr.Name, hdr.Linkname)
			}
			if err := walkInside(dir, path.Dir(filepath.ToSlash(hdr.Name))); err != nil {
				return err
			}
			// 链接目标按未清理的原文逐段检查：d/l/.. 这种经过其它链接再回退的写法必须拒绝。
			if err := walkInside(dir, path.Dir(filepath.ToSlash(hdr.Name))+"/"+filepath.ToSlash(hdr.Linkname)); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			// 硬链接、设备文件等在源码包里不会出现，忽略。
		}
	}
}

func writeEntry(r io.Reader, target string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// safeJoin 拒绝绝对路径与 ".." 穿越。
func safeJoin(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("压缩包条目越界：%q", name)
	}
	return filepath.Join(dir, clean), nil
}

// walkInside 逐段走 rel（相对 root，允许 ".."），要求不越出 root 且不经过任何已存在的符号链接。
func walkInside(root, rel string) error {
	cur, depth := root, 0
	for _, part := range strings.Split(rel, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			if depth == 0 {
				return fmt.Errorf("压缩包条目越界：%q", rel)
			}
			cur, depth = filepath.Dir(cur), depth-1
			continue
		}
		cur, depth = filepath.Join(cur, part), depth+1
		fi, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("压缩包条目经过符号链接：%q", rel)
		}
	}
	return nil
}

// singleTopDir：只有一个顶层目录时返回它，否则返回 dir 本身。
func singleTopDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("压缩包为空")
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	// 没有统一顶层目录：整个临时目录就是源码根。
	return dir, nil
}
