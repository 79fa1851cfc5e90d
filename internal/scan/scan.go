package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/ffbuild/internal/domain"
	"github.com/John-Robertt/ffbuild/internal/infra/binx"
)

// Artifacts 盘点构建产物：<Out> 下的最终二进制 + <Lib> 下的静态库。
//
// 规则：
// - 只做 stat 与文件头检测，不读完整内容
// - 缺失的文件/目录直接跳过，不报错（失败的构建也要能出一份清单）
// - 输出顺序稳定：二进制在前（按 domain.Binaries 顺序），静态库按相对路径排序
func Artifacts(p domain.Paths) ([]domain.Artifact, error) {
	out := make([]domain.Artifact, 0, 16)

	for _, name := range domain.Binaries {
		path := p.Binary(name)
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		mime, err := binx.Detect(path)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Artifact{
			Path: path,
			Size: info.Size(),
			Kind: "binary",
			MIME: mime,
		})
	}

	libs, err := staticLibs(p.Lib)
	if err != nil {
		return nil, err
	}
	return append(out, libs...), nil
}

func staticLibs(root string) ([]domain.Artifact, error) {
	var libs []domain.Artifact
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root && os.IsNotExist(walkErr) {
				return filepath.SkipDir
			}
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".a") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		libs = append(libs, domain.Artifact{
			Path: path,
			Size: info.Size(),
			Kind: "static_lib",
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(libs, func(i, j int) bool { return libs[i].Path < libs[j].Path })
	return libs, nil
}
