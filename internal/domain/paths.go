package domain

import (
	"path/filepath"
	"strings"
)

// Paths 是一次构建用到的全部目录；由 out 目录与版本号确定性推导，没有独立生命周期。
//
// 不变量：Out 必须是 clean + absolute（config 层保证）。
type Paths struct {
	Out     string // 输出根目录，最终的 ffmpeg/ffprobe 放在这里
	Source  string // <Out>/ffmpeg-<major>.<minor>
	Search  string // <Out>/dist，依赖库的 install prefix，也是 FFmpeg 的 --prefix
	Include string // <Search>/include
	Lib     string // <Search>/lib
	Bin     string // <Out>/bin，x264 的 --bindir
	X264Src string // <Out>/x264
	Cache   string // <Out>/cache
}

// NewPaths 由 out 根目录与 FFmpeg 源码目录名推导 Paths。
func NewPaths(out, sourceDirName string) Paths {
	out = filepath.Clean(out)
	search := filepath.Join(out, "dist")
	return Paths{
		Out:     out,
		Source:  filepath.Join(out, sourceDirName),
		Search:  search,
		Include: filepath.Join(search, "include"),
		Lib:     filepath.Join(search, "lib"),
		Bin:     filepath.Join(out, "bin"),
		X264Src: filepath.Join(out, "x264"),
		Cache:   filepath.Join(out, "cache"),
	}
}

// NasmSource 返回 nasm 源码解压目录（tarball 顶层目录名固定为 nasm-<ver>）。
func (p Paths) NasmSource(version string) string {
	return filepath.Join(p.Out, "nasm-"+version)
}

// SearchBin 返回依赖安装出的可执行文件目录（nasm 装在这里）。
func (p Paths) SearchBin() string {
	return filepath.Join(p.Search, "bin")
}

// SourceBinary 返回源码目录里编译出的可执行文件；Windows 目标带 .exe。
func (p Paths) SourceBinary(name, target string) string {
	return filepath.Join(p.Source, name+ExeSuffix(target))
}

// ExeSuffix 返回 target 三元组对应的可执行文件后缀。
func ExeSuffix(target string) string {
	t := strings.ToLower(target)
	if strings.Contains(t, "mingw") || strings.Contains(t, "windows") || strings.Contains(t, "cygwin") {
		return ".exe"
	}
	return ""
}

// Binary 返回最终产物路径（Out/<name>），与 target 无关，都不带后缀。
func (p Paths) Binary(name string) string {
	return filepath.Join(p.Out, name)
}

// Report 返回 report.json 的路径。
func (p Paths) Report() string {
	return filepath.Join(p.Out, "report.json")
}
