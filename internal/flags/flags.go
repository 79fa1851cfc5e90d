// Package flags 把 feature 开关翻译成 FFmpeg / x264 / nasm 的 configure 参数。
//
// 所有表都是声明式的；生成顺序固定，同样的输入总是得到同样的 argv。
package flags

import (
	"sort"

	"github.com/John-Robertt/ffbuild/internal/domain"
)

// Switch 把一个 feature 映射到 configure 的 --enable-<Configure>。
type Switch struct {
	Feature   string
	Configure string
}

// 许可证开关：产物是否必须遵守 GPL / (L)GPLv3 / 不可再分发。
var licenseSwitches = []Switch{
	{Feature: "build-license-gpl", Configure: "gpl"},
	{Feature: "build-license-version3", Configure: "version3"},
	{Feature: "build-license-nonfree", Configure: "nonfree"},
}

// 外部库开关，按“SSL → 滤镜 → 编解码器 → 其它 → 协议 → 杂项”分组。
var externalSwitches = []Switch{
	{Feature: "build-lib-gnutls", Configure: "gnutls"},
	{Feature: "build-lib-openssl", Configure: "openssl"},

	{Feature: "build-lib-fontconfig", Configure: "fontconfig"},
	{Feature: "build-lib-frei0r", Configure: "frei0r"},
	{Feature: "build-lib-ladspa", Configure: "ladspa"},
	{Feature: "build-lib-ass", Configure: "libass"},
	{Feature: "build-lib-freetype", Configure: "libfreetype"},
	{Feature: "build-lib-fribidi", Configure: "libfribidi"},
	{Feature: "build-lib-opencv", Configure: "libopencv"},

	{Feature: "build-lib-aacplus", Configure: "libaacplus"},
	{Feature: "build-lib-celt", Configure: "libcelt"},
	{Feature: "build-lib-dcadec", Configure: "libdcadec"},
	{Feature: "build-lib-faac", Configure: "libfaac"},
	{Feature: "build-lib-fdk-aac", Configure: "libfdk-aac"},
	{Feature: "build-lib-gsm", Configure: "libgsm"},
	{Feature: "build-lib-ilbc", Configure: "libilbc"},
	{Feature: "build-lib-vazaar", Configure: "libvazaar"},
	{Feature: "build-lib-mp3lame", Configure: "libmp3lame"},
	{Feature: "build-lib-opencore-amrnb", Configure: "libopencore-amrnb"},
	{Feature: "build-lib-opencore-amrwb", Configure: "libopencore-amrwb"},
	{Feature: "build-lib-openh264", Configure: "libopenh264"},
	{Feature: "build-lib-openh265", Configure: "libopenh265"},
	{Feature: "build-lib-openjpeg", Configure: "libopenjpeg"},
	{Feature: "build-lib-opus", Configure: "libopus"},
	{Feature: "build-lib-schroedinger", Configure: "libschroedinger"},
	{Feature: "build-lib-shine", Configure: "libshine"},
	{Feature: "build-lib-snappy", Configure: "libsnappy"},
	{Feature: "build-lib-speex", Configure: "libspeex"},
	{Feature: "build-lib-stagefright-h264", Configure: "libstagefright-h264"},
	{Feature: "build-lib-theora", Configure: "libtheora"},
	{Feature: "build-lib-twolame", Configure: "libtwolame"},
	{Feature: "build-lib-utvideo", Configure: "libutvideo"},
	{Feature: "build-lib-vo-aacenc", Configure: "libvo-aacenc"},
	{Feature: "build-lib-vo-amrwbenc", Configure: "libvo-amrwbenc"},
	{Feature: "build-lib-vorbis", Configure: "libvorbis"},
	{Feature: "build-lib-vpx", Configure: "libvpx"},
	{Feature: "build-lib-wavpack", Configure: "libwavpack"},
	{Feature: "build-lib-webp", Configure: "libwebp"},
	{Feature: FeatureX264, Configure: "libx264"},
	{Feature: "build-lib-x265", Configure: "libx265"},
	{Feature: "build-lib-avs", Configure: "libavs"},
	{Feature: "build-lib-xvid", Configure: "libxvid"},

	{Feature: "build-nvenc", Configure: "nvenc"},

	{Feature: "build-lib-smbclient", Configure: "libsmbclient"},
	{Feature: "build-lib-ssh", Configure: "libssh"},

	{Feature: "build-pic", Configure: "pic"},
}

// FeatureX264 同时决定是否构建 x264 依赖。
const FeatureX264 = "build-lib-x264"

var known = buildKnown()

func buildKnown() map[string]struct{} {
	m := map[string]struct{}{}
	for _, s := range licenseSwitches {
		m[s.Feature] = struct{}{}
	}
	for _, l := range domain.ToggleableLibraries() {
		m[l.Name] = struct{}{}
	}
	for _, s := range externalSwitches {
		m[s.Feature] = struct{}{}
	}
	return m
}

// IsKnownFeature 判断 name（已规范化）是否是受支持的 feature。
func IsKnownFeature(name string) bool {
	_, ok := known[name]
	return ok
}

// KnownFeatures 返回全部 feature 名（字典序）。
func KnownFeatures() []string {
	out := make([]string, 0, len(known))
	for k := range known {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Input 是生成 FFmpeg configure 参数所需的全部输入。
type Input struct {
	Paths  domain.Paths
	Target string
	Host   string

	// Enabled 判断 feature 是否开启；nil 视为全部关闭。
	Enabled func(feature string) bool

	// Strict=true 时，未开启的可开关内部库会输出 --disable-<name>。
	Strict bool

	// HaveAsm=false 表示没有可用的 nasm，需要关闭 x86 汇编。
	HaveAsm bool
}

func (in Input) enabled(f string) bool {
	return in.Enabled != nil && in.Enabled(f)
}

// FFmpegArgs 生成 FFmpeg ./configure 的 argv（不含程序名）。
func FFmpegArgs(in Input) []string {
	args := make([]string, 0, 32)
	args = append(args,
		"--prefix="+in.Paths.Search,
		"--extra-cflags=-I"+in.Paths.Include,
		"--extra-ldflags=-L"+in.Paths.Lib,
	)

	if in.Target != in.Host {
		args = append(args, "--cross-prefix="+in.Target+"-")
	}

	args = append(args,
		"--disable-doc",
		"--disable-ffplay",
		"--disable-debug",
		"--enable-stripping",
		// 静态链接：产物需要能被直接嵌入并在别处运行。
		"--enable-static",
		"--disable-shared",
		"--enable-pic",
	)
	if !in.HaveAsm {
		args = append(args, "--disable-x86asm")
	}

	for _, s := range licenseSwitches {
		if in.enabled(s.Feature) {
			args = append(args, "--enable-"+s.Configure)
		}
	}

	for _, l := range domain.ToggleableLibraries() {
		switch {
		case in.enabled(l.Name):
			args = append(args, "--enable-"+l.Name)
		case in.Strict:
			args = append(args, "--disable-"+l.Name)
		}
	}

	for _, s := range externalSwitches {
		if in.enabled(s.Feature) {
			args = append(args, "--enable-"+s.Configure)
		}
	}
	return args
}

// X264Args 生成 x264 ./configure 的 argv；target 与 host 不同时按 target 交叉编译。
func X264Args(p domain.Paths, target, host string, haveAsm bool) []string {
	args := []string{
		"--prefix", p.Search,
		"--bindir", p.Bin,
		"--enable-static",
	}
	if target != host {
		args = append(args, "--host="+target, "--cross-prefix="+target+"-")
	}
	if !haveAsm {
		args = append(args, "--disable-asm")
	}
	return args
}

// NasmArgs 生成 nasm ./configure 的 argv。
func NasmArgs(p domain.Paths) []string {
	return []string{"--prefix=" + p.Search}
}
