package planner

import (
	"os"
	"path/filepath"

	"github.com/John-Robertt/ffbuild/internal/config"
	"github.com/John-Robertt/ffbuild/internal/domain"
	"github.com/John-Robertt/ffbuild/internal/flags"
	"github.com/John-Robertt/ffbuild/internal/infra/fsx"
)

// State 是 out 目录的现状（只做 Stat，不读文件内容）。
type State struct {
	FFmpeg  bool // <Out>/ffmpeg
	FFprobe bool // <Out>/ffprobe

	Source      bool // <Source> 目录
	SourceBuilt bool // <Source>/ffmpeg[.exe] 与 <Source>/ffprobe[.exe] 都已编译出来

	X264Src bool // <Out>/x264 目录
	X264Lib bool // <Lib>/libx264.a

	NasmVersion string // 本次使用的 nasm 版本（已解析 latest）
	NasmSrc     bool   // <Out>/nasm-<ver> 目录
	NasmBin     bool   // <Search>/bin/nasm
}

// Built 报告最终产物是否都已存在。
func (s State) Built() bool { return s.FFmpeg && s.FFprobe }

// ReadState 读取 out 目录现状；out 不存在时返回空状态且不报错。
// target 决定源码目录里编译产物的文件名（Windows 目标带 .exe）。
func ReadState(p domain.Paths, target, nasmVersion string) (State, error) {
	if _, err := os.Stat(p.Out); err != nil {
		if os.IsNotExist(err) {
			return State{NasmVersion: nasmVersion}, nil
		}
		return State{}, err
	}

	st := State{
		FFmpeg:      fsx.IsFile(p.Binary("ffmpeg")),
		FFprobe:     fsx.IsFile(p.Binary("ffprobe")),
		Source:      fsx.IsDir(p.Source),
		X264Src:     fsx.IsDir(p.X264Src),
		X264Lib:     fsx.IsFile(filepath.Join(p.Lib, "libx264.a")),
		NasmVersion: nasmVersion,
		NasmBin:     fsx.IsFile(filepath.Join(p.SearchBin(), "nasm")),
	}
	st.SourceBuilt = st.Source &&
		fsx.IsFile(p.SourceBinary("ffmpeg", target)) &&
		fsx.IsFile(p.SourceBinary("ffprobe", target))
	if nasmVersion != "" {
		st.NasmSrc = fsx.IsDir(p.NasmSource(nasmVersion))
	}
	return st, nil
}

// Plan 基于配置 + 现状生成确定性的步骤序列（不做任何写入）。
//
// 规则：
// - nasm 步骤仅在 nasm.enabled 时出现；x264 步骤仅在启用 build-lib-x264 时出现
// - ffmpeg/ffprobe 都已存在：所有构建步骤跳过，只做校验与 stage
// - 目标已存在的拉取/构建步骤跳过
func Plan(eff config.EffectiveConfig, st State) []domain.StepPlan {
	var out []domain.StepPlan
	add := func(step domain.Step, skip bool, reason string) {
		if !skip {
			reason = ""
		}
		out = append(out, domain.StepPlan{Step: step, Skip: skip, Reason: reason})
	}
	// build 覆盖一切构建步骤：两个产物都在时不再关心中间状态。
	build := func(step domain.Step, skip bool, reason string) {
		if st.Built() {
			add(step, true, "ffmpeg 与 ffprobe 已存在")
			return
		}
		add(step, skip, reason)
	}

	if eff.NasmEnabled {
		build(domain.StepFetchNasm, st.NasmBin || st.NasmSrc, pick(st.NasmBin, "nasm 已安装", "nasm 源码已存在"))
		build(domain.StepBuildNasm, st.NasmBin, "nasm 已安装")
	}
	if eff.Enabled(flags.FeatureX264) {
		build(domain.StepFetchX264, st.X264Lib || st.X264Src, pick(st.X264Lib, "x264 已安装", "x264 源码已存在"))
		build(domain.StepBuildX264, st.X264Lib, "x264 已安装")
	}

	build(domain.StepFetchFFmpeg, st.Source, "FFmpeg 源码已存在")
	build(domain.StepConfigureFFmpeg, st.SourceBuilt, "源码目录中已有编译产物")
	build(domain.StepMakeFFmpeg, st.SourceBuilt, "源码目录中已有编译产物")
	build(domain.StepRelocate, false, "")
	build(domain.StepCleanup, eff.KeepSources, "keep_sources=true")
	add(domain.StepVerify, false, "")
	add(domain.StepStageEmbed, eff.EmbedDir == "", "embed_dir 未设置")
	return out
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
