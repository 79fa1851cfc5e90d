package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/John-Robertt/ffbuild/internal/app/builder"
	"github.com/John-Robertt/ffbuild/internal/config"
	"github.com/John-Robertt/ffbuild/internal/domain"
	"github.com/John-Robertt/ffbuild/internal/infra/execx"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "build":
		os.Exit(buildCmd(args[1:], false))
	case "plan":
		os.Exit(buildCmd(args[1:], true))
	case "install":
		os.Exit(installCmd(args[1:], os.Stdout, os.Stderr))
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func buildCmd(args []string, dryRun bool) int {
	for _, a := range args {
		if isHelp(a) {
			printBuildUsage()
			return 0
		}
	}

	cli, err := parseBuildArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printBuildUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, cli, config.OSEnv())
	if err != nil {
		emitReport(reportForConfigError(cwdAbs, dryRun, err))
		return 1
	}

	log := newLogger(eff.LogLevel)
	runner := execx.NewRunner(log.Named("exec"))
	// 子进程输出只在 debug 及更详细的级别转发到 stderr；否则只保留尾部用于报错。
	if eff.LogLevel <= hclog.Debug {
		runner.Stdout, runner.Stderr = os.Stderr, os.Stderr
	}

	progressW, interactive := pickProgressWriter()
	var obs builder.Observer
	if interactive {
		obs = newProgressUI(progressW, isTTY(os.Stderr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	deps := builder.Deps{Runner: runner, Log: log}
	var rr domain.BuildReport
	if dryRun {
		rr = builder.DryRun(ctx, eff, deps, obs)
	} else {
		rr = builder.Execute(ctx, eff, deps, obs)
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff, dryRun)
	}
	if rr.OK() {
		return 0
	}
	return 1
}

func newLogger(level hclog.Level) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "ffbuild",
		Level:  level,
		Output: os.Stderr,
		Color:  hclog.AutoColor,
	})
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  ffbuild build   [选项]              拉取依赖并编译 FFmpeg，产物 stage 到 embed_dir
  ffbuild plan    [选项]              只输出执行计划（不写入、不执行任何命令）
  ffbuild install <dir> [--only ffmpeg|ffprobe] [--check]

使用 "ffbuild build --help" 查看构建选项。
`)
}

func printBuildUsage() {
	fmt.Fprint(os.Stdout, `用法：
  ffbuild build|plan [--config FILE] [--out DIR] [--version V] [--target T] [--host H]
                     [--feature F]... [--jobs N] [--keep-sources[=true|false]] [--log-level L]

参数：
  --config        配置文件（默认读取当前目录 ffbuild.yaml / ffbuild.yml）
  --out           输出目录（默认 .ffbuild）
  --version       FFmpeg 版本，决定源码目录名 ffmpeg-<major>.<minor>（默认 4.1）
  --target        目标平台三元组；与 host 不同时启用交叉编译
  --host          构建机三元组（默认按当前平台推导）
  --feature       开启 feature，可重复或用逗号分隔（例如 build-lib-x264,build-license-gpl）
  --jobs          make 并发数（默认 CPU 核数）
  --keep-sources  构建完成后保留 FFmpeg 源码目录
  --log-level     trace|debug|info|warn|error（debug 及以上会转发子进程输出）
  -h, --help      显示帮助
`)
}

func printInstallUsage() {
	fmt.Fprint(os.Stdout, `用法：
  ffbuild install <dir> [--only ffmpeg|ffprobe] [--check]

参数：
  --only   只安装其中一个可执行文件
  --check  安装后执行 "<dir>/ffmpeg -version" 验证可运行
  -h, --help  显示帮助
`)
}

func emitReport(rr domain.BuildReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, summaryLine(rr))
		emitFailures(os.Stderr, rr)
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 BuildReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(os.Stderr, summaryLine(rr))
	emitFailures(os.Stderr, rr)
}

func summaryLine(rr domain.BuildReport) string {
	return fmt.Sprintf("完成：done=%d skipped=%d failed=%d planned=%d",
		rr.Summary.Done, rr.Summary.Skipped, rr.Summary.Failed, rr.Summary.Planned,
	)
}

// emitFailures 输出失败步骤；构建遇到第一个失败即停止，所以最多一条。
func emitFailures(w io.Writer, rr domain.BuildReport) {
	if st, ok := rr.FirstFailure(); ok {
		fmt.Fprintf(w, "%s %s: %s\n", st.Step, st.ErrorCode, st.ErrorMsg)
	}
}

func reportForConfigError(cwdAbs string, dryRun bool, err error) domain.BuildReport {
	now := time.Now().UTC()
	rr := domain.BuildReport{
		OutDir:     cwdAbs,
		DryRun:     dryRun,
		StartedAt:  now,
		FinishedAt: now,
		Steps: []domain.StepResult{{
			Step:      domain.StepSetup,
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, dryRun bool) {
	if w == nil {
		return
	}
	p := eff.Paths()
	if !dryRun {
		fmt.Fprintf(w, "report: %s\n", p.Report())
	}
	fmt.Fprintf(w, "out: %s\n", p.Out)
	if eff.EmbedDir != "" {
		fmt.Fprintf(w, "embed: %s\n", eff.EmbedDir)
	}
}
