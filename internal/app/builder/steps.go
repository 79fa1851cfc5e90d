package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-hclog"

	"github.com/John-Robertt/ffbuild/internal/config"
	"github.com/John-Robertt/ffbuild/internal/domain"
	"github.com/John-Robertt/ffbuild/internal/fetch"
	"github.com/John-Robertt/ffbuild/internal/flags"
	"github.com/John-Robertt/ffbuild/internal/infra/binx"
	"github.com/John-Robertt/ffbuild/internal/infra/execx"
	"github.com/John-Robertt/ffbuild/internal/infra/fsx"
	"github.com/John-Robertt/ffbuild/internal/nasmrel"
)

// builder 持有一次构建的上下文；方法按 domain.Step 一一对应。
type builder struct {
	eff     config.EffectiveConfig
	p       domain.Paths
	deps    Deps
	log     hclog.Logger
	fetch   fetch.Deps
	sources fetch.Registry

	nasmVersion string
	nasmErr     error

	haveAsm       bool
	configureArgs []string
}

func (b *builder) run(ctx context.Context, step domain.Step) error {
	switch step {
	case domain.StepFetchNasm:
		if b.nasmErr != nil {
			return &fetch.Error{Source: "nasm", Stage: "resolve", Err: b.nasmErr}
		}
		return b.fetchSource(ctx, "nasm")
	case domain.StepBuildNasm:
		if b.nasmErr != nil {
			return &fetch.Error{Source: "nasm", Stage: "resolve", Err: b.nasmErr}
		}
		return b.autotools(ctx, b.p.NasmSource(b.nasmVersion), flags.NasmArgs(b.p))
	case domain.StepFetchX264:
		return b.fetchSource(ctx, "x264")
	case domain.StepBuildX264:
		return b.autotools(ctx, b.p.X264Src, flags.X264Args(b.p, b.eff.Target, b.eff.Host, b.haveAsm))
	case domain.StepFetchFFmpeg:
		return b.fetchSource(ctx, "ffmpeg")
	case domain.StepConfigureFFmpeg:
		// configure 的输出只在失败时有用：Quiet 模式下错误信息里带尾部。
		_, err := b.deps.Runner.Run(ctx, b.command(b.p.Source, "./configure", b.configureArgs, true))
		return coded(domain.ErrCodeConfigureFailed, err)
	case domain.StepMakeFFmpeg:
		_, err := b.deps.Runner.Run(ctx, b.command(b.p.Source, "make", b.makeArgs(), false))
		return coded(domain.ErrCodeBuildFailed, err)
	case domain.StepRelocate:
		return b.relocate()
	case domain.StepCleanup:
		return coded(domain.ErrCodeIOFailed, os.RemoveAll(b.p.Source))
	case domain.StepVerify:
		return b.verify()
	case domain.StepStageEmbed:
		return b.stage()
	default:
		return fmt.Errorf("未知步骤：%q", step)
	}
}

// newSources 注册本次构建可能拉取的源码；nasm 版本未解析时不注册。
func (b *builder) newSources() (fetch.Registry, error) {
	srcs := []fetch.Source{b.ffmpegSource(), b.x264Source()}
	if b.nasmVersion != "" {
		srcs = append(srcs, b.nasmSource())
	}
	return fetch.NewRegistry(srcs...)
}

func (b *builder) fetchSource(ctx context.Context, name string) error {
	src, ok := b.sources.Get(name)
	if !ok {
		return fmt.Errorf("未注册的 source：%q", name)
	}
	b.log.Debug("fetching", "source", src.Name(), "dest", src.Dest())
	return src.Fetch(ctx, b.fetch)
}

func (b *builder) nasmSource() fetch.TarballSource {
	return fetch.TarballSource{
		Label:     "nasm",
		URL:       nasmrel.TarballURL(b.eff.NasmBaseURL, b.nasmVersion),
		CacheName: nasmrel.TarballName(b.nasmVersion),
		Dir:       b.p.NasmSource(b.nasmVersion),
	}
}

func (b *builder) x264Source() fetch.GitSource {
	return fetch.GitSource{Label: "x264", Repo: b.eff.X264Repo, Dir: b.p.X264Src}
}

func (b *builder) ffmpegSource() fetch.GitSource {
	return fetch.GitSource{Label: "ffmpeg", Repo: b.eff.FFmpegRepo, Branch: b.eff.FFmpegBranch, Dir: b.p.Source}
}

// autotools 依次执行 ./configure、make -j、make install。
func (b *builder) autotools(ctx context.Context, dir string, configureArgs []string) error {
	if _, err := b.deps.Runner.Run(ctx, b.command(dir, "./configure", configureArgs, false)); err != nil {
		return coded(domain.ErrCodeConfigureFailed, err)
	}
	if _, err := b.deps.Runner.Run(ctx, b.command(dir, "make", b.makeArgs(), false)); err != nil {
		return coded(domain.ErrCodeBuildFailed, err)
	}
	if _, err := b.deps.Runner.Run(ctx, b.command(dir, "make", []string{"install"}, false)); err != nil {
		return coded(domain.ErrCodeInstallFailed, err)
	}
	return nil
}

func (b *builder) makeArgs() []string {
	return []string{"-j" + strconv.Itoa(b.eff.Jobs)}
}

// command 统一注入环境：<Search>/bin 优先于 PATH，pkg-config 能找到 x264。
func (b *builder) command(dir, name string, args []string, quiet bool) execx.Command {
	return execx.Command{
		Dir:  dir,
		Name: name,
		Args: args,
		Env: []string{
			execx.PrependPath(b.p.SearchBin()),
			"PKG_CONFIG_PATH=" + filepath.Join(b.p.Lib, "pkgconfig"),
		},
		Quiet: quiet,
	}
}

func (b *builder) relocate() error {
	for _, name := range domain.Binaries {
		src := b.p.SourceBinary(name, b.eff.Target)
		if !fsx.IsFile(src) {
			return coded(domain.ErrCodeBuildFailed, fmt.Errorf("编译产物不存在：%q", src))
		}
		if err := fsx.Rename(src, b.p.Binary(name)); err != nil {
			return coded(domain.ErrCodeMoveFailed, err)
		}
	}
	return nil
}

func (b *builder) verify() error {
	for _, name := range domain.Binaries {
		mime, err := binx.CheckExecutable(b.p.Binary(name))
		if err != nil {
			return coded(domain.ErrCodeVerifyFailed, err)
		}
		b.log.Debug("binary verified", "name", name, "mime", mime)
	}
	return nil
}

func (b *builder) stage() error {
	for _, name := range domain.Binaries {
		if err := fsx.CopyFileAtomic(b.p.Binary(name), b.eff.EmbedDir, name, 0o755); err != nil {
			return coded(domain.ErrCodeIOFailed, err)
		}
	}
	b.log.Info("staged for embedding", "dir", b.eff.EmbedDir)
	return nil
}
