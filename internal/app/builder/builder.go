package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/John-Robertt/ffbuild/internal/app/planner"
	"github.com/John-Robertt/ffbuild/internal/config"
	"github.com/John-Robertt/ffbuild/internal/domain"
	"github.com/John-Robertt/ffbuild/internal/fetch"
	"github.com/John-Robertt/ffbuild/internal/flags"
	"github.com/John-Robertt/ffbuild/internal/infra/binx"
	"github.com/John-Robertt/ffbuild/internal/infra/cache"
	"github.com/John-Robertt/ffbuild/internal/infra/execx"
	"github.com/John-Robertt/ffbuild/internal/infra/fsx"
	"github.com/John-Robertt/ffbuild/internal/infra/httpx"
	"github.com/John-Robertt/ffbuild/internal/nasmrel"
	"github.com/John-Robertt/ffbuild/internal/scan"
)

// Deps 是构建流程依赖的外部能力。零值字段使用默认实现。
type Deps struct {
	Runner execx.Runner
	HTTP   *http.Client
	Log    hclog.Logger

	// ResolveNasm 在 nasm.version=latest 时解析具体版本；默认抓取发布目录页。
	ResolveNasm func(ctx context.Context, c *http.Client, baseURL string) (string, error)
}

// Execute 按计划顺序执行构建，遇到第一个失败即停止；之后的步骤记为 planned。
// 结束时把 report.json 原子写入 out 目录。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.BuildReport {
	return execute(ctx, eff, deps, obs, false)
}

// DryRun 只规划不执行：不创建目录、不访问网络（nasm latest 不解析）、不调用任何外部命令。
func DryRun(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.BuildReport {
	return execute(ctx, eff, deps, obs, true)
}

func execute(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer, dryRun bool) domain.BuildReport {
	if deps.Log == nil {
		deps.Log = hclog.NewNullLogger()
	}
	if deps.Runner == nil {
		deps.Runner = execx.NewRunner(deps.Log)
	}
	if deps.ResolveNasm == nil {
		deps.ResolveNasm = nasmrel.Resolve
	}
	p := eff.Paths()

	rr := domain.BuildReport{
		RunID:     uuid.NewString(),
		OutDir:    p.Out,
		DryRun:    dryRun,
		Version:   eff.Version.String(),
		Target:    eff.Target,
		Host:      eff.Host,
		StartedAt: time.Now().UTC(),
	}
	log := deps.Log.With("run_id", rr.RunID)

	finish := func() domain.BuildReport {
		if arts, err := scan.Artifacts(p); err == nil {
			rr.Artifacts = arts
		} else {
			log.Warn("artifact scan failed", "error", err)
		}
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		if !dryRun {
			if err := writeReport(p, rr); err != nil {
				log.Warn("write report failed", "path", p.Report(), "error", err)
			}
		}
		return rr
	}
	setupFailed := func(code string, err error) domain.BuildReport {
		rr.Steps = append(rr.Steps, domain.StepResult{
			Step:      domain.StepSetup,
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		})
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	if deps.HTTP == nil {
		c, err := httpx.NewClient(eff.ProxyURL)
		if err != nil {
			return setupFailed(domain.ErrCodeConfigInvalid, fmt.Errorf("proxy.url 无效：%w", err))
		}
		deps.HTTP = c
	}

	if !dryRun {
		if err := fsx.EnsureDir(p.Out); err != nil {
			return setupFailed(domain.ErrCodeIOFailed, fmt.Errorf("创建 out 目录失败：%w", err))
		}
	}

	st, err := planner.ReadState(p, eff.Target, "")
	if err != nil {
		return setupFailed(domain.ErrCodeIOFailed, fmt.Errorf("读取 out 状态失败：%w", err))
	}

	b := &builder{
		eff:  eff,
		p:    p,
		deps: deps,
		log:  log,
		fetch: fetch.Deps{
			Runner: deps.Runner,
			HTTP:   deps.HTTP,
			Cache:  cache.New(p.Cache, dryRun),
			Log:    log,
		},
	}

	// 只有真的要拉 nasm 时才需要解析 latest；plan 不访问网络，版本保持未解析。
	needNasm := eff.NasmEnabled && !st.NasmBin && !st.Built()
	if needNasm && dryRun && eff.NasmVersion == config.DefaultNasmVersion {
		log.Debug("nasm version left unresolved in dry run")
	} else if needNasm {
		b.nasmVersion, b.nasmErr = b.resolveNasm(ctx)
		if b.nasmErr == nil {
			st, err = planner.ReadState(p, eff.Target, b.nasmVersion)
			if err != nil {
				return setupFailed(domain.ErrCodeIOFailed, fmt.Errorf("读取 out 状态失败：%w", err))
			}
		} else {
			log.Warn("nasm version unresolved", "error", b.nasmErr)
		}
	}

	if b.sources, err = b.newSources(); err != nil {
		return setupFailed(domain.ErrCodeConfigInvalid, err)
	}

	b.haveAsm = b.detectAsm(st)
	rr.ConfigureArgs = flags.FFmpegArgs(flags.Input{
		Paths:   p,
		Target:  eff.Target,
		Host:    eff.Host,
		Enabled: eff.Enabled,
		Strict:  eff.StrictLibraries,
		HaveAsm: b.haveAsm,
	})
	b.configureArgs = rr.ConfigureArgs

	plans := planner.Plan(eff, st)
	if obs != nil {
		obs.OnStart(eff, plans, dryRun)
	}

	rr.Steps = make([]domain.StepResult, 0, len(plans))
	failed := false
	for i, sp := range plans {
		res := domain.StepResult{Step: sp.Step}
		var dur time.Duration

		switch {
		case sp.Skip:
			res.Status = domain.StatusSkipped
			res.Reason = sp.Reason
		case failed || dryRun:
			res.Status = domain.StatusPlanned
		case ctx.Err() != nil:
			res.Status = domain.StatusFailed
			res.ErrorCode = domain.ErrCodeCanceled
			res.ErrorMsg = ctx.Err().Error()
			failed = true
		default:
			if obs != nil {
				obs.OnStepStart(i+1, len(plans), sp.Step)
			}
			started := time.Now()
			err := b.run(ctx, sp.Step)
			dur = time.Since(started)
			res.DurationMS = dur.Milliseconds()
			if err != nil {
				res.Status = domain.StatusFailed
				res.ErrorCode = classify(ctx, err)
				res.ErrorMsg = err.Error()
				failed = true
				log.Error("step failed", "step", sp.Step, "error_code", res.ErrorCode)
			} else {
				res.Status = domain.StatusDone
				log.Info("step done", "step", sp.Step, "duration", dur)
			}
		}

		rr.Steps = append(rr.Steps, res)
		if obs != nil {
			obs.OnStepDone(i+1, len(plans), res, dur)
		}
	}

	return finish()
}

func (b *builder) resolveNasm(ctx context.Context) (string, error) {
	if b.eff.NasmVersion != config.DefaultNasmVersion {
		return b.eff.NasmVersion, nil
	}
	v, err := b.deps.ResolveNasm(ctx, b.deps.HTTP, b.eff.NasmBaseURL)
	if err != nil {
		return "", fmt.Errorf("解析 nasm 最新版本失败：%w", err)
	}
	b.log.Info("nasm version resolved", "version", v)
	return v, nil
}

// detectAsm：要构建 nasm、已构建过 nasm，或 PATH 中已有 nasm/yasm，都视为有汇编器。
func (b *builder) detectAsm(st planner.State) bool {
	if b.eff.NasmEnabled || st.NasmBin {
		return true
	}
	for _, name := range []string{"nasm", "yasm"} {
		if _, err := b.deps.Runner.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// stepError 给单步内部的失败打上明确的 error_code（同一步里 configure/make/install 失败含义不同）。
type stepError struct {
	code string
	err  error
}

func (e *stepError) Error() string { return e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func coded(code string, err error) error {
	if err == nil {
		return nil
	}
	return &stepError{code: code, err: err}
}

func classify(ctx context.Context, err error) string {
	var se *stepError
	var fe *fetch.Error
	switch {
	case ctx.Err() != nil:
		return domain.ErrCodeCanceled
	case errors.As(err, &se):
		return se.code
	case errors.As(err, &fe):
		return domain.ErrCodeFetchFailed
	case fsx.IsCrossDevice(err):
		return domain.ErrCodeMoveFailed
	case binx.IsNotExecutable(err):
		return domain.ErrCodeVerifyFailed
	default:
		return domain.ErrCodeIOFailed
	}
}

func writeReport(p domain.Paths, rr domain.BuildReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(p.Out, "report.json", b, 0o644)
}
