package main

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/John-Robertt/ffbuild/internal/app/builder"
	"github.com/John-Robertt/ffbuild/internal/config"
	"github.com/John-Robertt/ffbuild/internal/domain"
)

var _ builder.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：builder 只发事件，CLI 决定如何展示
// - keepalive：configure/make 动辄几分钟，长时间无输出时定期打印一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total   int
	current domain.Step
	stepAt  time.Time

	ok, fail, skip *color.Color

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer, colored bool) *progressUI {
	p := &progressUI{
		w:                  w,
		ok:                 color.New(color.FgGreen, color.Bold),
		fail:               color.New(color.FgRed, color.Bold),
		skip:               color.New(color.FgYellow),
		keepaliveThreshold: 15 * time.Second,
		tickerInterval:     5 * time.Second,
	}
	for _, c := range []*color.Color{p.ok, p.fail, p.skip} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *progressUI) OnStart(eff config.EffectiveConfig, plans []domain.StepPlan, dryRun bool) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}
	p.total = len(plans)

	mode := "build"
	modeHint := ""
	if dryRun {
		mode = "plan"
		modeHint = " (不写入/不执行命令)"
	}

	fmt.Fprintf(p.w, "[%s] ffbuild %s\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  ffmpeg: %s (%s)\n", eff.Version.String(), formatRepo(eff.FFmpegRepo, eff.FFmpegBranch))
	fmt.Fprintf(p.w, "  target: %s%s\n", eff.Target, crossNote(eff))
	fmt.Fprintf(p.w, "  jobs: %d\n", eff.Jobs)
	fmt.Fprintf(p.w, "  features: %s\n", formatFeatures(eff.Features))
	fmt.Fprintf(p.w, "  nasm: %s\n", formatNasm(eff))
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnStepStart(idx, total int, step domain.Step) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = step
	p.stepAt = time.Now()
	fmt.Fprintf(p.w, "[%d/%d] %s ...\n", idx, total, step)
	p.lastPrinted = time.Now()

	if !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnStepDone(idx, total int, res domain.StepResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = ""
	switch res.Status {
	case domain.StatusDone:
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n", idx, total, res.Step, p.ok.Sprint("OK"), formatShortDuration(dur))
	case domain.StatusSkipped:
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n", idx, total, res.Step, p.skip.Sprint("SKIP"), res.Reason)
	case domain.StatusFailed:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s (%s)\n",
			idx, total, res.Step, p.fail.Sprint("FAIL"), res.ErrorCode, truncate(firstLine(res.ErrorMsg), 160), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s\n", idx, total, res.Step, strings.ToUpper(res.Status))
	}
	p.lastPrinted = time.Now()

	// 最后一步结束：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && idx >= total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 15 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.current != "" && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进行中: %s %s elapsed=%s\n",
						p.current, formatElapsed(time.Since(p.stepAt)), formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func crossNote(eff config.EffectiveConfig) string {
	if eff.CrossCompiling() {
		return fmt.Sprintf(" (cross, host=%s)", eff.Host)
	}
	return ""
}

func formatRepo(repo, branch string) string {
	if branch == "" {
		return repo
	}
	return repo + "@" + branch
}

func formatFeatures(fs map[string]bool) string {
	names := make([]string, 0, len(fs))
	for n, on := range fs {
		if on {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "(none)"
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func formatNasm(eff config.EffectiveConfig) string {
	if !eff.NasmEnabled {
		return "off"
	}
	return eff.NasmVersion + " from " + truncate(eff.NasmBaseURL, 80)
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
