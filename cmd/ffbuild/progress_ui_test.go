package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/ffbuild/internal/config"
	"github.com/John-Robertt/ffbuild/internal/domain"
	"github.com/John-Robertt/ffbuild/internal/version"
)

func TestProgressUI_StepLines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf, false)

	v, _ := version.Resolve("4.1")
	p.OnStart(config.EffectiveConfig{
		Version:  v,
		Target:   "aarch64-linux-gnu",
		Host:     "x86_64-linux-gnu",
		Jobs:     8,
		Features: map[string]bool{"build-lib-x264": true, "build-license-gpl": true},
	}, make([]domain.StepPlan, 3), false)

	p.OnStepDone(1, 3, domain.StepResult{Step: domain.StepFetchFFmpeg, Status: domain.StatusSkipped, Reason: "FFmpeg 源码已存在"}, 0)
	p.OnStepStart(2, 3, domain.StepMakeFFmpeg)
	p.OnStepDone(2, 3, domain.StepResult{Step: domain.StepMakeFFmpeg, Status: domain.StatusDone}, 1500*time.Millisecond)
	p.OnStepDone(3, 3, domain.StepResult{
		Step:      domain.StepVerify,
		Status:    domain.StatusFailed,
		ErrorCode: domain.ErrCodeVerifyFailed,
		ErrorMsg:  "不是可执行文件\n第二行",
	}, time.Second)

	out := buf.String()
	for _, want := range []string{
		"target: aarch64-linux-gnu (cross, host=x86_64-linux-gnu)",
		"features: build-lib-x264,build-license-gpl",
		"[1/3] fetch-ffmpeg SKIP (FFmpeg 源码已存在)",
		"[2/3] make-ffmpeg OK (1.5s)",
		"[3/3] verify FAIL verify_failed: 不是可执行文件 (1.0s)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if strings.Contains(out, "第二行") {
		t.Fatalf("失败信息只应展示第一行：\n%s", out)
	}
	if p.tickerStarted {
		t.Fatalf("最后一步结束后 ticker 应停止")
	}
}

func TestFormatProxy(t *testing.T) {
	if got := formatProxy(""); got != "off" {
		t.Fatalf("got=%q", got)
	}
	if got := formatProxy("http://user:pw@127.0.0.1:7890"); got != "on (http://127.0.0.1:7890, auth=on)" {
		t.Fatalf("got=%q", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := formatElapsed(3723 * time.Second); got != "01:02:03" {
		t.Fatalf("got=%q", got)
	}
}
