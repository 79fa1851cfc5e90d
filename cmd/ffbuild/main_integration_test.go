package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/ffbuild/internal/domain"
)

func TestCLI_NoTTY_StdoutOnlyBuildReportJSON(t *testing.T) {
	// 锁定对外契约：stdout 非 TTY 时只能输出一个 BuildReport JSON（进度/日志必须走 stderr）。
	tmp := t.TempDir()
	cfg := filepath.Join(tmp, "ffbuild.yaml")
	if err := os.WriteFile(cfg, []byte("nasm:\n  enabled: false\nembed_dir: \"-\"\n"), 0o644); err != nil {
		t.Fatalf("写入配置失败：%v", err)
	}
	out := filepath.Join(tmp, "out")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/ffbuild", "plan", "--config", cfg, "--out", out, "--feature", "build-lib-x264")
	cmd.Dir = repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	var rr domain.BuildReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 BuildReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if !rr.DryRun || rr.Summary.Failed != 0 {
		t.Fatalf("期望 dry-run 且无失败：%+v", rr.Summary)
	}
	if len(rr.ConfigureArgs) == 0 {
		t.Fatalf("plan 应输出 configure 参数")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("plan 不应创建 out 目录，但 Stat err=%v", err)
	}
	if !strings.Contains(stderr.String(), "完成：done=") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}
}

func TestCLI_ConfigErrorExitCode(t *testing.T) {
	wd, _ := os.Getwd()
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/ffbuild", "plan", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	cmd.Dir = repoRoot
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	if err == nil {
		t.Fatalf("配置文件不存在时应以非零状态退出")
	}

	var rr domain.BuildReport
	if jerr := json.Unmarshal(stdout.Bytes(), &rr); jerr != nil {
		t.Fatalf("stdout 不是合法 JSON：%v", jerr)
	}
	f, ok := rr.FirstFailure()
	if !ok || f.ErrorCode != domain.ErrCodeConfigNotFound {
		t.Fatalf("期望 config_not_found，实际 %+v", rr.Steps)
	}
}
