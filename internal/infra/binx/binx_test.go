package binx

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// elfHeader 构造最小的 64 位小端 ELF 头；etype=2 为可执行文件，3 为共享库（PIE）。
func elfHeader(etype byte) []byte {
	b := make([]byte, 64)
	copy(b, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
	b[16] = etype
	return b
}

func TestCheckExecutable_ELF(t *testing.T) {
	dir := t.TempDir()
	for _, etype := range []byte{2, 3} {
		path := filepath.Join(dir, "ffmpeg")
		if err := os.WriteFile(path, elfHeader(etype), 0o755); err != nil {
			t.Fatalf("写入失败：%v", err)
		}
		mime, err := CheckExecutable(path)
		if err != nil {
			t.Fatalf("e_type=%d 不期望错误：%v", etype, err)
		}
		if mime == "" {
			t.Fatalf("期望返回 MIME")
		}
	}
}

func TestCheckExecutable_Rejects(t *testing.T) {
	dir := t.TempDir()

	script := filepath.Join(dir, "script")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if _, err := CheckExecutable(script); !IsNotExecutable(err) {
		t.Fatalf("脚本不应通过校验：%v", err)
	}

	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o755); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if _, err := CheckExecutable(empty); !IsNotExecutable(err) {
		t.Fatalf("空文件不应通过校验：%v", err)
	}

	object := filepath.Join(dir, "x.o")
	if err := os.WriteFile(object, elfHeader(1), 0o755); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if _, err := CheckExecutable(object); !IsNotExecutable(err) {
		t.Fatalf("可重定位目标文件不应通过校验：%v", err)
	}

	if _, err := CheckExecutable(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Fatalf("期望 NotExist，实际：%v", err)
	}
}

func TestCheckExecutable_RequiresExecBit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("windows 没有可执行位")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, elfHeader(2), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if _, err := CheckExecutable(path); !IsNotExecutable(err) {
		t.Fatalf("缺少可执行位时应失败：%v", err)
	}
}
