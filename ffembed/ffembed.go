// Package ffembed 在运行时把内嵌的 ffmpeg / ffprobe 可执行文件写到指定目录。
//
// 内嵌内容由 `ffbuild build` 生成并 stage 到 ffembed/bin/，
// 再以 `-tags ffembed` 编译使用方程序即可。未带该 tag 编译时，
// 两个安装函数都返回 ErrNotEmbedded。
//
//	dir, _ := os.MkdirTemp("", "ff")
//	if err := ffembed.InstallFFmpeg(dir); err != nil { ... }
//	exec.Command(filepath.Join(dir, ffembed.ExecutableName("ffmpeg")), "-version")
package ffembed

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ErrNotEmbedded 表示当前二进制编译时没有带 ffembed tag（或内嵌内容为空）。
var ErrNotEmbedded = errors.New("ffembed: 未内嵌 ffmpeg/ffprobe（需要先运行 ffbuild build，并以 -tags ffembed 编译）")

// Available 报告 ffmpeg 与 ffprobe 是否都已内嵌。
func Available() bool {
	return len(ffmpegBin) > 0 && len(ffprobeBin) > 0
}

// InstallFFmpeg 把内嵌的 ffmpeg 写到 dir 下；dir 必须已存在。
func InstallFFmpeg(dir string) error {
	return install(dir, "ffmpeg", ffmpegBin)
}

// InstallFFprobe 把内嵌的 ffprobe 写到 dir 下；dir 必须已存在。
func InstallFFprobe(dir string) error {
	return install(dir, "ffprobe", ffprobeBin)
}

// ExecutableName 返回目标平台上的文件名（Windows 下追加 .exe）。
func ExecutableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// install 覆盖写入 dir/<name>，权限 0755；任何文件系统错误原样返回。
func install(dir, name string, data []byte) error {
	if len(data) == 0 {
		return ErrNotEmbedded
	}
	path := filepath.Join(dir, ExecutableName(name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("写入 %s 失败：%w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	// OpenFile 的 perm 受 umask 影响，且对已存在的文件不生效。
	return os.Chmod(path, 0o755)
}
