package binx

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/gabriel-vasile/mimetype"
)

// 可接受的可执行文件类型。PIE 形式的 ELF 会被识别为 x-sharedlib。
var executableMIMEs = []string{
	"application/x-executable",
	"application/x-sharedlib",
	"application/x-mach-binary",
	"application/vnd.microsoft.portable-executable",
}

// NotExecutableError 表示文件存在但不是可执行二进制（例如 configure 失败后留下的脚本或空文件）。
type NotExecutableError struct {
	Path   string
	MIME   string
	Reason string
}

func (e *NotExecutableError) Error() string {
	return fmt.Sprintf("不是可执行文件：%q（%s）：%s", e.Path, e.MIME, e.Reason)
}

func IsNotExecutable(err error) bool {
	var e *NotExecutableError
	return errors.As(err, &e)
}

// Detect 只读取文件头部，返回 MIME。
func Detect(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

// CheckExecutable 校验 path 是 ELF / Mach-O / PE 可执行文件，返回检测到的 MIME。
//
// 类 Unix 平台还要求至少有一个可执行位。
func CheckExecutable(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !fi.Mode().IsRegular() {
		return "", &NotExecutableError{Path: path, MIME: "-", Reason: "不是普通文件"}
	}
	if fi.Size() == 0 {
		return "", &NotExecutableError{Path: path, MIME: "-", Reason: "文件为空"}
	}

	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	if !isExecutable(m) {
		return m.String(), &NotExecutableError{Path: path, MIME: m.String(), Reason: "文件头不是可执行格式"}
	}
	if runtime.GOOS != "windows" && fi.Mode().Perm()&0o111 == 0 {
		return m.String(), &NotExecutableError{Path: path, MIME: m.String(), Reason: "缺少可执行权限"}
	}
	return m.String(), nil
}

func isExecutable(m *mimetype.MIME) bool {
	for _, want := range executableMIMEs {
		if m.Is(want) {
			return true
		}
	}
	return false
}
