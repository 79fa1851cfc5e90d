package execx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// 失败时保留的输出尾部大小；configure 的错误通常在最后几十行。
const defaultTailBytes = 16 << 10

// Command 描述一次外部程序调用。
type Command struct {
	Dir  string
	Name string
	Args []string

	// Env 追加到当前进程环境之后（同名以后者为准）。
	Env []string

	// Quiet=true 时不把子进程输出转发到 Stdout/Stderr，只保留尾部用于报错。
	// configure 用这种方式：成功时它的输出是噪音，失败时才需要。
	Quiet bool
}

// String 返回便于日志展示的命令行（不做 shell 转义）。
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result 是一次成功调用的结果。
type Result struct {
	Duration time.Duration
	// Tail 是合并后的 stdout+stderr 尾部（最多 defaultTailBytes）。
	Tail string
}

// Runner 执行外部命令；构建流程只依赖该接口，测试用假实现替代。
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
	LookPath(name string) (string, error)
}

// ExitError 表示子进程以非零状态退出。
type ExitError struct {
	Cmd  string
	Dir  string
	Code int
	Tail string
	Err  error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("命令失败（exit %d）：%s", e.Code, e.Cmd)
	if t := strings.TrimSpace(e.Tail); t != "" {
		msg += "\n" + t
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// NotFoundError 表示要执行的程序不存在（不在 PATH 中，或相对路径不存在）。
type NotFoundError struct {
	Name string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("找不到可执行程序 %q；请确认已安装并在 PATH 中：%v", e.Name, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// ExecRunner 是基于 os/exec 的 Runner。
type ExecRunner struct {
	Log    hclog.Logger
	Stdout io.Writer
	Stderr io.Writer

	// TailBytes<=0 时使用 defaultTailBytes。
	TailBytes int
}

var _ Runner = (*ExecRunner)(nil)

// NewRunner 构造一个只保留输出尾部的 Runner；需要实时输出时由调用方设置 Stdout/Stderr。
// 默认不写 os.Stdout：stdout 留给调用方自己的输出（例如 JSON 报告）。
func NewRunner(log hclog.Logger) *ExecRunner {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &ExecRunner{Log: log}
}

func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	log := r.logger()
	n := r.TailBytes
	if n <= 0 {
		n = defaultTailBytes
	}
	tail := newTailBuffer(n)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Quiet || r.Stdout == nil {
		cmd.Stdout = tail
	} else {
		cmd.Stdout = io.MultiWriter(tail, r.Stdout)
	}
	if c.Quiet || r.Stderr == nil {
		cmd.Stderr = tail
	} else {
		cmd.Stderr = io.MultiWriter(tail, r.Stderr)
	}

	log.Info("running", "cmd", c.String(), "dir", c.Dir)
	started := time.Now()
	err := cmd.Run()
	dur := time.Since(started)

	if err == nil {
		log.Debug("finished", "cmd", c.Name, "duration", dur)
		return Result{Duration: dur, Tail: tail.String()}, nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		log.Error("command failed", "cmd", c.Name, "exit", ee.ExitCode(), "duration", dur)
		return Result{Duration: dur}, &ExitError{
			Cmd:  c.String(),
			Dir:  c.Dir,
			Code: ee.ExitCode(),
			Tail: tail.String(),
			Err:  err,
		}
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		log.Error("command not found", "cmd", c.Name)
		return Result{Duration: dur}, &NotFoundError{Name: c.Name, Err: err}
	}
	log.Error("command start failed", "cmd", c.Name, "error", err)
	return Result{Duration: dur}, err
}

func (r *ExecRunner) logger() hclog.Logger {
	if r.Log == nil {
		return hclog.NewNullLogger()
	}
	return r.Log
}

// PrependPath 返回把 dir 放到 PATH 最前面的 "PATH=..." 条目。
func PrependPath(dir string) string {
	cur := os.Getenv("PATH")
	if cur == "" {
		return "PATH=" + dir
	}
	return "PATH=" + dir + string(os.PathListSeparator) + cur
}
