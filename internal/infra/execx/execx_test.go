//go:build unix

package execx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(out *bytes.Buffer) *ExecRunner {
	return &ExecRunner{
		Log:    hclog.NewNullLogger(),
		Stdout: out,
		Stderr: out,
	}
}

func TestRun_SuccessForwardsOutput(t *testing.T) {
	var out bytes.Buffer
	r := newTestRunner(&out)

	res, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out.String())
	assert.Equal(t, "hello\n", res.Tail)
}

func TestRun_QuietKeepsOnlyTail(t *testing.T) {
	var out bytes.Buffer
	r := newTestRunner(&out)

	_, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}, Quiet: true})
	require.Error(t, err)
	assert.Empty(t, out.String(), "Quiet 模式不应转发输出")

	var ee *ExitError
	require.True(t, errors.As(err, &ee), "期望 *ExitError，实际 %T", err)
	assert.Equal(t, 3, ee.Code)
	assert.Contains(t, ee.Tail, "oops")
	assert.Contains(t, ee.Error(), "exit 3")
}

func TestRun_DirAndEnv(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	r := newTestRunner(&out)

	_, err := r.Run(context.Background(), Command{
		Dir:  dir,
		Name: "sh",
		Args: []string{"-c", "pwd; echo $FFBUILD_TEST_VAR"},
		Env:  []string{"FFBUILD_TEST_VAR=yes"},
	})
	require.NoError(t, err)

	// macOS 的 TempDir 可能经过 /private 符号链接。
	want, _ := filepath.EvalSymlinks(dir)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	got, _ := filepath.EvalSymlinks(lines[0])
	assert.Equal(t, want, got)
	assert.Equal(t, "yes", lines[1])
}

func TestRun_NotFound(t *testing.T) {
	r := newTestRunner(&bytes.Buffer{})

	_, err := r.Run(context.Background(), Command{Name: "ffbuild-definitely-missing-binary"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ffbuild-definitely-missing-binary", nf.Name)

	// 相对路径的 ./configure 不存在也归为 NotFound。
	_, err = r.Run(context.Background(), Command{Dir: t.TempDir(), Name: "./configure"})
	assert.ErrorAs(t, err, &nf)
}

func TestNewRunner_DoesNotStreamToStdout(t *testing.T) {
	r := NewRunner(nil)
	assert.Nil(t, r.Stdout)
	assert.Nil(t, r.Stderr)

	res, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo out; echo err >&2"}})
	require.NoError(t, err)
	assert.Contains(t, res.Tail, "out")
	assert.Contains(t, res.Tail, "err")
}

func TestTailBuffer_KeepsLastBytes(t *testing.T) {
	tb := newTailBuffer(4)
	_, _ = tb.Write([]byte("ab"))
	_, _ = tb.Write([]byte("cdef"))
	assert.Equal(t, "cdef", tb.String())
	_, _ = tb.Write([]byte("g"))
	assert.Equal(t, "defg", tb.String())
	_, _ = tb.Write([]byte("0123456789"))
	assert.Equal(t, "6789", tb.String())
}

func TestPrependPath(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	assert.Equal(t, "PATH=/x/bin"+string(os.PathListSeparator)+"/usr/bin", PrependPath("/x/bin"))
}
