package fsx

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WriteFileAtomic(dir, "a.txt", []byte("hello"), 0o644))

	b, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	assertNoTemp(t, dir, "a.txt")
}

func TestWriteFileAtomic_ReplacesAndSetsMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("windows 没有可执行位")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ffmpeg"), []byte("old"), 0o600))

	require.NoError(t, WriteFileAtomic(dir, "ffmpeg", []byte("new"), 0o755))

	fi, err := os.Stat(filepath.Join(dir, "ffmpeg"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), fi.Mode().Perm())
	b, _ := os.ReadFile(filepath.Join(dir, "ffmpeg"))
	assert.Equal(t, "new", string(b))
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	err := WriteFileAtomic(dir, "a.txt", []byte("hello"), 0o644)
	require.Error(t, err)

	assertNoTemp(t, dir, "a.txt")
	assert.False(t, IsFile(filepath.Join(dir, "a.txt")), "不应写出最终文件")
}

func TestWriteFileAtomic_TargetIsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a.txt"), 0o755))

	err := WriteFileAtomic(dir, "a.txt", []byte("hello"), 0o644)
	var pe *PathTypeConflictError
	assert.ErrorAs(t, err, &pe)
}

func TestCopyFileAtomic(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(src, []byte("\x7fELF..."), 0o644))

	dst := filepath.Join(t.TempDir(), "nested", "bin")
	require.NoError(t, CopyFileAtomic(src, dst, "ffprobe", 0o755))

	b, err := os.ReadFile(filepath.Join(dst, "ffprobe"))
	require.NoError(t, err)
	assert.Equal(t, "\x7fELF...", string(b))

	err = CopyFileAtomic(filepath.Join(t.TempDir(), "missing"), dst, "x", 0o644)
	assert.True(t, os.IsNotExist(err), "err=%v", err)
}

func TestEnsureDir(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, EnsureDir(filepath.Join(root, "a", "b")))
	assert.True(t, IsDir(filepath.Join(root, "a", "b")))

	f := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	var pe *PathTypeConflictError
	assert.ErrorAs(t, EnsureDir(f), &pe)
	assert.False(t, IsDir(f))
	assert.True(t, IsFile(f))
}

func assertNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."+name+".tmp-"), "临时文件未清理：%q", e.Name())
	}
}
