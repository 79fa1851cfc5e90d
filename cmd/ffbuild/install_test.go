package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/ffbuild/ffembed"
	"github.com/John-Robertt/ffbuild/internal/infra/execx"
)

type versionRunner struct {
	got execx.Command
}

func (r *versionRunner) Run(_ context.Context, c execx.Command) (execx.Result, error) {
	r.got = c
	return execx.Result{Tail: "ffmpeg version n4.1-ts-offset Copyright (c) 2000-2018\nbuilt with gcc\n"}, nil
}

func (r *versionRunner) LookPath(name string) (string, error) { return name, nil }

func TestCheckFFmpeg_FirstLine(t *testing.T) {
	dir := t.TempDir()
	r := &versionRunner{}

	line, err := checkFFmpeg(context.Background(), r, dir)
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg version n4.1-ts-offset Copyright (c) 2000-2018", line)
	assert.Equal(t, filepath.Join(dir, ffembed.ExecutableName("ffmpeg")), r.got.Name)
	assert.Equal(t, []string{"-version"}, r.got.Args)
}

func TestInstallCmd_NotEmbedded(t *testing.T) {
	if ffembed.Available() {
		t.Skip("以 -tags ffembed 编译时不适用")
	}
	var stdout, stderr bytes.Buffer
	dir := filepath.Join(t.TempDir(), "bin")

	code := installCmd([]string{dir}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.True(t, strings.Contains(stderr.String(), "ffembed"), "stderr=%q", stderr.String())
	assert.DirExists(t, dir, "目标目录应先被创建")
}

func TestInstallCmd_UsageError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, installCmd([]string{"--only", "ffplay", "x"}, &stdout, &stderr))
}
