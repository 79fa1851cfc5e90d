package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/John-Robertt/ffbuild/ffembed"
	"github.com/John-Robertt/ffbuild/internal/infra/execx"
)

func installCmd(args []string, stdout, stderr io.Writer) int {
	for _, a := range args {
		if isHelp(a) {
			printInstallUsage()
			return 0
		}
	}

	ia, err := parseInstallArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
		printInstallUsage()
		return 2
	}

	if err := os.MkdirAll(ia.Dir, 0o755); err != nil {
		fmt.Fprintf(stderr, "创建目录失败：%v\n", err)
		return 1
	}

	installers := []struct {
		name string
		fn   func(string) error
	}{
		{"ffmpeg", ffembed.InstallFFmpeg},
		{"ffprobe", ffembed.InstallFFprobe},
	}
	for _, in := range installers {
		if ia.Only != "" && ia.Only != in.name {
			continue
		}
		if err := in.fn(ia.Dir); err != nil {
			if errors.Is(err, ffembed.ErrNotEmbedded) {
				fmt.Fprintf(stderr, "%v\n", err)
			} else {
				fmt.Fprintf(stderr, "安装 %s 失败：%v\n", in.name, err)
			}
			return 1
		}
		fmt.Fprintf(stdout, "installed: %s\n", filepath.Join(ia.Dir, ffembed.ExecutableName(in.name)))
	}

	if ia.Check {
		line, err := checkFFmpeg(context.Background(), execx.NewRunner(hclog.NewNullLogger()), ia.Dir)
		if err != nil {
			fmt.Fprintf(stderr, "校验失败：%v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, line)
	}
	return 0
}

// checkFFmpeg 执行 <dir>/ffmpeg -version，返回输出的第一行。
func checkFFmpeg(ctx context.Context, r execx.Runner, dir string) (string, error) {
	bin, err := filepath.Abs(filepath.Join(dir, ffembed.ExecutableName("ffmpeg")))
	if err != nil {
		return "", err
	}
	res, err := r.Run(ctx, execx.Command{Dir: dir, Name: bin, Args: []string{"-version"}, Quiet: true})
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(strings.TrimSpace(res.Tail), "\n")
	return first, nil
}
