package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/John-Robertt/ffbuild/internal/config"
)

// valueFlags 是需要一个值的参数（支持 "--x v" 与 "--x=v" 两种写法）。
var valueFlags = map[string]bool{
	"--config":    true,
	"--out":       true,
	"--version":   true,
	"--target":    true,
	"--host":      true,
	"--feature":   true,
	"--jobs":      true,
	"--log-level": true,
}

func parseBuildArgs(args []string) (config.CLIArgs, error) {
	cli := config.CLIArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		name, value, hasValue := strings.Cut(a, "=")

		switch {
		case name == "--keep-sources":
			cli.KeepSourcesSet = true
			if !hasValue {
				cli.KeepSources = true
				continue
			}
			switch value {
			case "true":
				cli.KeepSources = true
			case "false":
				cli.KeepSources = false
			default:
				return config.CLIArgs{}, fmt.Errorf("--keep-sources 只能是 true 或 false，实际是 %q", value)
			}
			continue
		case valueFlags[name]:
			if !hasValue {
				if i+1 >= len(args) {
					return config.CLIArgs{}, fmt.Errorf("%s 需要一个值", name)
				}
				i++
				value = args[i]
			}
		case strings.HasPrefix(a, "-"):
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			return config.CLIArgs{}, fmt.Errorf("多余的参数 %q", a)
		}

		if strings.TrimSpace(value) == "" {
			return config.CLIArgs{}, fmt.Errorf("%s 不能为空", name)
		}

		switch name {
		case "--config":
			cli.ConfigFile = value
		case "--out":
			cli.OutDir = value
		case "--version":
			cli.Version = value
		case "--target":
			cli.Target = value
		case "--host":
			cli.Host = value
		case "--feature":
			for _, f := range strings.Split(value, ",") {
				if f = strings.TrimSpace(f); f != "" {
					cli.Features = append(cli.Features, f)
				}
			}
		case "--jobs":
			n, err := strconv.Atoi(value)
			if err != nil {
				return config.CLIArgs{}, fmt.Errorf("--jobs 必须是整数，实际是 %q", value)
			}
			cli.Jobs = n
			cli.JobsSet = true
		case "--log-level":
			cli.LogLevel = value
		}
	}

	return cli, nil
}

type installArgs struct {
	Dir   string
	Only  string // "" | "ffmpeg" | "ffprobe"
	Check bool
}

func parseInstallArgs(args []string) (installArgs, error) {
	ia := installArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--only":
			if i+1 >= len(args) {
				return installArgs{}, fmt.Errorf("--only 需要一个值")
			}
			i++
			ia.Only = args[i]
		case strings.HasPrefix(a, "--only="):
			ia.Only = strings.TrimPrefix(a, "--only=")
		case a == "--check":
			ia.Check = true
		case strings.HasPrefix(a, "-"):
			return installArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ia.Dir != "" {
				return installArgs{}, fmt.Errorf("重复的 dir：%q 与 %q", ia.Dir, a)
			}
			ia.Dir = a
		}
	}

	if ia.Dir == "" {
		return installArgs{}, fmt.Errorf("缺少目标目录")
	}
	switch ia.Only {
	case "", "ffmpeg", "ffprobe":
	default:
		return installArgs{}, fmt.Errorf("--only 只能是 ffmpeg 或 ffprobe，实际是 %q", ia.Only)
	}
	if ia.Check && ia.Only == "ffprobe" {
		return installArgs{}, fmt.Errorf("--check 需要安装 ffmpeg，不能与 --only ffprobe 同时使用")
	}
	return ia, nil
}
