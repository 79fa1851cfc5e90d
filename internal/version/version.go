package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blang/semver/v4"
)

// Version 是解析后的 FFmpeg 版本（只关心 major.minor，patch 仅用于展示）。
type Version struct {
	Raw string
	sv  semver.Version
}

// Resolve 宽松解析版本号：允许 "4.1"、"v4.1.0"、"04.1"。
func Resolve(raw string) (Version, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Version{}, errors.New("版本号不能为空")
	}
	sv, err := semver.ParseTolerant(raw)
	if err != nil {
		return Version{}, fmt.Errorf("无法解析版本号 %q：%w", raw, err)
	}
	return Version{Raw: raw, sv: sv}, nil
}

// FromParts 由 major/minor 两个独立输入组装版本（对应 FFBUILD_VERSION_MAJOR/MINOR）。
func FromParts(major, minor string) (Version, error) {
	ma, err := strconv.ParseUint(strings.TrimSpace(major), 10, 8)
	if err != nil {
		return Version{}, fmt.Errorf("major 不是数字：%q", major)
	}
	mi, err := strconv.ParseUint(strings.TrimSpace(minor), 10, 8)
	if err != nil {
		return Version{}, fmt.Errorf("minor 不是数字：%q", minor)
	}
	return Resolve(fmt.Sprintf("%d.%d", ma, mi))
}

func (v Version) Major() uint64 { return v.sv.Major }
func (v Version) Minor() uint64 { return v.sv.Minor }

// String 返回 "<major>.<minor>"。
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.sv.Major, v.sv.Minor)
}

// SourceDirName 返回 FFmpeg 源码目录名：ffmpeg-<major>.<minor>。
func (v Version) SourceDirName() string {
	return "ffmpeg-" + v.String()
}

// Latest 在 candidates 中挑出最高版本，返回其原始写法（例如 "2.16.03"）。
// 无法解析的候选会被忽略；pre-release（rc 等）不参与比较。
func Latest(candidates []string) (string, error) {
	var (
		best    string
		bestVer semver.Version
		found   bool
	)
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		sv, err := semver.ParseTolerant(c)
		if err != nil || len(sv.Pre) > 0 {
			continue
		}
		if !found || sv.GT(bestVer) {
			best, bestVer, found = c, sv, true
		}
	}
	if !found {
		return "", errors.New("没有可用的版本")
	}
	return best, nil
}
