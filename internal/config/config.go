package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/ffbuild/internal/domain"
	"github.com/John-Robertt/ffbuild/internal/flags"
	"github.com/John-Robertt/ffbuild/internal/version"
)

const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	DefaultOutDir       = ".ffbuild"
	DefaultVersion      = "4.1"
	DefaultFFmpegRepo   = "https://github.com/ngotchac/FFmpeg.git"
	DefaultFFmpegBranch = "ts-offset"
	DefaultX264Repo     = "https://code.videolan.org/videolan/x264.git"
	DefaultNasmVersion  = "latest"
	DefaultNasmBaseURL  = "https://www.nasm.us/pub/nasm/releasebuilds"
	DefaultEmbedDir     = "ffembed/bin"
	DefaultLogLevel     = "info"

	maxJobs = 256
)

// 配置文件按顺序发现，取第一个存在的。
var fileNames = []string{"ffbuild.yaml", "ffbuild.yml"}

// CLIArgs 是 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --keep-sources=false 必须能覆盖 keep_sources: true。
type CLIArgs struct {
	ConfigFile string

	OutDir  string
	Version string
	Target  string
	Host    string

	Features []string

	Jobs    int
	JobsSet bool

	KeepSources    bool
	KeepSourcesSet bool

	LogLevel string
}

// FileConfig 对应 ffbuild.yaml 的解析结构（严格解码，未知字段报错）。
type FileConfig struct {
	OutDir          string       `yaml:"out_dir"`
	Version         string       `yaml:"version"`
	Target          string       `yaml:"target"`
	Host            string       `yaml:"host"`
	Features        []string     `yaml:"features"`
	Jobs            int          `yaml:"jobs"`
	Proxy           *ProxyConfig `yaml:"proxy"`
	FFmpeg          *RepoConfig  `yaml:"ffmpeg"`
	X264            *RepoConfig  `yaml:"x264"`
	Nasm            *NasmConfig  `yaml:"nasm"`
	StrictLibraries bool         `yaml:"strict_libraries"`
	KeepSources     *bool        `yaml:"keep_sources"`
	EmbedDir        string       `yaml:"embed_dir"`
	LogLevel        string       `yaml:"log_level"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

type RepoConfig struct {
	Repo   string `yaml:"repo"`
	Branch string `yaml:"branch"`
}

type NasmConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Version string `yaml:"version"`
	BaseURL string `yaml:"base_url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	OutDir  string // clean + absolute
	Version version.Version
	Target  string
	Host    string

	// Features 已规范化（小写、'-' 分隔）且去重；顺序无语义。
	Features map[string]bool

	Jobs     int
	ProxyURL string

	FFmpegRepo   string
	FFmpegBranch string
	X264Repo     string

	NasmEnabled bool
	NasmVersion string // "latest" 或具体版本
	NasmBaseURL string

	StrictLibraries bool
	KeepSources     bool
	EmbedDir        string // clean + absolute；为空表示不 stage
	LogLevel        hclog.Level

	// ConfigPath 是实际读取的配置文件；未读取任何文件时为空。
	ConfigPath string
}

// Paths 推导本次构建的目录集合。
func (e EffectiveConfig) Paths() domain.Paths {
	return domain.NewPaths(e.OutDir, e.Version.SourceDirName())
}

// Enabled 判断某个 feature 是否开启（name 会被规范化）。
func (e EffectiveConfig) Enabled(name string) bool {
	return e.Features[NormalizeFeature(name)]
}

// CrossCompiling 报告 target 与 host 是否不同。
func (e EffectiveConfig) CrossCompiling() bool {
	return e.Target != e.Host
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Env 是环境变量快照（可按前缀枚举），测试里直接用 map。
type Env map[string]string

// OSEnv 读取当前进程的环境变量。
func OSEnv() Env {
	env := Env{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}
	return env
}

// MapEnv 把 map 包装为 Env。
func MapEnv(m map[string]string) Env { return Env(m) }

// LoadEffective 读取配置文件与环境变量，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) CLI 指定 --config：必须存在
// 2) 否则依次尝试 <cwd>/ffbuild.yaml、<cwd>/ffbuild.yml（可选）
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 默认值。
// features 是并集：三处声明的 feature 都会开启。
func LoadEffective(cwd string, cli CLIArgs, env Env) (EffectiveConfig, error) {
	if env == nil {
		env = OSEnv()
	}
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)
	if strings.TrimSpace(cli.ConfigFile) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigFile)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		for _, name := range fileNames {
			p := filepath.Join(cwdAbs, name)
			c, exists, e := readFileConfig(p)
			if e != nil {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: e}
			}
			if exists {
				cfgPath, fc = p, c
				break
			}
		}
	}

	eff, err := merge(cwdAbs, cli, readEnv(env), fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigPath = cfgPath
	return eff, nil
}

// envConfig 是从环境变量读到的原始值；空串表示未设置。
type envConfig struct {
	OutDir       string
	Version      string
	VersionMajor string
	VersionMinor string
	Target       string
	Host         string
	Jobs         string
	LogLevel     string
	Features     []string
}

const featurePrefix = "FFBUILD_FEATURE_"

func readEnv(env Env) envConfig {
	get := func(k string) string {
		return strings.TrimSpace(env[k])
	}
	ec := envConfig{
		OutDir:       get("FFBUILD_OUT_DIR"),
		Version:      get("FFBUILD_VERSION"),
		VersionMajor: get("FFBUILD_VERSION_MAJOR"),
		VersionMinor: get("FFBUILD_VERSION_MINOR"),
		Target:       get("FFBUILD_TARGET"),
		Host:         get("FFBUILD_HOST"),
		Jobs:         get("FFBUILD_JOBS"),
		LogLevel:     get("FFBUILD_LOG_LEVEL"),
	}
	// 只要变量存在就视为开启（与值无关）；未知名字交给 merge 报错。
	for k := range env {
		if strings.HasPrefix(k, featurePrefix) {
			ec.Features = append(ec.Features, k)
		}
	}
	sort.Strings(ec.Features)
	return ec
}

func merge(cwdAbs string, cli CLIArgs, ec envConfig, fc FileConfig) (EffectiveConfig, error) {
	outDir := firstNonEmpty(cli.OutDir, ec.OutDir, fc.OutDir, DefaultOutDir)

	ver, err := resolveVersion(cli.Version, ec, fc.Version)
	if err != nil {
		return EffectiveConfig{}, err
	}

	host := firstNonEmpty(cli.Host, ec.Host, fc.Host, DefaultHost())
	target := firstNonEmpty(cli.Target, ec.Target, fc.Target, host)

	features := map[string]bool{}
	for _, group := range [][]string{fc.Features, ec.Features, cli.Features} {
		for _, f := range group {
			name := NormalizeFeature(f)
			if name == "" {
				continue
			}
			if !flags.IsKnownFeature(name) {
				return EffectiveConfig{}, fmt.Errorf("未知 feature：%q", f)
			}
			features[name] = true
		}
	}

	// jobs：CLI > env > config > 默认 NumCPU；范围 [1, maxJobs]，超出截断。
	jobs := runtime.NumCPU()
	switch {
	case cli.JobsSet:
		jobs = cli.Jobs
	case ec.Jobs != "":
		n, err := strconv.Atoi(ec.Jobs)
		if err != nil {
			return EffectiveConfig{}, fmt.Errorf("FFBUILD_JOBS 不是数字：%q", ec.Jobs)
		}
		jobs = n
	case fc.Jobs != 0:
		jobs = fc.Jobs
	}
	if jobs < 1 {
		jobs = 1
	}
	if jobs > maxJobs {
		jobs = maxJobs
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 无效：%w", err)
		}
	}

	ffRepo, ffBranch := DefaultFFmpegRepo, DefaultFFmpegBranch
	if fc.FFmpeg != nil {
		if r := strings.TrimSpace(fc.FFmpeg.Repo); r != "" {
			ffRepo = r
			// 换了仓库但没给分支：使用对方默认分支，而不是 fork 的 ts-offset。
			ffBranch = ""
		}
		if b := strings.TrimSpace(fc.FFmpeg.Branch); b != "" {
			ffBranch = b
		}
	}
	x264Repo := DefaultX264Repo
	if fc.X264 != nil && strings.TrimSpace(fc.X264.Repo) != "" {
		x264Repo = strings.TrimSpace(fc.X264.Repo)
	}

	nasmEnabled, nasmVersion, nasmBase := true, DefaultNasmVersion, DefaultNasmBaseURL
	if fc.Nasm != nil {
		if fc.Nasm.Enabled != nil {
			nasmEnabled = *fc.Nasm.Enabled
		}
		if v := strings.TrimSpace(fc.Nasm.Version); v != "" {
			nasmVersion = v
		}
		if b := strings.TrimSpace(fc.Nasm.BaseURL); b != "" {
			nasmBase = b
		}
	}
	if nasmVersion != DefaultNasmVersion {
		if _, err := version.Resolve(nasmVersion); err != nil {
			return EffectiveConfig{}, fmt.Errorf("nasm.version 无效：%w", err)
		}
	}
	if err := validateHTTPURL("nasm.base_url", nasmBase); err != nil {
		return EffectiveConfig{}, err
	}

	// keep_sources：CLI > config > 默认 false
	keep := false
	if cli.KeepSourcesSet {
		keep = cli.KeepSources
	} else if fc.KeepSources != nil {
		keep = *fc.KeepSources
	}

	embedDir := firstNonEmpty(fc.EmbedDir, DefaultEmbedDir)
	if embedDir == "-" {
		// "-" 显式关闭 stage-embed。
		embedDir = ""
	} else {
		embedDir = absCleanFrom(cwdAbs, embedDir)
	}

	levelName := firstNonEmpty(cli.LogLevel, ec.LogLevel, fc.LogLevel, DefaultLogLevel)
	level := hclog.LevelFromString(levelName)
	if level == hclog.NoLevel {
		return EffectiveConfig{}, fmt.Errorf("log_level 无效：%q", levelName)
	}

	return EffectiveConfig{
		OutDir:          absCleanFrom(cwdAbs, outDir),
		Version:         ver,
		Target:          target,
		Host:            host,
		Features:        features,
		Jobs:            jobs,
		ProxyURL:        proxyURL,
		FFmpegRepo:      ffRepo,
		FFmpegBranch:    ffBranch,
		X264Repo:        x264Repo,
		NasmEnabled:     nasmEnabled,
		NasmVersion:     nasmVersion,
		NasmBaseURL:     strings.TrimRight(nasmBase, "/"),
		StrictLibraries: fc.StrictLibraries,
		KeepSources:     keep,
		EmbedDir:        embedDir,
		LogLevel:        level,
	}, nil
}

// resolveVersion：CLI > FFBUILD_VERSION > FFBUILD_VERSION_MAJOR/MINOR > config > 默认。
func resolveVersion(cliVersion string, ec envConfig, fileVersion string) (version.Version, error) {
	if v := strings.TrimSpace(cliVersion); v != "" {
		return version.Resolve(v)
	}
	if ec.Version != "" {
		return version.Resolve(ec.Version)
	}
	if ec.VersionMajor != "" || ec.VersionMinor != "" {
		if ec.VersionMajor == "" || ec.VersionMinor == "" {
			return version.Version{}, errors.New("FFBUILD_VERSION_MAJOR 与 FFBUILD_VERSION_MINOR 必须同时设置")
		}
		return version.FromParts(ec.VersionMajor, ec.VersionMinor)
	}
	return version.Resolve(firstNonEmpty(fileVersion, DefaultVersion))
}

// NormalizeFeature 把 feature 名统一为小写 + '-' 分隔（BUILD_LIB_X264 -> build-lib-x264）。
func NormalizeFeature(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, strings.ToLower(featurePrefix))
	return strings.ReplaceAll(s, "_", "-")
}

// DefaultHost 由 GOOS/GOARCH 推导 host triple（只覆盖常见组合；其余原样拼接）。
func DefaultHost() string {
	return hostTriple(runtime.GOOS, runtime.GOARCH)
}

func hostTriple(goos, goarch string) string {
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "386":
		arch = "i686"
	case "arm64":
		arch = "aarch64"
	case "arm":
		arch = "arm"
	}
	switch goos {
	case "linux":
		if goarch == "arm" {
			return "arm-linux-gnueabihf"
		}
		return arch + "-linux-gnu"
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-w64-mingw32"
	default:
		return arch + "-" + goos
	}
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

func firstNonEmpty(xs ...string) string {
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			return x
		}
	}
	return ""
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并严格解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）；空文件等价于全默认。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return FileConfig{}, true, nil
		}
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
