package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/John-Robertt/ffbuild/internal/infra/cache"
	"github.com/John-Robertt/ffbuild/internal/infra/execx"
)

// Source 是一份需要拉取到本地目录的源码（FFmpeg、x264、nasm）。
//
// 约束：
// - Dest 已是目录时 Fetch 直接返回 nil（幂等）
// - Fetch 失败时不留下半成品目录，避免下次运行被误判为“已拉取”
type Source interface {
	Name() string
	Dest() string
	Fetch(ctx context.Context, deps Deps) error
}

// Deps 是拉取源码需要的外部能力；测试用假 Runner / httptest 替换。
type Deps struct {
	Runner execx.Runner
	HTTP   *http.Client
	Cache  cache.Store
	Log    hclog.Logger
}

func (d Deps) logger() hclog.Logger {
	if d.Log == nil {
		return hclog.NewNullLogger()
	}
	return d.Log
}

// Error 是拉取阶段的可追溯错误；上层统一归类为 fetch_failed。
type Error struct {
	Source string // source name（小写）
	Stage  string // "clone" / "download" / "extract"
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source=%s stage=%s: %v", e.Source, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Registry 是 source 的只读注册表（按 name 索引）。
type Registry struct {
	byName map[string]Source
}

func NewRegistry(sources ...Source) (Registry, error) {
	byName := make(map[string]Source, len(sources))
	for _, s := range sources {
		if s == nil {
			return Registry{}, fmt.Errorf("source 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(s.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("source.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 source：%q", name)
		}
		byName[name] = s
	}
	return Registry{byName: byName}, nil
}

func (r Registry) Get(name string) (Source, bool) {
	if r.byName == nil {
		return nil, false
	}
	s, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}
