package fetch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/John-Robertt/ffbuild/internal/infra/execx"
	"github.com/John-Robertt/ffbuild/internal/infra/fsx"
)

// GitSource 通过浅克隆拉取源码：git clone [-b <branch>] --depth=1 <repo> <dir>。
type GitSource struct {
	Label  string
	Repo   string
	Branch string // 为空时使用远端默认分支
	Dir    string
}

var _ Source = GitSource{}

func (g GitSource) Name() string { return g.Label }
func (g GitSource) Dest() string { return g.Dir }

// CloneArgs 返回 git 的参数（不含 "git" 本身）；plan 模式用于展示。
func (g GitSource) CloneArgs() []string {
	args := []string{"clone"}
	if g.Branch != "" {
		args = append(args, "-b", g.Branch)
	}
	return append(args, "--depth=1", g.Repo, filepath.Base(g.Dir))
}

func (g GitSource) Fetch(ctx context.Context, deps Deps) error {
	if fsx.IsDir(g.Dir) {
		deps.logger().Debug("source already present", "source", g.Label, "dir", g.Dir)
		return nil
	}
	parent := filepath.Dir(g.Dir)
	if err := fsx.EnsureDir(parent); err != nil {
		return &Error{Source: g.Label, Stage: "clone", Err: err}
	}

	_, err := deps.Runner.Run(ctx, execx.Command{
		Dir:  parent,
		Name: "git",
		Args: g.CloneArgs(),
	})
	if err != nil {
		_ = os.RemoveAll(g.Dir)
		return &Error{Source: g.Label, Stage: "clone", Err: err}
	}
	return nil
}
