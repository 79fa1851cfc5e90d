package builder

import (
	"time"

	"github.com/John-Robertt/ffbuild/internal/config"
	"github.com/John-Robertt/ffbuild/internal/domain"
)

// Observer 把“构建进度/步骤结果”从核心执行流程中解耦出来。
//
// 约束：
// - builder 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 步骤严格串行，但 CLI 的 keepalive ticker 会并发读取状态，实现需自行加锁
type Observer interface {
	// OnStart 在规划完成后调用；plans 是完整的步骤序列。
	OnStart(eff config.EffectiveConfig, plans []domain.StepPlan, dryRun bool)
	// OnStepStart 在真正执行某一步之前调用（跳过的步骤不触发）。
	OnStepStart(idx, total int, step domain.Step)
	// OnStepDone 在每一步有结论后调用（包括 skipped/planned）。
	OnStepDone(idx, total int, res domain.StepResult, dur time.Duration)
}
