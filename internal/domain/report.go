package domain

import "time"

const (
	StatusDone    = "done"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
	// StatusPlanned 表示该步未执行：dry-run，或前序步骤失败后被中止。
	StatusPlanned = "planned"
)

const (
	ErrCodeConfigInvalid   = "config_invalid"
	ErrCodeConfigNotFound  = "config_not_found"
	ErrCodeFetchFailed     = "fetch_failed"
	ErrCodeConfigureFailed = "configure_failed"
	ErrCodeBuildFailed     = "build_failed"
	ErrCodeInstallFailed   = "install_failed"
	ErrCodeIOFailed        = "io_failed"
	ErrCodeMoveFailed      = "move_failed"
	ErrCodeVerifyFailed    = "verify_failed"
	ErrCodeCanceled        = "canceled"
)

// BuildReport 是对外稳定输出（report.json / stdout JSON）的结构。
type BuildReport struct {
	RunID  string `json:"run_id"`
	OutDir string `json:"out_dir"`
	DryRun bool   `json:"dry_run"`

	Version string `json:"version"`
	Target  string `json:"target"`
	Host    string `json:"host"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Steps   []StepResult  `json:"steps"`

	// ConfigureArgs 是 FFmpeg ./configure 的完整 argv（不含程序名）。
	ConfigureArgs []string   `json:"configure_args"`
	Artifacts     []Artifact `json:"artifacts"`
}

type ReportSummary struct {
	Done    int `json:"done"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Planned int `json:"planned"`
}

type StepResult struct {
	Step   Step   `json:"step"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`

	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	DurationMS int64 `json:"duration_ms"`
}

// Artifact 是构建产物清单中的一项（最终二进制或 dist 下的静态库）。
type Artifact struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Kind string `json:"kind"` // "binary" | "static_lib"
	MIME string `json:"mime,omitempty"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 steps 计算得出
//
// steps 保持执行顺序，不排序。
func (r *BuildReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Steps == nil {
		r.Steps = []StepResult{}
	}
	if r.ConfigureArgs == nil {
		r.ConfigureArgs = []string{}
	}
	if r.Artifacts == nil {
		r.Artifacts = []Artifact{}
	}

	var s ReportSummary
	for _, st := range r.Steps {
		switch st.Status {
		case StatusDone:
			s.Done++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusPlanned:
			s.Planned++
		}
	}
	r.Summary = s
}

// OK 报告整次构建是否成功（没有失败步骤）。
func (r BuildReport) OK() bool {
	return r.Summary.Failed == 0
}

// FirstFailure 返回第一个失败步骤；没有时 ok=false。
func (r BuildReport) FirstFailure() (StepResult, bool) {
	for _, st := range r.Steps {
		if st.Status == StatusFailed {
			return st, true
		}
	}
	return StepResult{}, false
}
