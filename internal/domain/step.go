package domain

// Step 是构建序列中的一步；顺序即执行顺序。
type Step string

const (
	// StepSetup 不是计划中的步骤：规划之前的失败（out 目录、状态读取）记在这里。
	StepSetup Step = "setup"

	StepFetchNasm       Step = "fetch-nasm"
	StepBuildNasm       Step = "build-nasm"
	StepFetchX264       Step = "fetch-x264"
	StepBuildX264       Step = "build-x264"
	StepFetchFFmpeg     Step = "fetch-ffmpeg"
	StepConfigureFFmpeg Step = "configure-ffmpeg"
	StepMakeFFmpeg      Step = "make-ffmpeg"
	StepRelocate        Step = "relocate"
	StepCleanup         Step = "cleanup"
	StepVerify          Step = "verify"
	StepStageEmbed      Step = "stage-embed"
)

// StepPlan 是 planner 对某一步的决定（只描述，不执行）。
type StepPlan struct {
	Step   Step
	Skip   bool
	Reason string // Skip=true 时说明原因，例如 "x264 已安装"
}

// Binaries 是最终要嵌入的两个可执行文件名（不含平台后缀）。
var Binaries = []string{"ffmpeg", "ffprobe"}
