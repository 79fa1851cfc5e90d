package domain

// Library 描述 FFmpeg 的一个内部库。
//
// IsFeature=false 表示该库不可单独开关（例如 avutil 总是会被构建）。
type Library struct {
	Name      string
	IsFeature bool
}

// Libraries 是 FFmpeg 内部库的固定表；flag 生成按该顺序输出，保证 argv 稳定。
var Libraries = []Library{
	{Name: "avcodec", IsFeature: true},
	{Name: "avdevice", IsFeature: true},
	{Name: "avfilter", IsFeature: true},
	{Name: "avformat", IsFeature: true},
	{Name: "avresample", IsFeature: true},
	{Name: "avutil", IsFeature: false},
	{Name: "postproc", IsFeature: true},
	{Name: "swresample", IsFeature: true},
	{Name: "swscale", IsFeature: true},
}

// ToggleableLibraries 返回 IsFeature=true 的库（顺序与 Libraries 一致）。
func ToggleableLibraries() []Library {
	out := make([]Library, 0, len(Libraries))
	for _, l := range Libraries {
		if l.IsFeature {
			out = append(out, l)
		}
	}
	return out
}
