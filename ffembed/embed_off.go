//go:build !ffembed

package ffembed

var (
	ffmpegBin  []byte
	ffprobeBin []byte
)
