//go:build ffembed

package ffembed

import _ "embed"

//go:embed bin/ffmpeg
var ffmpegBin []byte

//go:embed bin/ffprobe
var ffprobeBin []byte
