package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/John-Robertt/ffbuild/internal/domain"
)

func enabledSet(names ...string) func(string) bool {
	m := map[string]bool{}
	for _, n := range names {
		m[n] = true
	}
	return func(f string) bool { return m[f] }
}

func TestFFmpegArgs_Baseline(t *testing.T) {
	p := domain.NewPaths("/o", "ffmpeg-4.1")
	args := FFmpegArgs(Input{Paths: p, Target: "x86_64-linux-gnu", Host: "x86_64-linux-gnu", HaveAsm: true})

	assert.Equal(t, []string{
		"--prefix=/o/dist",
		"--extra-cflags=-I/o/dist/include",
		"--extra-ldflags=-L/o/dist/lib",
		"--disable-doc",
		"--disable-ffplay",
		"--disable-debug",
		"--enable-stripping",
		"--enable-static",
		"--disable-shared",
		"--enable-pic",
	}, args)
}

func TestFFmpegArgs_CrossPrefix(t *testing.T) {
	p := domain.NewPaths("/o", "ffmpeg-4.1")
	args := FFmpegArgs(Input{Paths: p, Target: "aarch64-linux-gnu", Host: "x86_64-linux-gnu", HaveAsm: true})
	assert.Contains(t, args, "--cross-prefix=aarch64-linux-gnu-")

	args = FFmpegArgs(Input{Paths: p, Target: "x", Host: "x", HaveAsm: true})
	for _, a := range args {
		assert.NotContains(t, a, "--cross-prefix")
	}
}

func TestFFmpegArgs_FeaturesOrderAndStrict(t *testing.T) {
	p := domain.NewPaths("/o", "ffmpeg-4.1")
	in := Input{
		Paths:   p,
		Target:  "h",
		Host:    "h",
		Enabled: enabledSet("build-lib-x264", "build-license-gpl", "avfilter", "build-lib-fdk-aac", "build-license-nonfree"),
		HaveAsm: false,
	}

	args := FFmpegArgs(in)
	assert.Contains(t, args, "--disable-x86asm")
	assert.Contains(t, args, "--enable-avfilter")
	assert.NotContains(t, args, "--disable-avcodec", "非 strict 模式不应输出 --disable-<lib>")

	// 许可证在库之前，库在外部库之前；外部库按表顺序（fdk-aac 在 x264 之前）。
	tail := args[len(args)-5:]
	assert.Equal(t, []string{"--enable-gpl", "--enable-nonfree", "--enable-avfilter", "--enable-libfdk-aac", "--enable-libx264"}, tail)

	in.Strict = true
	args = FFmpegArgs(in)
	assert.Contains(t, args, "--disable-avcodec")
	assert.Contains(t, args, "--enable-avfilter")
	assert.NotContains(t, args, "--disable-avutil", "avutil 不可开关")
}

func TestX264Args(t *testing.T) {
	p := domain.NewPaths("/o", "ffmpeg-4.1")
	native := "x86_64-linux-gnu"
	assert.Equal(t, []string{"--prefix", "/o/dist", "--bindir", "/o/bin", "--enable-static"}, X264Args(p, native, native, true))
	assert.Equal(t, "--disable-asm", X264Args(p, native, native, false)[5])

	cross := X264Args(p, "x86_64-w64-mingw32", native, false)
	assert.Equal(t, []string{
		"--prefix", "/o/dist", "--bindir", "/o/bin", "--enable-static",
		"--host=x86_64-w64-mingw32", "--cross-prefix=x86_64-w64-mingw32-",
		"--disable-asm",
	}, cross)
	assert.Equal(t, []string{"--prefix=/o/dist"}, NasmArgs(p))
}

func TestKnownFeatures(t *testing.T) {
	assert.True(t, IsKnownFeature("build-lib-x264"))
	assert.True(t, IsKnownFeature("swscale"))
	assert.False(t, IsKnownFeature("avutil"))
	assert.False(t, IsKnownFeature("nope"))

	all := KnownFeatures()
	assert.Len(t, all, len(licenseSwitches)+len(domain.ToggleableLibraries())+len(externalSwitches))
	assert.IsIncreasing(t, all)
}
