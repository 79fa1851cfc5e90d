package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/ffbuild/internal/domain"
)

func TestArtifacts_BinariesThenSortedLibs(t *testing.T) {
	p := domain.NewPaths(t.TempDir(), "ffmpeg-4.1")

	touch(t, p.Binary("ffprobe"), "probe")
	touch(t, p.Binary("ffmpeg"), "mpeg!")
	touch(t, filepath.Join(p.Lib, "libx264.a"), "x")
	touch(t, filepath.Join(p.Lib, "libavcodec.a"), "xx")
	touch(t, filepath.Join(p.Lib, "pkgconfig", "x264.pc"), "pc")

	got, err := Artifacts(p)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 4 {
		t.Fatalf("期望 4 个产物，实际 %d：%+v", len(got), got)
	}

	want := []struct {
		path string
		kind string
	}{
		{p.Binary("ffmpeg"), "binary"},
		{p.Binary("ffprobe"), "binary"},
		{filepath.Join(p.Lib, "libavcodec.a"), "static_lib"},
		{filepath.Join(p.Lib, "libx264.a"), "static_lib"},
	}
	for i, w := range want {
		if got[i].Path != w.path || got[i].Kind != w.kind {
			t.Fatalf("第 %d 项不符合预期：got=%+v want=%+v", i, got[i], w)
		}
	}
	if got[0].Size != 5 {
		t.Fatalf("size 不正确：%d", got[0].Size)
	}
	if got[0].MIME == "" {
		t.Fatalf("二进制应带 MIME")
	}
}

func TestArtifacts_EmptyOut(t *testing.T) {
	p := domain.NewPaths(filepath.Join(t.TempDir(), "missing"), "ffmpeg-4.1")

	got, err := Artifacts(p)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 0 {
		t.Fatalf("期望空清单，实际 %+v", got)
	}
}

func touch(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
