package video

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mgpai22/clipcut/internal/ffmpeg"
)

func TestExtractAudioKwargs(t *testing.T) {
	tests := []struct {
		format string
		codec  string
	}{
		{"wav", "pcm_s16le"},
		{"", "pcm_s16le"},
		{"mp3", "libmp3lame"},
		{"flac", "flac"},
	}
	for _, tt := range tests {
		opts := DefaultExtractAudioOptions()
		opts.Format = tt.format
		opts.Bitrate = "96k"
		kw := opts.kwargs()
		if kw["acodec"] != tt.codec {
			t.Errorf("%q: acodec = %v", tt.format, kw["acodec"])
		}
		_, hasBitrate := kw["b:a"]
		if hasBitrate != (tt.format == "mp3") {
			t.Errorf("%q: bitrate present = %v", tt.format, hasBitrate)
		}
	}
}

func TestGetInfo(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a unix shell")
	}
	dir := t.TempDir()

	probe := filepath.Join(dir, "ffprobe")
	script := `#!/bin/sh
cat <<'EOF'
{"streams":[{"codec_type":"video","codec_name":"vp9","width":1280,"height":720,"avg_frame_rate":"25/1"},{"codec_type":"audio","codec_name":"opus"}],"format":{"duration":"61.25"}}
EOF
`
	if err := os.WriteFile(probe, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	media := filepath.Join(dir, "clip.webm")
	if err := os.WriteFile(media, []byte("not really webm"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProcessor(ffmpeg.BinaryPaths{FFprobe: probe})
	info, err := p.GetInfo(context.Background(), media)
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if info.Duration != 61250*time.Millisecond {
		t.Errorf("duration = %v", info.Duration)
	}
	if !info.HasVideo || !info.HasAudio || info.Width != 1280 || info.FrameRate != 25 || info.Codec != "vp9" {
		t.Errorf("info = %+v", info)
	}
}

func TestGetInfoMissingFile(t *testing.T) {
	p := NewProcessor(ffmpeg.BinaryPaths{FFprobe: "ffprobe"})
	if _, err := p.GetInfo(context.Background(), filepath.Join(t.TempDir(), "nope.mp4")); err == nil {
		t.Error("expected error for missing file")
	}
}
