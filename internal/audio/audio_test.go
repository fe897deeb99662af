package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPlanChunks(t *testing.T) {
	chunks := PlanChunks("/media/talk.mp3", 25*time.Minute, 10*time.Minute, "/tmp/work")

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantEnds := []time.Duration{10 * time.Minute, 20 * time.Minute, 25 * time.Minute}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.StartTime != time.Duration(i)*10*time.Minute || c.EndTime != wantEnds[i] {
			t.Errorf("chunk %d spans %v-%v", i, c.StartTime, c.EndTime)
		}
	}
	if chunks[2].Path != filepath.Join("/tmp/work", "talk_chunk_002.mp3") {
		t.Errorf("chunk path = %q", chunks[2].Path)
	}

	if got := PlanChunks("a.mp3", 0, time.Minute, "/tmp"); got != nil {
		t.Errorf("zero duration should plan nothing, got %v", got)
	}
}

func TestCompressionKwargs(t *testing.T) {
	tests := []struct {
		format     string
		codec      string
		hasBitrate bool
	}{
		{"mp3", "libmp3lame", true},
		{"aac", "aac", true},
		{"wav", "pcm_s16le", false},
		{"flac", "flac", false},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			opts := DefaultCompressionOptions()
			opts.Format = tt.format
			kw := opts.kwargs()
			if kw["acodec"] != tt.codec {
				t.Errorf("acodec = %v", kw["acodec"])
			}
			if _, ok := kw["b:a"]; ok != tt.hasBitrate {
				t.Errorf("bitrate present = %v", ok)
			}
			if kw["ar"] != 16000 || kw["ac"] != 1 {
				t.Errorf("kwargs = %v", kw)
			}
		})
	}
}

func TestMediaTypes(t *testing.T) {
	tests := []struct {
		path         string
		video, audio bool
	}{
		{"clip.MP4", true, false},
		{"clip.mkv", true, false},
		{"voice.m4a", false, true},
		{"voice.WAV", false, true},
		{"notes.srt", false, false},
	}
	for _, tt := range tests {
		if IsVideoFile(tt.path) != tt.video || IsAudioFile(tt.path) != tt.audio {
			t.Errorf("%s: video=%v audio=%v", tt.path, IsVideoFile(tt.path), IsAudioFile(tt.path))
		}
		if IsMediaFile(tt.path) != (tt.video || tt.audio) {
			t.Errorf("%s: IsMediaFile mismatch", tt.path)
		}
	}
}

func TestCleanupChunks(t *testing.T) {
	dir := t.TempDir()
	var chunks []ChunkInfo
	for i := 0; i < 3; i++ {
		p := filepath.Join(dir, "c"+string(rune('0'+i))+".mp3")
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		chunks = append(chunks, ChunkInfo{Path: p, Index: i})
	}
	chunks = append(chunks, ChunkInfo{Path: filepath.Join(dir, "missing.mp3")})

	if err := CleanupChunks(chunks); err != nil {
		t.Fatalf("CleanupChunks: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("files left: %v", entries)
	}
}
