package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mgpai22/clipcut/internal/audio"
	"github.com/mgpai22/clipcut/internal/ffmpeg"
	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/subtitle"
)

// fakeTranscriber returns canned utterances keyed by file name.
type fakeTranscriber struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	out   map[string][]subtitle.Utterance
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(path))
	f.mu.Unlock()

	name := filepath.Base(path)
	if err := f.fail[name]; err != nil {
		return nil, err
	}
	return &Result{Utterances: f.out[name]}, nil
}

func fakeFactory(t Transcriber) factoryFunc {
	return func(context.Context, Provider, string, Options) (Transcriber, error) {
		return t, nil
	}
}

func writeMedia(t *testing.T) string {
	t.Helper()
	media := filepath.Join(t.TempDir(), "talk.mp4")
	if err := os.WriteFile(media, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	return media
}

func TestEngineWritesTrack(t *testing.T) {
	media := writeMedia(t)
	fake := &fakeTranscriber{out: map[string][]subtitle.Utterance{
		"talk.mp4": {
			{Start: 3 * time.Second, End: 5 * time.Second, Text: "second"},
			{Start: 0, End: 2 * time.Second, Text: "first"},
		},
	}}

	e := NewEngine(ProviderWhisper, "", Options{}, ffmpeg.BinaryPaths{})
	e.newTranscriber = fakeFactory(fake)

	var lines []string
	sink := logging.SinkFunc(func(r logging.Record) { lines = append(lines, r.Text) })

	path, err := e.Run(context.Background(), media, sink)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if path != strings.TrimSuffix(media, ".mp4")+".srt" {
		t.Errorf("track path = %s", path)
	}

	track, err := subtitle.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(track.Segments) != 2 || track.Segments[0].Text() != "first" || track.Segments[1].Index != 2 {
		t.Errorf("segments = %+v", track.Segments)
	}
	if len(lines) == 0 || lines[len(lines)-1] != "Done transcription" {
		t.Errorf("last log line = %v", lines)
	}
}

func TestEngineRegenerateGuard(t *testing.T) {
	media := writeMedia(t)
	base := strings.TrimSuffix(media, ".mp4")
	if err := os.WriteFile(base+".srt", []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(base+".md", []byte("notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	fake := &fakeTranscriber{out: map[string][]subtitle.Utterance{
		"talk.mp4": {{Start: 0, End: 2 * time.Second, Text: "fresh"}},
	}}
	e := NewEngine(ProviderWhisper, "", Options{}, ffmpeg.BinaryPaths{})
	e.newTranscriber = fakeFactory(fake)

	_, err := e.Run(context.Background(), media, nil)
	if !errors.Is(err, ErrTrackExists) {
		t.Fatalf("expected ErrTrackExists, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("transcriber called despite existing track: %v", fake.calls)
	}
	if data, _ := os.ReadFile(base + ".srt"); string(data) != "old" {
		t.Errorf("existing track modified: %q", data)
	}

	e.Force = true
	if _, err := e.Run(context.Background(), media, nil); err != nil {
		t.Fatalf("forced Run failed: %v", err)
	}
	if _, err := os.Stat(base + ".md"); !os.IsNotExist(err) {
		t.Errorf("notes file should have been removed, stat err = %v", err)
	}
	data, err := os.ReadFile(base + ".srt")
	if err != nil || !strings.Contains(string(data), "fresh") {
		t.Errorf("track not regenerated: %q, %v", data, err)
	}
}

func TestEngineNoSpeech(t *testing.T) {
	media := writeMedia(t)
	e := NewEngine(ProviderWhisper, "", Options{}, ffmpeg.BinaryPaths{})
	e.newTranscriber = fakeFactory(&fakeTranscriber{})

	if _, err := e.Run(context.Background(), media, nil); err == nil {
		t.Fatal("expected error for empty transcription")
	}
	if _, err := os.Stat(subtitle.TrackPathFor(media)); !os.IsNotExist(err) {
		t.Error("no track should be written when nothing was heard")
	}
}

func TestEngineMissingMedia(t *testing.T) {
	e := NewEngine(ProviderWhisper, "", Options{}, ffmpeg.BinaryPaths{})
	e.newTranscriber = fakeFactory(&fakeTranscriber{})
	if _, err := e.Run(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"), nil); err == nil {
		t.Fatal("expected error for missing media")
	}
}

func TestTranscribeChunksOffsetsAndOrder(t *testing.T) {
	chunks := []audio.ChunkInfo{
		{Path: "c0.mp3", Index: 0, StartTime: 0, EndTime: time.Minute},
		{Path: "c1.mp3", Index: 1, StartTime: time.Minute, EndTime: 2 * time.Minute},
		{Path: "c2.mp3", Index: 2, StartTime: 2 * time.Minute, EndTime: 150 * time.Second},
	}
	fake := &fakeTranscriber{out: map[string][]subtitle.Utterance{
		"c0.mp3": {{Start: time.Second, End: 2 * time.Second, Text: "a"}},
		"c1.mp3": {{Start: 0, End: time.Second, Text: "b"}, {Start: 5 * time.Second, End: 6 * time.Second, Text: "c"}},
		"c2.mp3": {{Start: 10 * time.Second, End: 12 * time.Second, Text: "d"}},
	}}

	result, err := TranscribeChunks(context.Background(), fake, chunks, 2, nil)
	if err != nil {
		t.Fatalf("TranscribeChunks failed: %v", err)
	}

	want := []subtitle.Utterance{
		{Start: time.Second, End: 2 * time.Second, Text: "a"},
		{Start: time.Minute, End: time.Minute + time.Second, Text: "b"},
		{Start: time.Minute + 5*time.Second, End: time.Minute + 6*time.Second, Text: "c"},
		{Start: 2*time.Minute + 10*time.Second, End: 2*time.Minute + 12*time.Second, Text: "d"},
	}
	if len(result.Utterances) != len(want) {
		t.Fatalf("got %d utterances, want %d", len(result.Utterances), len(want))
	}
	for i := range want {
		if result.Utterances[i] != want[i] {
			t.Errorf("utterance %d = %+v, want %+v", i, result.Utterances[i], want[i])
		}
	}
	if result.Duration != 150*time.Second {
		t.Errorf("duration = %v", result.Duration)
	}
}

func TestTranscribeChunksFailure(t *testing.T) {
	var chunks []audio.ChunkInfo
	for i := range 6 {
		chunks = append(chunks, audio.ChunkInfo{Path: fmt.Sprintf("c%d.mp3", i), Index: i})
	}
	boom := errors.New("quota exceeded")
	fake := &fakeTranscriber{fail: map[string]error{"c3.mp3": boom}}

	_, err := TranscribeChunks(context.Background(), fake, chunks, 3, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped chunk error, got %v", err)
	}
	if !strings.Contains(err.Error(), "chunk 3") {
		t.Errorf("error should name the chunk: %v", err)
	}
}

func TestWhisperArgs(t *testing.T) {
	w := &WhisperTranscriber{binary: "whisper", options: Options{
		Language:           "fr",
		ModelSize:          "base",
		Prompt:             "podcast",
		TranscriptLanguage: "English",
	}}
	got := strings.Join(w.args("in.wav", "/tmp/out"), " ")
	want := "in.wav --model base --output_format srt --output_dir /tmp/out --language fr --initial_prompt podcast --task translate"
	if got != want {
		t.Errorf("args = %q\nwant   %q", got, want)
	}
}

func TestWhisperTranscribe(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a unix shell")
	}
	dir := t.TempDir()

	// stand-in that prints progress and writes <name>.srt into --output_dir
	script := `#!/bin/sh
in="$1"; shift
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--output_dir" ]; then out="$2"; fi
  shift
done
name=$(basename "$in"); name="${name%.*}"
echo "[00:00.000 --> 00:02.000]  hello"
cat > "$out/$name.srt" <<'EOF'
1
00:00:00,000 --> 00:00:02,000
hello
there

2
00:00:02,500 --> 00:00:04,000
again
EOF
`
	bin := filepath.Join(dir, "whisper")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	media := filepath.Join(dir, "clip.wav")
	if err := os.WriteFile(media, []byte("wav"), 0o644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var logged []string
	sink := logging.SinkFunc(func(r logging.Record) {
		mu.Lock()
		logged = append(logged, r.Text)
		mu.Unlock()
	})

	w, err := NewWhisperTranscriber(Options{WhisperBinary: bin, Language: "en", Sink: sink})
	if err != nil {
		t.Fatal(err)
	}
	result, err := w.Transcribe(context.Background(), media)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	want := []subtitle.Utterance{
		{Start: 0, End: 2 * time.Second, Text: "hello there"},
		{Start: 2500 * time.Millisecond, End: 4 * time.Second, Text: "again"},
	}
	if len(result.Utterances) != 2 || result.Utterances[0] != want[0] || result.Utterances[1] != want[1] {
		t.Errorf("utterances = %+v", result.Utterances)
	}

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, l := range logged {
		if strings.Contains(l, "hello") {
			found = true
		}
	}
	if !found {
		t.Errorf("whisper output not streamed to sink: %v", logged)
	}
}

func TestWhisperMissingBinary(t *testing.T) {
	_, err := NewWhisperTranscriber(Options{WhisperBinary: filepath.Join(t.TempDir(), "no-whisper")})
	if err == nil {
		t.Fatal("expected error for missing whisper binary")
	}
}
