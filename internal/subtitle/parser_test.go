package subtitle

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseTwoBlocks(t *testing.T) {
	content := "1\n00:00:01,000 --> 00:00:03,500\nHello\n\n2\n00:00:04,000 --> 00:00:06,000\nWorld"

	track := Parse(content)
	if len(track.Skipped) != 0 {
		t.Fatalf("unexpected skipped blocks: %v", track.Skipped)
	}
	if len(track.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(track.Segments))
	}

	want := []struct {
		index      int
		start, end time.Duration
		text       string
	}{
		{1, 1000 * time.Millisecond, 3500 * time.Millisecond, "Hello"},
		{2, 4000 * time.Millisecond, 6000 * time.Millisecond, "World"},
	}
	for i, w := range want {
		seg := track.Segments[i]
		if seg.Index != w.index || seg.Start != w.start || seg.End != w.end || seg.Text() != w.text {
			t.Errorf(
				"segment %d = (%d, %v, %v, %q), want (%d, %v, %v, %q)",
				i, seg.Index, seg.Start, seg.End, seg.Text(),
				w.index, w.start, w.end, w.text,
			)
		}
	}
}

func TestParseKeepsFileOrderAndMultilineText(t *testing.T) {
	content := `1
00:00:01,000 --> 00:00:04,000
Hello, world!

2
00:00:05,500 --> 00:00:08,200
This is a test.
With multiple lines.

3
00:00:10,000 --> 00:00:12,500
Final subtitle.
`
	track := Parse(content)
	if len(track.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(track.Segments))
	}

	for i, seg := range track.Segments {
		if seg.Index != i+1 {
			t.Errorf("segment %d: index %d, want %d", i, seg.Index, i+1)
		}
		if seg.Start >= seg.End {
			t.Errorf("segment %d: start %v not before end %v", i, seg.Start, seg.End)
		}
	}

	lines := track.Segments[1].Lines
	if len(lines) != 2 || lines[0] != "This is a test." || lines[1] != "With multiple lines." {
		t.Errorf("segment 2 lines = %q", lines)
	}
	if track.Segments[1].TimeRange != "00:00:05,500 --> 00:00:08,200" {
		t.Errorf("time range = %q", track.Segments[1].TimeRange)
	}
}

func TestParseSkipsMalformedBlocks(t *testing.T) {
	content := "\ufeff1\r\n00:00:01,000 --> 00:00:02,000\r\nok\r\n\r\n" +
		"2\n00:00:03,000 --> 00:00:04,000\n\n\n" +
		"x\n00:00:05,000 --> 00:00:06,000\nbad index\n\n" +
		"4\n00:00:07,000 -> 00:00:08,000\nbad arrow\n\n" +
		"5\n00:00:09,000 --> 00:00:09,000\nzero length\n\n" +
		"6\n0:00:10.250 --> 0:00:11.5\ndot separator\n"

	track := Parse(content)

	if len(track.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(track.Segments), track.Segments)
	}
	if track.Segments[0].Text() != "ok" {
		t.Errorf("first segment text = %q", track.Segments[0].Text())
	}

	last := track.Segments[1]
	if last.Index != 6 || last.Start != 10250*time.Millisecond || last.End != 11500*time.Millisecond {
		t.Errorf("dot-separated segment = %+v", last)
	}

	if len(track.Skipped) != 4 {
		t.Fatalf("expected 4 skipped blocks, got %d", len(track.Skipped))
	}
	for _, skipped := range track.Skipped {
		if !errors.Is(skipped, ErrMalformedSegment) {
			t.Errorf("skipped error %v does not match ErrMalformedSegment", skipped)
		}
	}
	if !strings.HasPrefix(track.Skipped[0].Block, "2\n00:00:03,000") {
		t.Errorf("skipped block should carry its raw text, got %q", track.Skipped[0].Block)
	}
	if !strings.Contains(track.Skipped[0].Error(), "at least 3 lines") {
		t.Errorf("unexpected reason: %v", track.Skipped[0])
	}
}

func TestParseWhitespaceLineStaysInBlock(t *testing.T) {
	track := Parse("1\n00:00:01,000 --> 00:00:02,000\nHello\n   \nthere\n\n2\n00:00:03,000 --> 00:00:04,000\nbye\n")

	if len(track.Skipped) != 0 {
		t.Fatalf("unexpected skipped blocks: %v", track.Skipped)
	}
	if len(track.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(track.Segments))
	}
	if got := track.Segments[0].Lines; !reflect.DeepEqual(got, []string{"Hello", "   ", "there"}) {
		t.Errorf("lines = %q", got)
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, in := range []string{"", "\n\n", "   \n"} {
		track := Parse(in)
		if len(track.Segments) != 0 || len(track.Skipped) != 0 {
			t.Errorf("Parse(%q) = %+v, want empty track", in, track)
		}
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.srt"))
	var ioErr *FileIOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected *FileIOError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:00:01,000", time.Second, false},
		{"01:02:03,456", time.Hour + 2*time.Minute + 3*time.Second + 456*time.Millisecond, false},
		{"1:02:03.456", time.Hour + 2*time.Minute + 3*time.Second + 456*time.Millisecond, false},
		{"100:00:00,001", 100*time.Hour + time.Millisecond, false},
		{"00:00:01,5", 1500 * time.Millisecond, false},
		{"00:61:00,000", 0, true},
		{"00:00:01", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseTimestamp(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00,000"},
		{3500 * time.Millisecond, "00:00:03,500"},
		{time.Hour + 59*time.Minute + 59*time.Second + 999*time.Millisecond, "01:59:59,999"},
		{-time.Second, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.in); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if got := FormatClock(3*time.Hour + 4*time.Minute + 5*time.Second + 900*time.Millisecond); got != "03:04:05" {
		t.Errorf("FormatClock = %q", got)
	}
}
