package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mgpai22/clipcut/internal/cutter"
	"github.com/mgpai22/clipcut/internal/selection"
	"github.com/mgpai22/clipcut/internal/subtitle"
)

const sampleTrack = `1
00:00:01,000 --> 00:00:03,000
one

2
00:00:04,000 --> 00:00:06,500
two

3
00:00:08,000 --> 00:00:09,000
three
`

func writeTrack(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.srt")
	if err := os.WriteFile(path, []byte(sampleTrack), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseIndexList(t *testing.T) {
	tests := []struct {
		spec    string
		want    []int
		wantErr bool
	}{
		{"1", []int{1}, false},
		{"1,3-5", []int{1, 3, 4, 5}, false},
		{" 5 , 2-3 ,2", []int{2, 3, 5}, false},
		{"4-4", []int{4}, false},
		{"1,,2", []int{1, 2}, false},
		{"0", nil, true},
		{"5-3", nil, true},
		{"a", nil, true},
		{"1-x", nil, true},
		{",", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := parseIndexList(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListSegments(t *testing.T) {
	segs := subtitle.Parse(sampleTrack).Segments

	var buf bytes.Buffer
	if err := listSegments(&buf, segs, func(i int) bool { return i == 2 }); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("output:\n%s", buf.String())
	}
	if !strings.HasPrefix(lines[1], "[x]") || !strings.HasPrefix(lines[0], "[ ]") {
		t.Errorf("selection marks wrong:\n%s", buf.String())
	}
	if !strings.Contains(lines[1], "00:00:04,000 --> 00:00:06,500") || !strings.Contains(lines[1], "2.5s") {
		t.Errorf("row 2 = %q", lines[1])
	}
	if lines[3] != "3 segments, 00:00:05" {
		t.Errorf("summary = %q", lines[3])
	}
}

func TestCutRanges(t *testing.T) {
	path := writeTrack(t)

	all, err := cutRanges(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all ranges = %v", all)
	}

	some, err := cutRanges(path, "3,1")
	if err != nil {
		t.Fatal(err)
	}
	want := []subtitle.Range{
		{Start: time.Second, End: 3 * time.Second},
		{Start: 8 * time.Second, End: 9 * time.Second},
	}
	if !reflect.DeepEqual(some, want) {
		t.Errorf("ranges = %v, want %v", some, want)
	}

	if _, err := cutRanges(path, "7"); !errors.Is(err, selection.ErrNotFound) {
		t.Errorf("unknown index = %v", err)
	}

	empty := filepath.Join(t.TempDir(), "empty.srt")
	_ = os.WriteFile(empty, []byte("\n"), 0o644)
	if _, err := cutRanges(empty, ""); !errors.Is(err, cutter.ErrNoRanges) {
		t.Errorf("empty track = %v", err)
	}
}
