package subtitle

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// reads and parses a subtitle track from disk
func Open(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileIOError{Op: "read", Path: path, Err: err}
	}
	return Parse(string(data)), nil
}

// Parse splits subtitle-track text into segments. Blocks are separated by
// blank lines; each needs an index line, a time-range line and at least one
// text line. Blocks that fail are recorded in Track.Skipped and parsing
// carries on.
func Parse(content string) *Track {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	track := &Track{}
	for _, block := range splitBlocks(content) {
		seg, err := parseBlock(block)
		if err != nil {
			track.Skipped = append(track.Skipped, err)
			continue
		}
		track.Segments = append(track.Segments, seg)
	}
	return track
}

// blocks end at empty lines only; a whitespace-only line inside a block is
// text, and a block made of nothing but whitespace is dropped
func splitBlocks(content string) [][]string {
	var blocks [][]string
	var current []string
	flush := func() {
		if strings.TrimSpace(strings.Join(current, "")) != "" {
			blocks = append(blocks, current)
		}
		current = nil
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return blocks
}

func parseBlock(lines []string) (Segment, *MalformedSegmentError) {
	raw := strings.Join(lines, "\n")
	malformed := func(format string, args ...any) *MalformedSegmentError {
		return &MalformedSegmentError{Block: raw, Reason: fmt.Sprintf(format, args...)}
	}

	if len(lines) < 3 {
		return Segment{}, malformed("expected at least 3 lines, got %d", len(lines))
	}

	index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Segment{}, malformed("invalid index line %q", lines[0])
	}

	timeRange := strings.TrimSpace(lines[1])
	start, end, err := ParseRange(timeRange)
	if err != nil {
		return Segment{}, malformed("%v", err)
	}
	if start >= end {
		return Segment{}, malformed("start %s is not before end %s", FormatTimestamp(start), FormatTimestamp(end))
	}

	text := make([]string, len(lines)-2)
	copy(text, lines[2:])

	return Segment{
		Index:     index,
		Start:     start,
		End:       end,
		Lines:     text,
		TimeRange: timeRange,
	}, nil
}
