package subtitle

import (
	"strings"
	"time"
)

// represents one numbered subtitle block of a track
type Segment struct {
	Index int
	Start time.Duration
	End   time.Duration
	Lines []string

	// time-range line exactly as it appeared in the source track
	TimeRange string
}

// a half-open playback interval
type Range struct {
	Start time.Duration
	End   time.Duration
}

func (r Range) Duration() time.Duration {
	return r.End - r.Start
}

func (s Segment) Span() Range {
	return Range{Start: s.Start, End: s.End}
}

func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

func (s Segment) Text() string {
	return strings.Join(s.Lines, "\n")
}

// time-range line as written on export; falls back to the canonical
// rendering for segments that were not read from a track
func (s Segment) RangeLine() string {
	if s.TimeRange != "" {
		return s.TimeRange
	}
	return FormatRange(s.Start, s.End)
}

// parsed subtitle track plus the blocks that were skipped
type Track struct {
	Segments []Segment
	Skipped  []*MalformedSegmentError
}

// represents transcribed audio utterance before numbering
type Utterance struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Filter decides which segments an export includes.
type Filter func(seg Segment) bool

// All keeps every segment.
func All(Segment) bool { return true }
