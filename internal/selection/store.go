package selection

import (
	"errors"
	"fmt"
	"time"

	"github.com/mgpai22/clipcut/internal/subtitle"
)

// ErrNotFound is returned when an operation names an index the store does not hold.
var ErrNotFound = errors.New("segment not found")

// Store holds a loaded track in file order together with one selection flag
// per segment. It is the only owner of selection state and keeps the selected
// duration in step with every flag change.
//
// Store is not safe for concurrent use; callers mutate it from a single
// event loop.
type Store struct {
	segments []subtitle.Segment
	selected []bool
	byIndex  map[int]int

	selectedDur time.Duration
	totalDur    time.Duration
}

// NewStore copies segs into a store with nothing selected. Segment indices
// must be unique.
func NewStore(segs []subtitle.Segment) (*Store, error) {
	s := &Store{
		segments: make([]subtitle.Segment, len(segs)),
		selected: make([]bool, len(segs)),
		byIndex:  make(map[int]int, len(segs)),
	}
	copy(s.segments, segs)

	for pos, seg := range s.segments {
		if _, dup := s.byIndex[seg.Index]; dup {
			return nil, fmt.Errorf("duplicate segment index %d", seg.Index)
		}
		s.byIndex[seg.Index] = pos
	}
	return s, nil
}

func (s *Store) Len() int {
	return len(s.segments)
}

// Segments returns a copy of the held segments in file order.
func (s *Store) Segments() []subtitle.Segment {
	out := make([]subtitle.Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

func (s *Store) Segment(index int) (subtitle.Segment, error) {
	pos, err := s.lookup(index)
	if err != nil {
		return subtitle.Segment{}, err
	}
	return s.segments[pos], nil
}

func (s *Store) IsSelected(index int) (bool, error) {
	pos, err := s.lookup(index)
	if err != nil {
		return false, err
	}
	return s.selected[pos], nil
}

// Toggle flips the flag of exactly one segment and returns its new value.
func (s *Store) Toggle(index int) (bool, error) {
	pos, err := s.lookup(index)
	if err != nil {
		return false, err
	}
	s.set(pos, !s.selected[pos])
	return s.selected[pos], nil
}

func (s *Store) SetSelected(index int, selected bool) error {
	pos, err := s.lookup(index)
	if err != nil {
		return err
	}
	s.set(pos, selected)
	return nil
}

func (s *Store) SelectAll() {
	for pos := range s.segments {
		s.set(pos, true)
	}
}

func (s *Store) DeselectAll() {
	for pos := range s.segments {
		s.set(pos, false)
	}
}

// InvertAll flips every flag.
func (s *Store) InvertAll() {
	for pos := range s.segments {
		s.set(pos, !s.selected[pos])
	}
}

// SelectedRanges returns the spans of selected segments in track order,
// independent of the order in which they were selected.
func (s *Store) SelectedRanges() []subtitle.Range {
	var ranges []subtitle.Range
	for pos, seg := range s.segments {
		if s.selected[pos] {
			ranges = append(ranges, seg.Span())
		}
	}
	return ranges
}

// SelectedIndices returns the indices of selected segments in track order.
func (s *Store) SelectedIndices() []int {
	var indices []int
	for pos, seg := range s.segments {
		if s.selected[pos] {
			indices = append(indices, seg.Index)
		}
	}
	return indices
}

// SelectedDuration is the plain sum of selected segment durations.
// Overlapping or adjacent ranges are not merged.
func (s *Store) SelectedDuration() time.Duration {
	return s.selectedDur
}

// SetTotalDuration records the media duration reported by the player.
func (s *Store) SetTotalDuration(d time.Duration) {
	s.totalDur = d
}

func (s *Store) TotalDuration() time.Duration {
	return s.totalDur
}

// SegmentAt returns the first segment in track order whose span contains pos.
func (s *Store) SegmentAt(pos time.Duration) (subtitle.Segment, bool) {
	for _, seg := range s.segments {
		if seg.Start <= pos && pos < seg.End {
			return seg, true
		}
	}
	return subtitle.Segment{}, false
}

// SelectedOnly is an export filter that keeps the segments currently
// selected in s.
func SelectedOnly(s *Store) subtitle.Filter {
	return func(seg subtitle.Segment) bool {
		pos, ok := s.byIndex[seg.Index]
		return ok && s.selected[pos]
	}
}

func (s *Store) lookup(index int) (int, error) {
	pos, ok := s.byIndex[index]
	if !ok {
		return 0, fmt.Errorf("index %d: %w", index, ErrNotFound)
	}
	return pos, nil
}

func (s *Store) set(pos int, selected bool) {
	if s.selected[pos] == selected {
		return
	}
	s.selected[pos] = selected
	if selected {
		s.selectedDur += s.segments[pos].Duration()
	} else {
		s.selectedDur -= s.segments[pos].Duration()
	}
}
