package reconcile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mgpai22/clipcut/internal/selection"
	"github.com/mgpai22/clipcut/internal/subtitle"
)

// ErrNoMatches means the edited text held no recognizable time ranges.
// The store is left untouched.
var ErrNoMatches = errors.New("no time ranges found in edited subtitles")

type Mode string

const (
	// Literal selects a segment only when its time-range line appears
	// verbatim in the edited text. A single millisecond of formatting
	// drift counts as a miss.
	Literal Mode = "literal"
	// Numeric compares parsed start and end times within Tolerance.
	Numeric Mode = "numeric"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", Literal:
		return Literal, nil
	case Numeric:
		return m, nil
	default:
		return "", fmt.Errorf("unknown reconcile mode %q (want literal or numeric)", s)
	}
}

type Options struct {
	Mode      Mode
	Tolerance time.Duration
}

// Result summarizes how the selection moved.
type Result struct {
	// time ranges recognized in the edited text
	Ranges int
	// indices selected after reconciliation, in track order
	Selected []int
	// edited ranges that matched no segment
	Unmatched int
}

var (
	literalPattern = regexp.MustCompile(`\d{2}:\d{2}:\d{2},\d{3} --> \d{2}:\d{2}:\d{2},\d{3}`)
	loosePattern   = regexp.MustCompile(`(\d+:\d{1,2}:\d{1,2}[,.]\d{1,3})\s*-->\s*(\d+:\d{1,2}:\d{1,2}[,.]\d{1,3})`)
)

// Reconcile sets each segment of store selected if and only if its time
// range is found in edited. Segments are never added, removed or reordered.
func Reconcile(store *selection.Store, edited string, opts Options) (Result, error) {
	switch opts.Mode {
	case Numeric:
		return reconcileNumeric(store, edited, opts.Tolerance)
	case "", Literal:
		return reconcileLiteral(store, edited)
	default:
		return Result{}, fmt.Errorf("unknown reconcile mode %q", opts.Mode)
	}
}

func reconcileLiteral(store *selection.Store, edited string) (Result, error) {
	found := literalPattern.FindAllString(edited, -1)
	if len(found) == 0 {
		return Result{}, ErrNoMatches
	}

	wanted := make(map[string]bool, len(found))
	for _, r := range found {
		wanted[r] = true
	}

	matched := make(map[string]bool, len(found))
	for _, seg := range store.Segments() {
		key := literalKey(seg)
		keep := wanted[key]
		if keep {
			matched[key] = true
		}
		if err := store.SetSelected(seg.Index, keep); err != nil {
			return Result{}, err
		}
	}

	return Result{
		Ranges:    len(wanted),
		Selected:  store.SelectedIndices(),
		Unmatched: len(wanted) - len(matched),
	}, nil
}

// the time-range text a segment is known by. Lines in another layout (dot
// separators, single-digit hours) fall back to the canonical rendering of
// their parsed times.
func literalKey(seg subtitle.Segment) string {
	if k := literalPattern.FindString(seg.TimeRange); k != "" {
		return k
	}
	return subtitle.FormatRange(seg.Start, seg.End)
}

func reconcileNumeric(store *selection.Store, edited string, tolerance time.Duration) (Result, error) {
	if tolerance < 0 {
		return Result{}, fmt.Errorf("negative tolerance %s", tolerance)
	}

	var ranges []subtitle.Range
	for _, m := range loosePattern.FindAllStringSubmatch(edited, -1) {
		start, err := subtitle.ParseTimestamp(m[1])
		if err != nil {
			continue
		}
		end, err := subtitle.ParseTimestamp(m[2])
		if err != nil {
			continue
		}
		ranges = append(ranges, subtitle.Range{Start: start, End: end})
	}
	if len(ranges) == 0 {
		return Result{}, ErrNoMatches
	}

	used := make([]bool, len(ranges))
	for _, seg := range store.Segments() {
		keep := false
		for i, r := range ranges {
			if within(seg.Start, r.Start, tolerance) && within(seg.End, r.End, tolerance) {
				keep = true
				used[i] = true
			}
		}
		if err := store.SetSelected(seg.Index, keep); err != nil {
			return Result{}, err
		}
	}

	unmatched := 0
	for _, u := range used {
		if !u {
			unmatched++
		}
	}
	return Result{
		Ranges:    len(ranges),
		Selected:  store.SelectedIndices(),
		Unmatched: unmatched,
	}, nil
}

func within(a, b, tolerance time.Duration) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}
