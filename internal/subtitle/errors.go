package subtitle

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedSegment matches every *MalformedSegmentError via errors.Is.
var ErrMalformedSegment = errors.New("malformed subtitle segment")

// MalformedSegmentError names a block that could not be parsed.
// Parsing continues past it; callers report what was skipped.
type MalformedSegmentError struct {
	Block  string
	Reason string
}

func (e *MalformedSegmentError) Error() string {
	return fmt.Sprintf("malformed segment (%s): %q", e.Reason, firstLine(e.Block))
}

func (e *MalformedSegmentError) Is(target error) bool {
	return target == ErrMalformedSegment
}

// FileIOError carries the path an operator needs to fix by hand.
type FileIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileIOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileIOError) Unwrap() error {
	return e.Err
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
