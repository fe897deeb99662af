package subtitle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Render serializes segments in the block format read by Parse, keeping
// each segment's own index, time-range line and text lines.
func Render(segments []Segment) string {
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteString(fmt.Sprintf("%d\n", seg.Index))
		sb.WriteString(seg.RangeLine())
		sb.WriteString("\n")
		sb.WriteString(seg.Text())
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// RenderFiltered renders only the segments accepted by keep, in order.
func RenderFiltered(segments []Segment, keep Filter) string {
	return Render(Select(segments, keep))
}

func Select(segments []Segment, keep Filter) []Segment {
	if keep == nil {
		keep = All
	}
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if keep(seg) {
			out = append(out, seg)
		}
	}
	return out
}

// WriteFile exports the segments accepted by keep to path. An existing file
// is removed first; the content goes to a temporary file in the same
// directory that is renamed into place only once fully written.
func WriteFile(path string, segments []Segment, keep Filter) error {
	if err := ensureDir(path); err != nil {
		return &FileIOError{Op: "create directory for", Path: path, Err: err}
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &FileIOError{Op: "remove existing", Path: path, Err: err}
	}

	return writeFileAtomic(path, []byte(RenderFiltered(segments, keep)))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &FileIOError{Op: "create temp file for", Path: path, Err: err}
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return &FileIOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &FileIOError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &FileIOError{Op: "close", Path: tmpName, Err: err}
	}
	_ = os.Chmod(tmpName, 0o644)

	if err := os.Rename(tmpName, path); err != nil {
		return &FileIOError{Op: "rename temp file to", Path: path, Err: err}
	}
	committed = true
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// path of the subtitle track that sits beside a media file
func TrackPathFor(mediaPath string) string {
	return strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + ".srt"
}
