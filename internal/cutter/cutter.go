package cutter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/mgpai22/clipcut/internal/ffmpeg"
	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/subtitle"
)

var (
	ErrNoRanges     = errors.New("no segments to keep")
	ErrOutputExists = errors.New("cut output already exists")
)

const DefaultBitrate = "2000k"

// cut settings
type Options struct {
	Bitrate string // video bitrate passed as -b:v
	Force   bool   // replace an existing <base>_cut<ext>
}

// Cutter keeps the listed time ranges of a media file and drops the rest.
type Cutter struct {
	bin ffmpeg.BinaryPaths
}

func New(bin ffmpeg.BinaryPaths) *Cutter {
	return &Cutter{bin: bin}
}

// path of the cut beside the source media
func OutputPath(mediaPath string) string {
	ext := filepath.Ext(mediaPath)
	return strings.TrimSuffix(mediaPath, ext) + "_cut" + ext
}

// Cut renders the segments of the subtitle track at srtPath.
func (c *Cutter) Cut(
	ctx context.Context,
	mediaPath, srtPath string,
	opts Options,
	sink logging.Sink,
) (string, error) {
	track, err := subtitle.Open(srtPath)
	if err != nil {
		return "", err
	}
	for _, skipped := range track.Skipped {
		logging.Warnf(sink, "skipping %v", skipped)
	}

	ranges := make([]subtitle.Range, 0, len(track.Segments))
	for _, seg := range track.Segments {
		ranges = append(ranges, seg.Span())
	}
	return c.CutRanges(ctx, mediaPath, ranges, opts, sink)
}

// CutRanges renders ranges of mediaPath, in media order, into one file.
func (c *Cutter) CutRanges(
	ctx context.Context,
	mediaPath string,
	ranges []subtitle.Range,
	opts Options,
	sink logging.Sink,
) (string, error) {
	if sink == nil {
		sink = logging.Discard
	}
	if len(ranges) == 0 {
		return "", ErrNoRanges
	}

	info, err := ffmpeg.Probe(ctx, c.bin, mediaPath)
	if err != nil {
		return "", fmt.Errorf("failed to inspect %s: %w", mediaPath, err)
	}
	if !info.HasVideo && !info.HasAudio {
		return "", fmt.Errorf("%s has no audio or video streams", mediaPath)
	}

	out := OutputPath(mediaPath)
	if err := prepareOutput(out, opts.Force, sink); err != nil {
		return "", err
	}

	bitrate := opts.Bitrate
	if bitrate == "" {
		bitrate = DefaultBitrate
	}

	logging.Infof(sink, "cutting %d segments (%s) from %s",
		len(ranges), subtitle.FormatClock(total(ranges)), filepath.Base(mediaPath))

	stream := buildStream(mediaPath, out, ranges, info.HasVideo, info.HasAudio, bitrate)
	if err := ffmpeg.Run(ctx, stream, c.bin, sink); err != nil {
		_ = os.Remove(out)
		return "", err
	}

	logging.Infof(sink, "wrote %s", out)
	return out, nil
}

// prepareOutput clears the way for out. A leftover file is only replaced
// when force is set.
func prepareOutput(out string, force bool, sink logging.Sink) error {
	if _, err := os.Stat(out); err != nil {
		return nil
	}
	if !force {
		return fmt.Errorf("%w: %s (use --force to replace it)", ErrOutputExists, out)
	}
	if err := os.Remove(out); err != nil {
		logging.Errorf(sink, "could not remove existing cut file %s: %v; remove it manually and retry", out, err)
		return &subtitle.FileIOError{Op: "remove existing", Path: out, Err: err}
	}
	return nil
}

func buildStream(
	mediaPath, out string,
	ranges []subtitle.Range,
	hasVideo, hasAudio bool,
	bitrate string,
) *ffmpeggo.Stream {
	expr := selectExpr(ranges)
	in := ffmpeggo.Input(mediaPath)

	var streams []*ffmpeggo.Stream
	kwargs := ffmpeggo.KwArgs{}
	if hasVideo {
		v := in.Video().
			Filter("select", ffmpeggo.Args{expr}).
			Filter("setpts", ffmpeggo.Args{"N/FRAME_RATE/TB"})
		streams = append(streams, v)
		kwargs["b:v"] = bitrate
	}
	if hasAudio {
		a := in.Audio().
			Filter("aselect", ffmpeggo.Args{expr}).
			Filter("asetpts", ffmpeggo.Args{"N/SR/TB"})
		streams = append(streams, a)
	}
	return ffmpeggo.Output(streams, out, kwargs)
}

// selectExpr is true for timestamps inside any of the ranges
func selectExpr(ranges []subtitle.Range) string {
	terms := make([]string, 0, len(ranges))
	for _, r := range ranges {
		terms = append(terms, fmt.Sprintf("between(t,%s,%s)", secs(r.Start), secs(r.End)))
	}
	return strings.Join(terms, "+")
}

func secs(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func total(ranges []subtitle.Range) time.Duration {
	var sum time.Duration
	for _, r := range ranges {
		sum += r.Duration()
	}
	return sum
}
