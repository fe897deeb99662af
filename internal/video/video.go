package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/mgpai22/clipcut/internal/ffmpeg"
	"github.com/mgpai22/clipcut/internal/logging"
)

// video file information
type Info struct {
	Path      string
	Duration  time.Duration
	Width     int
	Height    int
	FrameRate float64
	Codec     string
	HasVideo  bool
	HasAudio  bool
}

// defines interface for video processing operations
type Processor interface {
	// extracts audio from video file
	ExtractAudio(
		ctx context.Context,
		videoPath, outputPath string,
		opts ExtractAudioOptions,
		sink logging.Sink,
	) error

	// retrieves media file information
	GetInfo(ctx context.Context, videoPath string) (*Info, error)
}

// holds options for audio extraction
type ExtractAudioOptions struct {
	Format     string // Output format (wav, mp3, aac, flac)
	SampleRate int    // Sample rate in Hz (e.g., 16000, 44100, 48000)
	Channels   int    // Number of channels (1 = mono, 2 = stereo)
	Bitrate    string // Bitrate for lossy formats (e.g., "128k", "320k")
}

// returns sensible defaults for audio extraction
func DefaultExtractAudioOptions() ExtractAudioOptions {
	return ExtractAudioOptions{
		Format:     "wav",
		SampleRate: 16000,
		Channels:   1,
	}
}

func (o ExtractAudioOptions) kwargs() ffmpeggo.KwArgs {
	kwargs := ffmpeggo.KwArgs{
		"vn": "",           // No video
		"ar": o.SampleRate, // Sample rate
		"ac": o.Channels,   // Channels
	}

	switch o.Format {
	case "mp3":
		kwargs["acodec"] = "libmp3lame"
		if o.Bitrate != "" {
			kwargs["b:a"] = o.Bitrate
		}
	case "aac":
		kwargs["acodec"] = "aac"
		if o.Bitrate != "" {
			kwargs["b:a"] = o.Bitrate
		}
	case "flac":
		kwargs["acodec"] = "flac"
	default:
		kwargs["acodec"] = "pcm_s16le"
	}
	return kwargs
}

// default implementation using ffmpeg
type DefaultProcessor struct {
	bin ffmpeg.BinaryPaths
}

func NewProcessor(bin ffmpeg.BinaryPaths) *DefaultProcessor {
	return &DefaultProcessor{bin: bin}
}

// extracts audio from video file
func (p *DefaultProcessor) ExtractAudio(
	ctx context.Context,
	videoPath, outputPath string,
	opts ExtractAudioOptions,
	sink logging.Sink,
) error {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return fmt.Errorf("video file not found: %s", videoPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	stream := ffmpeggo.Input(videoPath).Output(outputPath, opts.kwargs())
	if err := ffmpeg.Run(ctx, stream, p.bin, sink); err != nil {
		return fmt.Errorf("ffmpeg extraction failed: %w", err)
	}
	return nil
}

// retrieves media file information
func (p *DefaultProcessor) GetInfo(ctx context.Context, videoPath string) (*Info, error) {
	probe, err := ffmpeg.Probe(ctx, p.bin, videoPath)
	if err != nil {
		return nil, err
	}
	return &Info{
		Path:      videoPath,
		Duration:  probe.Duration,
		Width:     probe.Width,
		Height:    probe.Height,
		FrameRate: probe.FrameRate,
		Codec:     probe.VideoCodec,
		HasVideo:  probe.HasVideo,
		HasAudio:  probe.HasAudio,
	}, nil
}
