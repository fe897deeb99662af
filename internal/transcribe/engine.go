package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mgpai22/clipcut/internal/audio"
	"github.com/mgpai22/clipcut/internal/ffmpeg"
	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/subtitle"
)

// ErrTrackExists is returned when the media already has a subtitle track
// and the caller did not ask to regenerate it.
var ErrTrackExists = errors.New("subtitle track already exists")

type factoryFunc func(ctx context.Context, provider Provider, apiKey string, opts Options) (Transcriber, error)

// Engine turns a media file into a subtitle track beside it.
type Engine struct {
	Provider      Provider
	APIKey        string
	Options       Options
	Bin           ffmpeg.BinaryPaths
	ChunkDuration time.Duration
	Concurrency   int
	Force         bool
	Generator     *subtitle.Generator

	newTranscriber factoryFunc
}

func NewEngine(provider Provider, apiKey string, opts Options, bin ffmpeg.BinaryPaths) *Engine {
	opts.Bin = bin
	return &Engine{
		Provider:       provider,
		APIKey:         apiKey,
		Options:        opts,
		Bin:            bin,
		ChunkDuration:  10 * time.Minute,
		Concurrency:    3,
		Generator:      subtitle.NewGenerator(),
		newTranscriber: Factory,
	}
}

// companion files written next to the media by earlier runs
func trackFiles(mediaPath string) []string {
	base := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath))
	return []string{base + ".srt", base + ".md"}
}

// guard refuses to clobber an earlier track unless Force is set, in
// which case the track and its notes file are removed.
func (e *Engine) guard(mediaPath string, sink logging.Sink) error {
	trackPath := subtitle.TrackPathFor(mediaPath)
	if _, err := os.Stat(trackPath); err != nil {
		return nil
	}
	if !e.Force {
		return fmt.Errorf("%w: %s (use --force to regenerate)", ErrTrackExists, trackPath)
	}
	for _, p := range trackFiles(mediaPath) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &subtitle.FileIOError{Op: "remove existing", Path: p, Err: err}
		}
	}
	logging.Infof(sink, "removed existing subtitles for %s", filepath.Base(mediaPath))
	return nil
}

// Run transcribes mediaPath and writes <base>.srt, returning its path.
func (e *Engine) Run(ctx context.Context, mediaPath string, sink logging.Sink) (string, error) {
	if sink == nil {
		sink = logging.Discard
	}
	if _, err := os.Stat(mediaPath); err != nil {
		return "", fmt.Errorf("media file not found: %s", mediaPath)
	}
	if err := e.guard(mediaPath, sink); err != nil {
		return "", err
	}

	opts := e.Options
	opts.Sink = sink
	opts.Bin = e.Bin
	newTranscriber := e.newTranscriber
	if newTranscriber == nil {
		newTranscriber = Factory
	}
	t, err := newTranscriber(ctx, e.Provider, e.APIKey, opts)
	if err != nil {
		return "", fmt.Errorf("failed to create transcriber: %w", err)
	}

	logging.Infof(sink, "Starting transcription of %s (%s)", filepath.Base(mediaPath), e.Provider)

	var result *Result
	if e.Provider.Remote() {
		result, err = e.transcribeRemote(ctx, t, mediaPath, sink)
	} else {
		result, err = t.Transcribe(ctx, mediaPath)
	}
	if err != nil {
		return "", err
	}

	gen := e.Generator
	if gen == nil {
		gen = subtitle.NewGenerator()
	}
	segments := gen.Generate(result.Utterances)
	if len(segments) == 0 {
		return "", fmt.Errorf("no speech detected in %s", mediaPath)
	}

	trackPath := subtitle.TrackPathFor(mediaPath)
	if err := subtitle.WriteFile(trackPath, segments, subtitle.All); err != nil {
		return "", err
	}
	logging.Infof(sink, "wrote %d segments to %s", len(segments), trackPath)
	logging.Infof(sink, "Done transcription")
	return trackPath, nil
}

// uploads go out as compressed mono audio, split when long
func (e *Engine) transcribeRemote(
	ctx context.Context,
	t Transcriber,
	mediaPath string,
	sink logging.Sink,
) (*Result, error) {
	workDir, err := os.MkdirTemp("", "clipcut-transcribe-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	compressed := filepath.Join(workDir, base+".mp3")

	logging.Infof(sink, "compressing audio")
	if err := audio.CompressAudio(ctx, e.Bin, mediaPath, compressed, audio.DefaultCompressionOptions(), sink); err != nil {
		return nil, err
	}

	total, err := audio.GetDuration(ctx, e.Bin, compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio duration: %w", err)
	}

	if e.ChunkDuration <= 0 || total <= e.ChunkDuration {
		return t.Transcribe(ctx, compressed)
	}

	chunks, err := audio.ChunkAudio(ctx, e.Bin, compressed, e.ChunkDuration, filepath.Join(workDir, "chunks"), e.Concurrency, sink)
	if err != nil {
		return nil, err
	}
	defer audio.CleanupChunks(chunks)

	result, err := TranscribeChunks(ctx, t, chunks, e.Concurrency, sink)
	if err != nil {
		return nil, err
	}
	result.Language = e.Options.Language
	return result, nil
}
