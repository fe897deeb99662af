package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/mgpai22/clipcut/internal/ffmpeg"
	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/subtitle"
)

// transcription result
type Result struct {
	Utterances []subtitle.Utterance
	Language   string
	Duration   time.Duration
}

// interface for audio transcription
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}

// transcription service provider
type Provider string

const (
	ProviderWhisper Provider = "whisper"
	ProviderOpenAI  Provider = "openai"
	ProviderGemini  Provider = "gemini"
)

// Remote providers receive an uploaded, compressed copy of the audio in
// size-limited chunks; the local whisper command reads the media directly.
func (p Provider) Remote() bool {
	return p != ProviderWhisper
}

// transcription options
type Options struct {
	Language           string // Source language of audio
	TranscriptLanguage string // Output language for transcript (default: "native")
	Model              string
	ModelSize          string // whisper model size for the local engine
	Prompt             string
	WhisperBinary      string

	// used to probe durations; may be empty
	Bin  ffmpeg.BinaryPaths
	Sink logging.Sink
}

func (o Options) sink() logging.Sink {
	if o.Sink == nil {
		return logging.Discard
	}
	return o.Sink
}

// creates transcriber based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Transcriber, error) {
	switch provider {
	case ProviderGemini:
		return NewGeminiTranscriber(ctx, apiKey, opts)
	case ProviderWhisper:
		return NewWhisperTranscriber(opts)
	case ProviderOpenAI:
		return NewOpenAITranscriber(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// probes the file when ffprobe is known, otherwise reports zero
func probeDuration(ctx context.Context, bin ffmpeg.BinaryPaths, path string) time.Duration {
	if bin.FFprobe == "" {
		return 0
	}
	info, err := ffmpeg.Probe(ctx, bin, path)
	if err != nil {
		return 0
	}
	return info.Duration
}
