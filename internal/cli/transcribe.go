package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mgpai22/clipcut/internal/audio"
	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/subtitle"
	"github.com/mgpai22/clipcut/internal/task"
	"github.com/mgpai22/clipcut/internal/transcribe"
	"github.com/spf13/cobra"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [media_file]",
	Short: "Transcribe a video or audio file into a subtitle track",
	Long: `Transcribe speech in the media file into timestamped subtitle segments,
written as <name>.srt next to the media.

Providers:
  whisper  the local whisper command (reads the media directly)
  openai   OpenAI speech-to-text (audio is compressed and split when long)
  gemini   Google Gemini (audio is compressed and split when long)

An existing track is never overwritten unless --force is given.

Examples:
  clipcut transcribe talk.mp4
  clipcut transcribe talk.mp4 --provider whisper --model-size small
  clipcut transcribe podcast.mp3 --provider gemini --chunk-minutes 5 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)

	transcribeCmd.Flags().
		String("provider", "", "Transcription provider (whisper, openai, gemini)")
	transcribeCmd.Flags().
		StringP("api-key", "k", "", "API key (or set OPENAI_API_KEY/GEMINI_API_KEY)")
	transcribeCmd.Flags().
		String("model", "", "Provider model")
	transcribeCmd.Flags().
		StringP("language", "l", "", "Language spoken in the media (e.g., en, es, fr)")
	transcribeCmd.Flags().
		String("transcript-language", "native", "Output language for the transcript ('native' keeps the spoken language)")
	transcribeCmd.Flags().
		String("model-size", "", "Whisper model size (tiny, base, small, medium, large)")
	transcribeCmd.Flags().
		String("prompt", "", "Initial prompt with names or vocabulary")
	transcribeCmd.Flags().
		IntP("chunk-minutes", "d", 0, "Split remote uploads into chunks of this many minutes")
	transcribeCmd.Flags().
		Int("concurrency", 0, "Number of parallel transcription workers")
	transcribeCmd.Flags().
		Bool("force", false, "Replace an existing subtitle track")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx := cmd.Context()
	cfg := cfgFrom(cmd)
	tc := cfg.Transcribe

	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", mediaPath)
	}
	if !audio.IsMediaFile(mediaPath) {
		return fmt.Errorf("unsupported file type: %s (expected audio or video file)", filepath.Ext(mediaPath))
	}

	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("provider", &tc.Provider)
	override("model", &tc.Model)
	override("language", &tc.Language)
	override("model-size", &tc.ModelSize)
	override("prompt", &tc.Prompt)
	if flags.Changed("chunk-minutes") {
		tc.ChunkMinutes, _ = flags.GetInt("chunk-minutes")
	}
	if flags.Changed("concurrency") {
		tc.Concurrency, _ = flags.GetInt("concurrency")
	}
	if tc.ChunkMinutes <= 0 || tc.Concurrency <= 0 {
		return fmt.Errorf("chunk-minutes and concurrency must be positive")
	}
	transcriptLang, _ := flags.GetString("transcript-language")
	force, _ := flags.GetBool("force")

	provider := transcribe.Provider(strings.ToLower(tc.Provider))
	if provider == transcribe.ProviderOpenAI && !isValidOpenAITranscriptLanguage(transcriptLang) {
		return fmt.Errorf("openai can only transcribe natively or translate to english, got %q", transcriptLang)
	}

	apiKey, _ := flags.GetString("api-key")
	if apiKey == "" {
		apiKey = cfg.APIKey(string(provider))
	}
	if provider.Remote() && apiKey == "" {
		return fmt.Errorf("%s API key is required: use --api-key or set %s_API_KEY", provider, strings.ToUpper(string(provider)))
	}

	// whisper reads the media itself and only probes when ffprobe is around
	bin, err := resolveBinaries(ctx, cfg)
	if err != nil {
		if provider.Remote() {
			return err
		}
		logger.Debugw("continuing without ffmpeg", "error", err)
	}

	engine := transcribe.NewEngine(provider, apiKey, transcribe.Options{
		Language:           tc.Language,
		TranscriptLanguage: transcriptLang,
		Model:              tc.Model,
		ModelSize:          tc.ModelSize,
		Prompt:             tc.Prompt,
		WhisperBinary:      tc.WhisperBinary,
	}, bin)
	engine.ChunkDuration = time.Duration(tc.ChunkMinutes) * time.Minute
	engine.Concurrency = tc.Concurrency
	engine.Force = force

	logger.Infow("Starting transcription",
		"input", mediaPath,
		"provider", provider,
		"chunk_minutes", tc.ChunkMinutes,
		"concurrency", tc.Concurrency,
	)

	runner := task.NewRunner(logger)
	h, err := task.Go(ctx, runner, task.KindTranscribe, mediaPath,
		func(ctx context.Context, sink logging.Sink) (string, error) {
			return engine.Run(ctx, mediaPath, sink)
		})
	if err != nil {
		return err
	}
	trackPath, err := h.Wait(printer(os.Stderr))
	if err != nil {
		return err
	}

	track, err := subtitle.Open(trackPath)
	if err != nil {
		return err
	}
	absOutput, _ := filepath.Abs(trackPath)
	fmt.Printf("Subtitles written: %s\n", absOutput)
	fmt.Printf("  Segments: %d\n", len(track.Segments))
	return nil
}

// OpenAI transcribes in the spoken language or translates to English, nothing else
func isValidOpenAITranscriptLanguage(lang string) bool {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "native", "english", "en":
		return true
	default:
		return false
	}
}
