package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/subtitle"
)

// WhisperTranscriber runs the local whisper command line tool and reads the
// srt it writes into a scratch directory.
type WhisperTranscriber struct {
	binary  string
	options Options
}

func NewWhisperTranscriber(opts Options) (*WhisperTranscriber, error) {
	binary := opts.WhisperBinary
	if binary == "" {
		binary = "whisper"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("whisper executable %q not found: %w", binary, err)
	}
	if opts.ModelSize == "" {
		opts.ModelSize = "base"
	}
	return &WhisperTranscriber{binary: path, options: opts}, nil
}

func (t *WhisperTranscriber) args(audioPath, outputDir string) []string {
	args := []string{
		audioPath,
		"--model", t.options.ModelSize,
		"--output_format", "srt",
		"--output_dir", outputDir,
	}
	if t.options.Language != "" {
		args = append(args, "--language", t.options.Language)
	}
	if t.options.Prompt != "" {
		args = append(args, "--initial_prompt", t.options.Prompt)
	}
	lang := strings.ToLower(strings.TrimSpace(t.options.TranscriptLanguage))
	if lang == "english" || lang == "en" {
		args = append(args, "--task", "translate")
	}
	return args
}

// transcribes single audio file
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	if _, err := os.Stat(audioPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", audioPath)
	}

	outputDir, err := os.MkdirTemp("", "clipcut-whisper-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(outputDir)

	sink := t.options.sink()
	stdout := logging.NewLineWriter(sink, zapcore.InfoLevel)
	stderr := logging.NewLineWriter(sink, zapcore.InfoLevel)

	cmd := exec.CommandContext(ctx, t.binary, t.args(audioPath, outputDir)...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logging.Infof(sink, "running whisper (%s) on %s", t.options.ModelSize, filepath.Base(audioPath))
	err = cmd.Run()
	stdout.Flush()
	stderr.Flush()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("whisper failed: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	track, err := subtitle.Open(filepath.Join(outputDir, base+".srt"))
	if err != nil {
		return nil, fmt.Errorf("whisper produced no subtitles: %w", err)
	}
	for _, skipped := range track.Skipped {
		logging.Warnf(sink, "whisper output: %v", skipped)
	}

	utterances := make([]subtitle.Utterance, 0, len(track.Segments))
	for _, seg := range track.Segments {
		utterances = append(utterances, subtitle.Utterance{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.Join(seg.Lines, " "),
		})
	}

	return &Result{
		Utterances: utterances,
		Language:   t.options.Language,
		Duration:   probeDuration(ctx, t.options.Bin, audioPath),
	}, nil
}
