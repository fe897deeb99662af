package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/subtitle"
)

// the audio endpoints reject larger uploads
const maxUploadBytes = 25 << 20

// whisper's own thresholds for calling a segment silence
const (
	noSpeechThreshold = 0.6
	logProbThreshold  = -1.0
)

// OpenAITranscriber sends audio to the OpenAI speech endpoints. With an
// English transcript language it uses the translation endpoint instead.
type OpenAITranscriber struct {
	client  openai.Client
	model   string
	options Options
}

// verbose_json body shared by transcriptions and translations
type verboseTranscript struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []verboseSegment `json:"segments"`
}

type verboseSegment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogProb   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

// silent stretches come back with hallucinated text; whisper drops a
// segment when both probabilities agree it is not speech
func (s verboseSegment) silent() bool {
	return s.NoSpeechProb > noSpeechThreshold && s.AvgLogProb < logProbThreshold
}

func NewOpenAITranscriber(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	model := opts.Model
	if model == "" {
		model = "whisper-1"
	}

	return &OpenAITranscriber{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		options: opts,
	}, nil
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("audio file not found: %s", audioPath)
	}
	if info.Size() > maxUploadBytes {
		return nil, fmt.Errorf("%s is %d MB, over the %d MB upload limit (use shorter chunks)",
			audioPath, info.Size()>>20, maxUploadBytes>>20)
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	duration := probeDuration(ctx, t.options.Bin, audioPath)
	language := t.options.Language

	var raw, text string
	if t.translates() {
		logging.Infof(t.options.sink(), "translating %s to english with %s", audioPath, t.model)
		raw, text, err = t.translate(ctx, file)
		language = "en"
	} else {
		logging.Infof(t.options.sink(), "transcribing %s with %s", audioPath, t.model)
		raw, text, err = t.transcribe(ctx, file)
	}
	if err != nil {
		return nil, err
	}

	utterances, err := parseVerboseJSONResponse(raw, duration)
	if err != nil {
		// plain-text answers still cover the file
		utterances = wholeFile(text, duration)
	}

	return &Result{Utterances: utterances, Language: language, Duration: duration}, nil
}

func (t *OpenAITranscriber) translates() bool {
	lang := strings.ToLower(strings.TrimSpace(t.options.TranscriptLanguage))
	return lang == "english" || lang == "en"
}

func (t *OpenAITranscriber) translate(ctx context.Context, file *os.File) (string, string, error) {
	params := openai.AudioTranslationNewParams{
		File:           file,
		Model:          openai.AudioModel(t.model),
		ResponseFormat: openai.AudioTranslationNewParamsResponseFormatVerboseJSON,
	}
	if t.options.Prompt != "" {
		params.Prompt = openai.String(t.options.Prompt)
	}

	resp, err := t.client.Audio.Translations.New(ctx, params)
	if err != nil {
		return "", "", fmt.Errorf("translation failed: %w", err)
	}
	return resp.RawJSON(), resp.Text, nil
}

func (t *OpenAITranscriber) transcribe(ctx context.Context, file *os.File) (string, string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:                   file,
		Model:                  openai.AudioModel(t.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	}
	if t.options.Language != "" {
		params.Language = openai.String(t.options.Language)
	}
	if t.options.Prompt != "" {
		params.Prompt = openai.String(t.options.Prompt)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", "", fmt.Errorf("transcription failed: %w", err)
	}
	return resp.RawJSON(), resp.Text, nil
}

// single utterance covering the whole file, used when timestamps are missing
func wholeFile(text string, duration time.Duration) []subtitle.Utterance {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return []subtitle.Utterance{{Start: 0, End: duration, Text: text}}
}

// parseVerboseJSONResponse turns a verbose_json body into utterances.
// Blank and silent segments are dropped. A body without segments becomes
// one utterance spanning the reported (or fallback) duration.
func parseVerboseJSONResponse(raw string, fallback time.Duration) ([]subtitle.Utterance, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty response")
	}

	var v verboseTranscript
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("failed to parse verbose_json response: %w", err)
	}

	if len(v.Segments) == 0 {
		if strings.TrimSpace(v.Text) == "" {
			return nil, fmt.Errorf("no segments or text in response")
		}
		if v.Duration > 0 {
			fallback = seconds(v.Duration)
		}
		return wholeFile(v.Text, fallback), nil
	}

	var utterances []subtitle.Utterance
	for _, seg := range v.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || seg.silent() {
			continue
		}
		utterances = append(utterances, subtitle.Utterance{
			Start: seconds(seg.Start),
			End:   seconds(seg.End),
			Text:  text,
		})
	}
	return utterances, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
