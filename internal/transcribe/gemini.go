package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/subtitle"
)

// implements Transcriber interface using Google Gemini
type GeminiTranscriber struct {
	client  *genai.Client
	model   string
	options Options
}

// segment from Gemini's JSON response
type transcriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func NewGeminiTranscriber(ctx context.Context, apiKey string, opts Options) (*GeminiTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" || model == "whisper-1" {
		model = "gemini-2.5-flash"
	}

	return &GeminiTranscriber{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

// transcribes single audio file
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	if _, err := os.Stat(audioPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", audioPath)
	}

	logging.Infof(t.options.sink(), "uploading %s to gemini", audioPath)
	uploadedFile, err := t.client.Files.UploadFromPath(ctx, audioPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio file: %w", err)
	}

	defer func() {
		_, _ = t.client.Files.Delete(context.WithoutCancel(ctx), uploadedFile.Name, nil)
	}()

	parts := []*genai.Part{
		genai.NewPartFromText(t.buildTranscriptionPrompt()),
		genai.NewPartFromURI(uploadedFile.URI, uploadedFile.MIMEType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	logging.Infof(t.options.sink(), "transcribing %s with %s", audioPath, t.model)
	result, err := t.client.Models.GenerateContent(ctx, t.model, contents, transcriptConfig)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	utterances, err := parseTranscriptionResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transcription: %w", err)
	}

	return &Result{
		Utterances: utterances,
		Language:   t.options.Language,
		Duration:   probeDuration(ctx, t.options.Bin, audioPath),
	}, nil
}

// asks for the segment array directly; the tolerant parser below still
// copes with models that ignore the schema
var transcriptConfig = &genai.GenerateContentConfig{
	ResponseMIMEType: "application/json",
	ResponseSchema: &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"start": {Type: genai.TypeNumber},
				"end":   {Type: genai.TypeNumber},
				"text":  {Type: genai.TypeString},
			},
			Required: []string{"start", "end", "text"},
		},
	},
}

func (t *GeminiTranscriber) buildTranscriptionPrompt() string {
	var sb strings.Builder

	sb.WriteString("Transcribe the speech in this audio into segments that can be cut out of the recording on their own. ")
	sb.WriteString("Each segment is one sentence or phrase, a few seconds long, with no gaps inside it. ")
	sb.WriteString("Give every segment as an object with 'start' and 'end' in seconds (numbers) and the exact 'text' spoken. ")
	sb.WriteString("Leave out music, silence and sound effects. ")

	if t.options.Language != "" {
		fmt.Fprintf(&sb, "The speakers use %s. ", t.options.Language)
	}
	if lang := t.options.TranscriptLanguage; lang != "" && !strings.EqualFold(lang, "native") {
		fmt.Fprintf(&sb, "Write the text in %s, keeping the timing of the spoken words. ", lang)
	}
	if t.options.Prompt != "" {
		sb.WriteString("Context: ")
		sb.WriteString(t.options.Prompt)
		sb.WriteString(" ")
	}

	sb.WriteString("Reply with the JSON array only.")
	return sb.String()
}

// parses Gemini's response into utterances
func parseTranscriptionResponse(result *genai.GenerateContentResponse) ([]subtitle.Utterance, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}

	responseText := cleanJSONResponse(sb.String())
	if responseText == "" {
		return nil, fmt.Errorf("no text in Gemini response")
	}

	segments, err := extractTranscriptSegments(responseText)
	if err != nil {
		return nil, err
	}

	utterances := make([]subtitle.Utterance, 0, len(segments))
	for _, ts := range segments {
		utterances = append(utterances, subtitle.Utterance{
			Start: seconds(ts.Start),
			End:   seconds(ts.End),
			Text:  strings.TrimSpace(ts.Text),
		})
	}
	return utterances, nil
}

// keys tried first when the model wraps the array in an object
var wrapperKeys = []string{"segments", "transcript", "data", "results"}

const maxWrapperDepth = 4

// extractTranscriptSegments finds the first JSON array of transcript
// segments in s. Models sometimes surround the array with prose or wrap it
// in an object, so every '[' and '{' is tried as the start of a value.
func extractTranscriptSegments(s string) ([]transcriptSegment, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '[' && s[i] != '{' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&raw); err != nil {
			continue
		}
		if segments, ok := findSegments(raw, 0); ok {
			return segments, nil
		}
	}
	return nil, fmt.Errorf(
		"no transcript segments found in response: %s",
		truncateString(s, 200),
	)
}

func findSegments(raw json.RawMessage, depth int) ([]transcriptSegment, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || depth > maxWrapperDepth {
		return nil, false
	}

	switch raw[0] {
	case '[':
		var segments []transcriptSegment
		if err := json.Unmarshal(raw, &segments); err != nil {
			return nil, false
		}
		return segments, validateSegments(segments)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, false
		}
		for _, key := range wrapperOrder(obj) {
			if segments, ok := findSegments(obj[key], depth+1); ok {
				return segments, true
			}
		}
	}
	return nil, false
}

// well-known wrapper keys first, then the rest sorted for determinism
func wrapperOrder(obj map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(obj))
	seen := make(map[string]bool, len(wrapperKeys))
	for _, k := range wrapperKeys {
		if _, ok := obj[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(obj))
	for k := range obj {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// reports whether at least one segment carries a timestamp or text
func validateSegments(segments []transcriptSegment) bool {
	for _, seg := range segments {
		if seg.Start != 0 || seg.End != 0 || seg.Text != "" {
			return true
		}
	}
	return false
}

var jsonBlockRegex = regexp.MustCompile("```(?:json)?\\s*")

// removes markdown formatting from the response
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonBlockRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// truncates s to at most maxLen bytes without splitting a rune
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
