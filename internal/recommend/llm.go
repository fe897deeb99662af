package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/subtitle"
)

// sends one prompt and returns the model's text
type completeFunc func(ctx context.Context, prompt string) (string, error)

// llmRecommender asks a chat model which segments to keep and renders
// those segments back as a subtitle track, so its output reconciles the
// same way the service's does.
type llmRecommender struct {
	name     string
	complete completeFunc
	sink     logging.Sink
}

func (r *llmRecommender) Recommend(ctx context.Context, req Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	track := subtitle.Parse(req.Subtitles)
	if len(track.Segments) == 0 {
		return "", fmt.Errorf("no segments in subtitles")
	}

	logging.Infof(r.sink, "asking %s for a %v minute %s cut of %d segments",
		r.name, req.Minutes, req.Style, len(track.Segments))

	text, err := r.complete(ctx, BuildPrompt(track.Segments, req))
	if err != nil {
		return "", fmt.Errorf("recommendation failed: %w", err)
	}

	keep, err := extractKeepIndices(cleanJSONResponse(text))
	if err != nil {
		return "", fmt.Errorf("failed to parse %s response: %w (response: %s)",
			r.name, err, truncateString(text, 200))
	}

	kept := keepSegments(track.Segments, keep)
	if len(kept) == 0 {
		return "", fmt.Errorf("%s kept none of the listed segments", r.name)
	}

	var total time.Duration
	for _, seg := range kept {
		total += seg.Duration()
	}
	logging.Infof(r.sink, "%s kept %d segments (%s)", r.name, len(kept), subtitle.FormatClock(total))

	return subtitle.Render(kept), nil
}

var styleGuidance = map[Style]string{
	StyleHighlights: "Pick the most exciting, funny or quotable moments. Segments do not need to be adjacent.",
	StyleDialogue:   "Keep complete back-and-forth exchanges so every kept question has its answer.",
	StyleNarrative:  "Keep a coherent story from beginning to end, favouring adjacent segments.",
}

// BuildPrompt lists the numbered segments and asks for the indices to keep.
func BuildPrompt(segments []subtitle.Segment, req Request) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are editing a video down to about %v minutes using its subtitles.\n", req.Minutes)
	fmt.Fprintf(&sb, "Cutting style: %s. %s\n\n", req.Style, styleGuidance[req.Style])

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Choose which numbered segments to keep.\n")
	sb.WriteString("2. The total duration of the kept segments should be close to the target.\n")
	sb.WriteString("3. Return ONLY a JSON object of the form {\"keep\": [1, 4, 5]}.\n")
	sb.WriteString("4. Use the segment numbers exactly as listed. Do not add any explanation.\n\n")

	sb.WriteString("Segments:\n")
	for _, seg := range segments {
		fmt.Fprintf(&sb, "[%d] %s (%.1fs) %s\n",
			seg.Index, seg.RangeLine(), seg.Duration().Seconds(),
			strings.Join(seg.Lines, " "))
	}

	sb.WriteString("\nOutput the JSON object only:")
	return sb.String()
}

var keepKeys = []string{"keep", "indices", "segments", "selected"}

// extractKeepIndices finds the first usable list of segment numbers, either
// a bare array or an array under one of keepKeys.
func extractKeepIndices(text string) ([]int, error) {
	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err != nil {
			continue
		}
		if keep, ok := tryKeepIndices(raw); ok {
			return keep, nil
		}
	}
	return nil, fmt.Errorf("no segment list found")
}

func tryKeepIndices(raw json.RawMessage) ([]int, bool) {
	var keep []int
	if err := json.Unmarshal(raw, &keep); err == nil {
		return keep, len(keep) > 0
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}
	for _, key := range keepKeys {
		field, ok := wrapper[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(field, &keep); err == nil && len(keep) > 0 {
			return keep, true
		}
	}
	return nil, false
}

// kept segments in track order; unknown and repeated numbers are ignored
func keepSegments(segments []subtitle.Segment, keep []int) []subtitle.Segment {
	want := make(map[int]bool, len(keep))
	for _, k := range keep {
		want[k] = true
	}
	kept := make([]subtitle.Segment, 0, len(keep))
	for _, seg := range segments {
		if want[seg.Index] {
			kept = append(kept, seg)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Start < kept[j].Start
	})
	return kept
}

var jsonBlockRegex = regexp.MustCompile("```(?:json)?\\s*")

// removes markdown formatting from the response
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonBlockRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
