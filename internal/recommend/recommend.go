package recommend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mgpai22/clipcut/internal/logging"
)

// Style is the cutting style code understood by the recommendation service.
type Style int

const (
	StyleHighlights Style = 1
	StyleDialogue   Style = 2
	StyleNarrative  Style = 3
)

func (s Style) Valid() bool {
	return s >= StyleHighlights && s <= StyleNarrative
}

func (s Style) String() string {
	switch s {
	case StyleHighlights:
		return "highlights"
	case StyleDialogue:
		return "dialogue"
	case StyleNarrative:
		return "narrative"
	default:
		return fmt.Sprintf("style(%d)", int(s))
	}
}

// accepts a code ("2") or a name ("dialogue")
func ParseStyle(s string) (Style, error) {
	for _, st := range []Style{StyleHighlights, StyleDialogue, StyleNarrative} {
		if s == st.String() || s == fmt.Sprint(int(st)) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown style %q (want 1/highlights, 2/dialogue or 3/narrative)", s)
}

// one recommendation request
type Request struct {
	Subtitles string // full subtitle track text
	Minutes   float64
	Style     Style
}

func (r Request) validate() error {
	if r.Subtitles == "" {
		return fmt.Errorf("no subtitles to send")
	}
	if r.Minutes <= 0 {
		return fmt.Errorf("target duration must be positive, got %v minutes", r.Minutes)
	}
	if !r.Style.Valid() {
		return fmt.Errorf("invalid style code %d", int(r.Style))
	}
	return nil
}

// Recommender returns a subtitle track holding the segments worth keeping.
type Recommender interface {
	Recommend(ctx context.Context, req Request) (string, error)
}

// recommendation backend
type Provider string

const (
	ProviderService   Provider = "service"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

type Options struct {
	ServiceURL string
	UserID     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Sink       logging.Sink
}

func (o Options) sink() logging.Sink {
	if o.Sink == nil {
		return logging.Discard
	}
	return o.Sink
}

// creates Recommender based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Recommender, error) {
	switch provider {
	case ProviderService, "":
		return NewServiceClient(opts), nil
	case ProviderOpenAI:
		return NewOpenAIRecommender(apiKey, opts)
	case ProviderAnthropic:
		return NewAnthropicRecommender(apiKey, opts)
	case ProviderGemini:
		return NewGeminiRecommender(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported recommendation provider: %s", provider)
	}
}
