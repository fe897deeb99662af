package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mgpai22/clipcut/internal/config"
	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/recommend"
	"github.com/mgpai22/clipcut/internal/subtitle"
	"github.com/mgpai22/clipcut/internal/task"
	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [subtitle_file]",
	Short: "Ask for the segments worth keeping",
	Long: `Send a subtitle track to a recommendation provider and write back the
subset of segments it suggests keeping for a clip of the requested length.

Providers:
  service    the smart cut web service (default)
  openai     OpenAI chat models
  anthropic  Anthropic Claude
  gemini     Google Gemini

Styles: 1 highlights, 2 dialogue, 3 narrative.

Examples:
  clipcut recommend talk.srt --minutes 2
  clipcut recommend talk.srt --minutes 1.5 --style narrative -o keep.srt
  clipcut recommend talk.srt --provider anthropic --style 2`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().
		Float64P("minutes", "m", 0, "Target clip length in minutes")
	recommendCmd.Flags().
		StringP("style", "s", "", "Clip style (1/highlights, 2/dialogue, 3/narrative)")
	recommendCmd.Flags().
		StringP("output", "o", "", "Write the suggested track here instead of stdout")
	recommendCmd.Flags().
		String("provider", "", "Recommendation provider (service, openai, anthropic, gemini)")
	recommendCmd.Flags().
		StringP("api-key", "k", "", "API key for LLM providers")
	recommendCmd.Flags().
		String("model", "", "Model for LLM providers")
	recommendCmd.Flags().
		String("service-url", "", "Recommendation service endpoint")
}

// request settings after applying flags over the config file
type recommendSettings struct {
	provider recommend.Provider
	apiKey   string
	minutes  float64
	style    recommend.Style
	opts     recommend.Options
}

func recommendSettingsFrom(cmd *cobra.Command, cfg *config.Config) (recommendSettings, error) {
	rc := cfg.Recommend
	flags := cmd.Flags()

	if flags.Changed("provider") {
		rc.Provider, _ = flags.GetString("provider")
	}
	if flags.Changed("model") {
		rc.Model, _ = flags.GetString("model")
	}
	if flags.Changed("service-url") {
		rc.ServiceURL, _ = flags.GetString("service-url")
	}
	if flags.Changed("minutes") {
		rc.Minutes, _ = flags.GetFloat64("minutes")
	}

	style := recommend.Style(rc.Style)
	if flags.Changed("style") {
		raw, _ := flags.GetString("style")
		parsed, err := recommend.ParseStyle(raw)
		if err != nil {
			return recommendSettings{}, err
		}
		style = parsed
	}
	if rc.Minutes <= 0 {
		return recommendSettings{}, fmt.Errorf("minutes must be positive")
	}

	provider := recommend.Provider(strings.ToLower(rc.Provider))
	apiKey, _ := flags.GetString("api-key")
	if apiKey == "" {
		apiKey = cfg.APIKey(string(provider))
	}

	return recommendSettings{
		provider: provider,
		apiKey:   apiKey,
		minutes:  rc.Minutes,
		style:    style,
		opts: recommend.Options{
			ServiceURL: rc.ServiceURL,
			UserID:     rc.UserID,
			Model:      rc.Model,
			Timeout:    rc.Timeout,
		},
	}, nil
}

func (s recommendSettings) recommender(ctx context.Context) (recommend.Recommender, error) {
	r, err := recommend.Factory(ctx, s.provider, s.apiKey, s.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create recommender: %w", err)
	}
	return r, nil
}

func runRecommend(cmd *cobra.Command, args []string) error {
	trackPath := args[0]
	ctx := cmd.Context()

	settings, err := recommendSettingsFrom(cmd, cfgFrom(cmd))
	if err != nil {
		return err
	}
	r, err := settings.recommender(ctx)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(trackPath)
	if err != nil {
		return &subtitle.FileIOError{Op: "read", Path: trackPath, Err: err}
	}

	logger.Infow("Requesting recommendation",
		"track", trackPath,
		"provider", settings.provider,
		"minutes", settings.minutes,
		"style", settings.style,
	)

	runner := task.NewRunner(logger)
	h, err := task.Go(ctx, runner, task.KindRecommend, trackPath,
		func(ctx context.Context, sink logging.Sink) (string, error) {
			logging.Infof(sink, "requesting a %s clip of %s minutes",
				settings.style, strconv.FormatFloat(settings.minutes, 'f', -1, 64))
			return r.Recommend(ctx, recommend.Request{
				Subtitles: string(data),
				Minutes:   settings.minutes,
				Style:     settings.style,
			})
		})
	if err != nil {
		return err
	}
	suggested, err := h.Wait(printer(os.Stderr))
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		fmt.Print(suggested)
		return nil
	}

	track := subtitle.Parse(suggested)
	if err := subtitle.WriteFile(output, track.Segments, subtitle.All); err != nil {
		return err
	}
	fmt.Printf("Suggested %d segments: %s\n", len(track.Segments), output)
	return nil
}
