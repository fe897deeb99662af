package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

const DefaultServiceURL = "https://app.editclippro.com/process_subtitles"

// Config holds all application configuration
type Config struct {
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Cut        CutConfig        `yaml:"cut"`
	Recommend  RecommendConfig  `yaml:"recommend"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Playback   PlaybackConfig   `yaml:"playback"`
	FFmpeg     FFmpegConfig     `yaml:"ffmpeg"`

	// API keys only ever come from the environment
	Keys Keys `yaml:"-"`

	// file the values were read from, empty when only defaults apply
	Source string `yaml:"-"`
}

type TranscribeConfig struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	Language     string `yaml:"language"`
	ModelSize    string `yaml:"model_size"`
	Prompt       string `yaml:"prompt"`
	ChunkMinutes int    `yaml:"chunk_minutes"`
	Concurrency  int    `yaml:"concurrency"`
	// whisper command line used by the local provider
	WhisperBinary string `yaml:"whisper_binary"`
}

type CutConfig struct {
	Bitrate string `yaml:"bitrate"`
	Force   bool   `yaml:"force"`
}

type RecommendConfig struct {
	Provider   string        `yaml:"provider"`
	ServiceURL string        `yaml:"service_url"`
	UserID     string        `yaml:"user_id"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	Minutes    float64       `yaml:"minutes"`
	Style      int           `yaml:"style"`
}

type ReconcileConfig struct {
	Mode        string `yaml:"mode"`
	ToleranceMS int    `yaml:"tolerance_ms"`
}

type PlaybackConfig struct {
	Tick time.Duration `yaml:"tick"`
}

type FFmpegConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	// fetch a static build into the user cache when neither is on PATH
	Download bool `yaml:"download"`
}

type Keys struct {
	OpenAI    string
	Gemini    string
	Anthropic string
}

// Load reads configuration from path, or from the first config file found
// when path is empty, then applies .env and environment overrides.
// A missing file means defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
			cfg.Source = path
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	// best-effort: load .env if present
	_ = godotenv.Load()
	cfg.applyEnv()

	return cfg, nil
}

func Default() *Config {
	return &Config{
		Transcribe: TranscribeConfig{
			Provider:      "openai",
			Model:         "whisper-1",
			Language:      "en",
			ModelSize:     "base",
			ChunkMinutes:  10,
			Concurrency:   3,
			WhisperBinary: "whisper",
		},
		Cut: CutConfig{
			Bitrate: "2000k",
		},
		Recommend: RecommendConfig{
			Provider:   "service",
			ServiceURL: DefaultServiceURL,
			Timeout:    5 * time.Minute,
			Minutes:    1,
			Style:      1,
		},
		Reconcile: ReconcileConfig{
			Mode:        "literal",
			ToleranceMS: 0,
		},
		Playback: PlaybackConfig{
			Tick: 100 * time.Millisecond,
		},
	}
}

func (c *Config) applyEnv() {
	c.Keys = Keys{
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
		Gemini:    os.Getenv("GEMINI_API_KEY"),
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
	}
	if v := os.Getenv("CLIPCUT_SERVICE_URL"); v != "" {
		c.Recommend.ServiceURL = v
	}
	if v := os.Getenv("CLIPCUT_USER_ID"); v != "" {
		c.Recommend.UserID = v
	}
	if v := os.Getenv("CLIPCUT_FFMPEG_PATH"); v != "" {
		c.FFmpeg.FFmpegPath = v
	}
	if v := os.Getenv("CLIPCUT_FFPROBE_PATH"); v != "" {
		c.FFmpeg.FFprobePath = v
	}
}

// APIKey returns the key for an LLM or transcription provider.
func (c *Config) APIKey(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return c.Keys.OpenAI
	case "gemini":
		return c.Keys.Gemini
	case "anthropic":
		return c.Keys.Anthropic
	default:
		return ""
	}
}

var (
	transcribeProviders = []string{"whisper", "openai", "gemini"}
	recommendProviders  = []string{"service", "openai", "anthropic", "gemini"}
	reconcileModes      = []string{"literal", "numeric"}
)

// Validate rejects values no command can work with.
func (c *Config) Validate() error {
	var errs []error

	if !oneOf(c.Transcribe.Provider, transcribeProviders) {
		errs = append(errs, fmt.Errorf("transcribe.provider %q must be one of %s",
			c.Transcribe.Provider, strings.Join(transcribeProviders, ", ")))
	}
	if c.Transcribe.ChunkMinutes <= 0 {
		errs = append(errs, fmt.Errorf("transcribe.chunk_minutes must be positive"))
	}
	if c.Transcribe.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("transcribe.concurrency must be positive"))
	}
	if strings.TrimSpace(c.Cut.Bitrate) == "" {
		errs = append(errs, fmt.Errorf("cut.bitrate must not be empty"))
	}
	if !oneOf(c.Recommend.Provider, recommendProviders) {
		errs = append(errs, fmt.Errorf("recommend.provider %q must be one of %s",
			c.Recommend.Provider, strings.Join(recommendProviders, ", ")))
	}
	if c.Recommend.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("recommend.timeout must be positive"))
	}
	if c.Recommend.Minutes <= 0 {
		errs = append(errs, fmt.Errorf("recommend.minutes must be positive"))
	}
	if c.Recommend.Style < 1 || c.Recommend.Style > 3 {
		errs = append(errs, fmt.Errorf("recommend.style %d must be 1, 2 or 3", c.Recommend.Style))
	}
	if !oneOf(c.Reconcile.Mode, reconcileModes) {
		errs = append(errs, fmt.Errorf("reconcile.mode %q must be literal or numeric", c.Reconcile.Mode))
	}
	if c.Reconcile.ToleranceMS < 0 {
		errs = append(errs, fmt.Errorf("reconcile.tolerance_ms must not be negative"))
	}
	if c.Playback.Tick <= 0 {
		errs = append(errs, fmt.Errorf("playback.tick must be positive"))
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func findConfigFile() string {
	candidates := []string{
		"./clipcut.yaml",
		"./clipcut.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".clipcut", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context, falling back to defaults
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
