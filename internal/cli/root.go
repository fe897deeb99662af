package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mgpai22/clipcut/internal/config"
	"github.com/mgpai22/clipcut/internal/ffmpeg"
	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "clipcut",
	Short: "Cut long videos down to the segments worth keeping",
	Long: `Clipcut turns a long-form video into a shorter clip.

It transcribes speech into timestamped subtitle segments, lets you pick
the segments to keep (by hand or from a recommendation), and renders the
selected segments into a single output video.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if cfg.Source != "" {
			logger.Debugw("loaded configuration", "path", cfg.Source)
		}

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", "", "Config file (default ./clipcut.yaml or ~/.clipcut/config.yaml)")
}

// configuration loaded by the root command
func cfgFrom(cmd *cobra.Command) *config.Config {
	return config.FromContext(cmd.Context())
}

func resolveBinaries(ctx context.Context, cfg *config.Config) (ffmpeg.BinaryPaths, error) {
	resolver := ffmpeg.NewResolver(cfg.FFmpeg)
	resolver.Sink = logging.SinkFunc(printer(os.Stderr))
	bin, err := resolver.Resolve(ctx)
	if err != nil {
		return ffmpeg.BinaryPaths{}, fmt.Errorf("%w (install ffmpeg or set ffmpeg.download in the config)", err)
	}
	logger.Debugw("using ffmpeg", "ffmpeg", bin.FFmpeg, "ffprobe", bin.FFprobe)
	return bin, nil
}

// printer renders task log records the way the log pane shows them
func printer(w io.Writer) func(logging.Record) {
	return func(r logging.Record) {
		fmt.Fprintln(w, logging.FormatRecord(r))
	}
}
