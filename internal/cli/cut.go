package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mgpai22/clipcut/internal/cutter"
	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/selection"
	"github.com/mgpai22/clipcut/internal/subtitle"
	"github.com/mgpai22/clipcut/internal/task"
	"github.com/spf13/cobra"
)

var cutCmd = &cobra.Command{
	Use:   "cut [media_file]",
	Short: "Render subtitle segments of a video into one clip",
	Long: `Render the segments of a subtitle track out of the media file, in media
order, into <name>_cut<ext> next to the media.

Without --select every segment of the track is kept, so the track is
usually one written by "clipcut recommend" or exported by "clipcut edit".

Examples:
  clipcut cut talk.mp4
  clipcut cut talk.mp4 --srt keep.srt
  clipcut cut talk.mp4 --select 1,4-9 --bitrate 4000k --force`,
	Args: cobra.ExactArgs(1),
	RunE: runCut,
}

func init() {
	rootCmd.AddCommand(cutCmd)

	cutCmd.Flags().
		String("srt", "", "Subtitle track to cut from (default <name>.srt)")
	cutCmd.Flags().
		String("select", "", "Only keep these segment indices (e.g. 1,3-5)")
	cutCmd.Flags().
		String("bitrate", "", "Video bitrate of the output")
	cutCmd.Flags().
		Bool("force", false, "Replace an existing output file")
}

func runCut(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx := cmd.Context()
	cfg := cfgFrom(cmd)

	if _, err := os.Stat(mediaPath); err != nil {
		return fmt.Errorf("file not found: %s", mediaPath)
	}

	trackPath, _ := cmd.Flags().GetString("srt")
	if trackPath == "" {
		trackPath = subtitle.TrackPathFor(mediaPath)
	}
	spec, _ := cmd.Flags().GetString("select")

	ranges, err := cutRanges(trackPath, spec)
	if err != nil {
		return err
	}

	opts := cutter.Options{Bitrate: cfg.Cut.Bitrate, Force: cfg.Cut.Force}
	if cmd.Flags().Changed("bitrate") {
		opts.Bitrate, _ = cmd.Flags().GetString("bitrate")
	}
	if cmd.Flags().Changed("force") {
		opts.Force, _ = cmd.Flags().GetBool("force")
	}

	bin, err := resolveBinaries(ctx, cfg)
	if err != nil {
		return err
	}
	c := cutter.New(bin)

	logger.Infow("Cutting media",
		"input", mediaPath,
		"track", trackPath,
		"segments", len(ranges),
		"bitrate", opts.Bitrate,
	)

	runner := task.NewRunner(logger)
	h, err := task.Go(ctx, runner, task.KindCut, mediaPath,
		func(ctx context.Context, sink logging.Sink) (string, error) {
			return c.CutRanges(ctx, mediaPath, ranges, opts, sink)
		})
	if err != nil {
		return err
	}
	out, err := h.Wait(printer(os.Stderr))
	if err != nil {
		return err
	}

	absOutput, _ := filepath.Abs(out)
	fmt.Printf("Clip written: %s\n", absOutput)
	return nil
}

// cutRanges loads the track and returns the ranges to keep, either all of
// them or the indices named by spec.
func cutRanges(trackPath, spec string) ([]subtitle.Range, error) {
	track, err := subtitle.Open(trackPath)
	if err != nil {
		return nil, err
	}
	for _, skipped := range track.Skipped {
		logger.Warnw("skipping malformed block", "error", skipped)
	}

	store, err := selection.NewStore(track.Segments)
	if err != nil {
		return nil, err
	}
	if spec == "" {
		store.SelectAll()
	} else {
		indices, err := parseIndexList(spec)
		if err != nil {
			return nil, err
		}
		for _, i := range indices {
			if err := store.SetSelected(i, true); err != nil {
				return nil, err
			}
		}
	}

	ranges := store.SelectedRanges()
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%s: %w", trackPath, cutter.ErrNoRanges)
	}
	return ranges, nil
}
