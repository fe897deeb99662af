package cli

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mgpai22/clipcut/internal/subtitle"
	"github.com/spf13/cobra"
)

var segmentsCmd = &cobra.Command{
	Use:   "segments [subtitle_file]",
	Short: "List the segments of a subtitle track",
	Long: `List every segment of an SRT track with its index, time range and
duration. Malformed blocks are reported and skipped.

Examples:
  clipcut segments talk.srt
  clipcut segments talk.srt --select 2,5-7`,
	Args: cobra.ExactArgs(1),
	RunE: runSegments,
}

func init() {
	rootCmd.AddCommand(segmentsCmd)

	segmentsCmd.Flags().
		String("select", "", "Only list these indices (e.g. 1,3-5)")
}

func runSegments(cmd *cobra.Command, args []string) error {
	track, err := subtitle.Open(args[0])
	if err != nil {
		return err
	}
	for _, skipped := range track.Skipped {
		logger.Warnw("skipping malformed block", "error", skipped)
	}

	spec, _ := cmd.Flags().GetString("select")
	keep := subtitle.All
	if spec != "" {
		indices, err := parseIndexList(spec)
		if err != nil {
			return err
		}
		want := make(map[int]bool, len(indices))
		for _, i := range indices {
			want[i] = true
		}
		keep = func(seg subtitle.Segment) bool { return want[seg.Index] }
	}

	return listSegments(os.Stdout, subtitle.Select(track.Segments, keep), nil)
}

// listSegments prints a table of segs. When marked is non-nil a leading
// column shows which rows it reports as selected.
func listSegments(w io.Writer, segs []subtitle.Segment, marked func(index int) bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	var total time.Duration
	for _, seg := range segs {
		total += seg.Duration()
		if marked != nil {
			mark := " "
			if marked(seg.Index) {
				mark = "x"
			}
			fmt.Fprintf(tw, "[%s]\t", mark)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1fs\t%s\n",
			seg.Index, seg.RangeLine(), seg.Duration().Seconds(), strings.Join(seg.Lines, " "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%d segments, %s\n", len(segs), subtitle.FormatClock(total))
	return err
}

// parseIndexList reads a list like "1,3-5" into ascending, unique indices.
func parseIndexList(spec string) ([]int, error) {
	seen := make(map[int]bool)
	var out []int
	add := func(i int) {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}

	for part := range strings.SplitSeq(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || first <= 0 {
			return nil, fmt.Errorf("invalid segment index %q", part)
		}
		if !isRange {
			add(first)
			continue
		}
		last, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || last < first {
			return nil, fmt.Errorf("invalid segment range %q", part)
		}
		for i := first; i <= last; i++ {
			add(i)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no segment indices in %q", spec)
	}

	slices.Sort(out)
	return out, nil
}
