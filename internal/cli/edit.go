package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/mgpai22/clipcut/internal/cutter"
	"github.com/mgpai22/clipcut/internal/editor"
	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/playback"
	"github.com/mgpai22/clipcut/internal/recommend"
	"github.com/mgpai22/clipcut/internal/reconcile"
	"github.com/mgpai22/clipcut/internal/subtitle"
	"github.com/mgpai22/clipcut/internal/video"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit [media_file]",
	Short: "Pick segments interactively and cut them",
	Long: `Open an interactive session over the media file and its subtitle track.

Segments are listed with their selection state. Toggle them by index,
play the selection back in order on a simulated clock, ask for a
recommendation, and render the result. Type "help" inside the session for
the list of commands.

Examples:
  clipcut edit talk.mp4
  clipcut edit talk.mp4 --srt talk_edited.srt --provider gemini`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().
		String("srt", "", "Subtitle track (default <name>.srt)")
	editCmd.Flags().
		String("provider", "", "Recommendation provider (service, openai, anthropic, gemini)")
	editCmd.Flags().
		StringP("api-key", "k", "", "API key for LLM recommendation providers")
	editCmd.Flags().
		String("model", "", "Model for LLM recommendation providers")
	editCmd.Flags().
		String("service-url", "", "Recommendation service endpoint")
}

func runEdit(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	cfg := cfgFrom(cmd)

	if _, err := os.Stat(mediaPath); err != nil {
		return fmt.Errorf("file not found: %s", mediaPath)
	}
	trackPath, _ := cmd.Flags().GetString("srt")
	if trackPath == "" {
		trackPath = subtitle.TrackPathFor(mediaPath)
	}
	if _, err := os.Stat(trackPath); err != nil {
		return fmt.Errorf("no subtitle track at %s (run: clipcut transcribe %s)", trackPath, mediaPath)
	}

	settings, err := recommendSettingsFrom(cmd, cfg)
	if err != nil {
		return err
	}
	rec, err := settings.recommender(ctx)
	if err != nil {
		return err
	}
	mode, err := reconcile.ParseMode(cfg.Reconcile.Mode)
	if err != nil {
		return err
	}

	// without ffmpeg the session still edits and exports, it just cannot cut
	var duration time.Duration
	var cut editor.Cutter
	if bin, err := resolveBinaries(ctx, cfg); err != nil {
		logger.Warnw("ffmpeg unavailable, cutting disabled", "error", err)
	} else {
		cut = cutter.New(bin)
		if info, err := video.NewProcessor(bin).GetInfo(ctx, mediaPath); err != nil {
			logger.Warnw("could not read media duration", "error", err)
		} else {
			duration = info.Duration
		}
	}

	out := cmd.OutOrStdout()
	player := playback.NewVirtualPlayer(duration, cfg.Playback.Tick)
	sh := &editShell{out: out, minutes: settings.minutes, style: settings.style}

	session := editor.New(editor.Options{
		Player:      player,
		Logger:      logger,
		Recommender: rec,
		Cutter:      cut,
		CutOptions:  cutter.Options{Bitrate: cfg.Cut.Bitrate, Force: cfg.Cut.Force},
		Reconcile: reconcile.Options{
			Mode:      mode,
			Tolerance: time.Duration(cfg.Reconcile.ToleranceMS) * time.Millisecond,
		},
		DriverOptions: []playback.DriverOption{
			playback.WithOnComplete(func() { sh.printf("playback complete\n") }),
		},
	})
	sh.session = session

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()
	wg.Go(func() { _ = session.Run(ctx) })
	wg.Go(func() { player.Run(ctx) })
	player.OnPosition(sh.onPosition)

	skipped, err := session.Load(mediaPath, trackPath)
	if err != nil {
		return err
	}
	for _, m := range skipped {
		sh.printf("skipped: %v\n", m)
	}
	if duration > 0 {
		_ = session.SetMediaDuration(duration)
	}

	return sh.loop(ctx, cmd.InOrStdin())
}

// editShell reads commands line by line and applies them to a session.
type editShell struct {
	session *editor.Session
	minutes float64
	style   recommend.Style

	mu      sync.Mutex
	out     io.Writer
	current int
}

func (sh *editShell) printf(format string, args ...any) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fmt.Fprintf(sh.out, format, args...)
}

// onPosition feeds the player clock to the session and announces each
// segment the playhead enters.
func (sh *editShell) onPosition(pos time.Duration) {
	if err := sh.session.OnPosition(pos); err != nil && !errors.Is(err, playback.ErrDriverStopped) {
		sh.printf("playback: %v\n", err)
		return
	}
	seg, ok := sh.session.Current()
	sh.mu.Lock()
	changed := ok && seg.Index != sh.current
	if ok {
		sh.current = seg.Index
	}
	sh.mu.Unlock()
	if changed {
		sh.printf("> [%d] %s\n", seg.Index, strings.Join(seg.Lines, " "))
	}
}

func (sh *editShell) loop(ctx context.Context, in io.Reader) error {
	sh.printf("type \"help\" for commands\n")
	if err := sh.exec(ctx, "list"); err != nil {
		return err
	}

	reader := bufio.NewReader(in)
	for {
		sh.printf("clipcut> ")
		line, err := reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			if cmdErr := sh.exec(ctx, line); errors.Is(cmdErr, errQuit) {
				return nil
			} else if cmdErr != nil {
				sh.printf("error: %v\n", cmdErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

var errQuit = errors.New("quit")

const editHelp = `commands:
  list                      show segments ([x] marks selected)
  toggle 1 3-5              flip selection of segments
  all | none | invert       select all, none, or flip every segment
  status                    selected duration against media length
  play | stop               auto-play the selection in order
  preview N                 play a single segment
  recommend [MIN] [STYLE]   ask for a suggestion and select it
  apply FILE                select the ranges found in an edited track
  paste                     like apply, reading the clipboard
  copy                      copy the selected segments to the clipboard
  export                    write the selected segments for cutting
  cut                       render the selection into <name>_cut<ext>
  quit
`

// clipboard access, replaced in tests
var (
	clipboardRead  = clipboard.ReadAll
	clipboardWrite = clipboard.WriteAll
)

func (sh *editShell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, rest := strings.ToLower(fields[0]), fields[1:]
	s := sh.session

	switch name {
	case "help", "?":
		sh.printf("%s", editHelp)
	case "quit", "exit", "q":
		_ = s.Stop()
		return errQuit
	case "list", "ls":
		return sh.list()
	case "toggle", "t":
		if len(rest) == 0 {
			return fmt.Errorf("toggle needs segment indices")
		}
		indices, err := parseIndexList(strings.Join(rest, ","))
		if err != nil {
			return err
		}
		for _, i := range indices {
			if _, err := s.Toggle(i); err != nil {
				return err
			}
		}
		return sh.status()
	case "all":
		if err := s.SelectAll(); err != nil {
			return err
		}
		return sh.status()
	case "none":
		if err := s.DeselectAll(); err != nil {
			return err
		}
		return sh.status()
	case "invert":
		if err := s.Invert(); err != nil {
			return err
		}
		return sh.status()
	case "status":
		return sh.status()
	case "play":
		return s.Play()
	case "stop":
		return s.Stop()
	case "preview", "p":
		if len(rest) != 1 {
			return fmt.Errorf("preview needs one segment index")
		}
		index, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("invalid segment index %q", rest[0])
		}
		return s.Preview(index)
	case "recommend", "r":
		return sh.recommend(ctx, rest)
	case "apply":
		if len(rest) != 1 {
			return fmt.Errorf("apply needs a subtitle file")
		}
		data, err := os.ReadFile(rest[0])
		if err != nil {
			return &subtitle.FileIOError{Op: "read", Path: rest[0], Err: err}
		}
		return sh.apply(string(data))
	case "paste":
		text, err := clipboardRead()
		if err != nil {
			return fmt.Errorf("clipboard: %w", err)
		}
		return sh.apply(text)
	case "copy":
		return sh.copySelection()
	case "export":
		path, err := s.ExportSelected()
		if err != nil {
			return err
		}
		sh.printf("selected segments written to %s\n", path)
	case "cut":
		out, err := s.Cut(ctx, func(r logging.Record) { sh.printf("%s\n", logging.FormatRecord(r)) })
		if err != nil {
			return err
		}
		sh.printf("clip written to %s\n", out)
	default:
		return fmt.Errorf("unknown command %q (try help)", name)
	}
	return nil
}

func (sh *editShell) list() error {
	rows, err := sh.session.Rows()
	if err != nil {
		return err
	}
	segs := make([]subtitle.Segment, len(rows))
	selected := make(map[int]bool, len(rows))
	for i, row := range rows {
		segs[i] = row.Segment
		selected[row.Segment.Index] = row.Selected
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	return listSegments(sh.out, segs, func(index int) bool { return selected[index] })
}

func (sh *editShell) status() error {
	sum, err := sh.session.Summary()
	if err != nil {
		return err
	}
	sh.printf("%d of %d selected  %s\n", sum.Selected, sum.Segments, sum)
	return nil
}

func (sh *editShell) recommend(ctx context.Context, args []string) error {
	minutes, style := sh.minutes, sh.style
	if len(args) > 0 {
		m, err := strconv.ParseFloat(args[0], 64)
		if err != nil || m <= 0 {
			return fmt.Errorf("invalid minutes %q", args[0])
		}
		minutes = m
	}
	if len(args) > 1 {
		st, err := recommend.ParseStyle(args[1])
		if err != nil {
			return err
		}
		style = st
	}

	res, err := sh.session.Recommend(ctx, minutes, style, func(r logging.Record) {
		sh.printf("%s\n", logging.FormatRecord(r))
	})
	if err != nil {
		return err
	}
	sh.printf("selected %d segments from %d suggested ranges\n", len(res.Selected), res.Ranges)
	return sh.status()
}

func (sh *editShell) apply(text string) error {
	res, err := sh.session.ApplyEdited(text)
	if err != nil {
		return err
	}
	if res.Unmatched > 0 {
		sh.printf("%d ranges matched no segment\n", res.Unmatched)
	}
	return sh.status()
}

func (sh *editShell) copySelection() error {
	rows, err := sh.session.Rows()
	if err != nil {
		return err
	}
	var keep []subtitle.Segment
	for _, row := range rows {
		if row.Selected {
			keep = append(keep, row.Segment)
		}
	}
	if len(keep) == 0 {
		return fmt.Errorf("copy: %w", playback.ErrEmptySelection)
	}
	if err := clipboardWrite(subtitle.Render(keep)); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	sh.printf("copied %d segments\n", len(keep))
	return nil
}
