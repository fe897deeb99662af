// Package editor holds one editing session over a media file and its
// subtitle track: the selection, preview playback, recommendation and cut.
package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mgpai22/clipcut/internal/cutter"
	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/playback"
	"github.com/mgpai22/clipcut/internal/reconcile"
	"github.com/mgpai22/clipcut/internal/recommend"
	"github.com/mgpai22/clipcut/internal/selection"
	"github.com/mgpai22/clipcut/internal/subtitle"
	"github.com/mgpai22/clipcut/internal/task"
)

const (
	// all segments, sent for recommendation
	WorkingFile = "temp_subtitles_ai.srt"
	// selected segments, handed to the cutter
	SelectedFile = "temp_subtitles.srt"
)

var ErrNotLoaded = errors.New("no subtitle track loaded")

// Cutter renders the segments of a subtitle track out of a media file.
type Cutter interface {
	Cut(ctx context.Context, mediaPath, srtPath string, opts cutter.Options, sink logging.Sink) (string, error)
}

type Options struct {
	Player      playback.Player
	Runner      *task.Runner
	Logger      *logging.Logger
	Recommender recommend.Recommender
	Cutter      Cutter
	CutOptions  cutter.Options
	Reconcile   reconcile.Options

	// extra driver options, e.g. a fake timer source
	DriverOptions []playback.DriverOption
}

// Session is safe for concurrent use. Player position callbacks may
// arrive on any goroutine.
type Session struct {
	log         *logging.Logger
	runner      *task.Runner
	driver      *playback.Driver
	recommender recommend.Recommender
	cutter      Cutter
	cutOpts     cutter.Options
	reconcile   reconcile.Options

	mu        sync.Mutex
	mediaPath string
	trackPath string
	store     *selection.Store
	current   int
}

func New(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	runner := opts.Runner
	if runner == nil {
		runner = task.NewRunner(log)
	}

	s := &Session{
		log:         log.Named("editor"),
		runner:      runner,
		recommender: opts.Recommender,
		cutter:      opts.Cutter,
		cutOpts:     opts.CutOptions,
		reconcile:   opts.Reconcile,
	}

	driverOpts := []playback.DriverOption{
		playback.WithSink(logging.ZapSink(s.log, "playback")),
	}
	driverOpts = append(driverOpts, opts.DriverOptions...)
	s.driver = playback.NewDriver(opts.Player, driverOpts...)
	return s
}

// Run drives playback until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	return s.driver.Run(ctx)
}

// Load replaces the session's track. Selection starts empty and any
// running auto-play is stopped. Blocks that failed to parse are returned.
func (s *Session) Load(mediaPath, trackPath string) ([]*subtitle.MalformedSegmentError, error) {
	track, err := subtitle.Open(trackPath)
	if err != nil {
		return nil, err
	}
	store, err := selection.NewStore(track.Segments)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", trackPath, err)
	}
	for _, skipped := range track.Skipped {
		s.log.Warnw("skipped subtitle block", "track", trackPath, "error", skipped)
	}

	if s.driver.Playing() {
		if err := s.driver.Stop(); err != nil && !errors.Is(err, playback.ErrDriverStopped) {
			return nil, err
		}
	}

	s.mu.Lock()
	var total time.Duration
	if s.store != nil && s.mediaPath == mediaPath {
		total = s.store.TotalDuration()
	}
	store.SetTotalDuration(total)
	s.mediaPath = mediaPath
	s.trackPath = trackPath
	s.store = store
	s.current = 0
	s.mu.Unlock()

	s.log.Infow("track loaded", "track", trackPath, "segments", store.Len(), "skipped", len(track.Skipped))
	return track.Skipped, nil
}

// withStore runs fn under the session lock once a track is loaded.
func (s *Session) withStore(fn func(st *selection.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return ErrNotLoaded
	}
	return fn(s.store)
}

// SetMediaDuration records the media length shown in the summary.
func (s *Session) SetMediaDuration(d time.Duration) error {
	return s.withStore(func(st *selection.Store) error {
		st.SetTotalDuration(d)
		return nil
	})
}

// Row is one listed segment.
type Row struct {
	Segment  subtitle.Segment
	Selected bool
	Current  bool
}

func (s *Session) Rows() ([]Row, error) {
	var rows []Row
	err := s.withStore(func(st *selection.Store) error {
		for _, seg := range st.Segments() {
			sel, _ := st.IsSelected(seg.Index)
			rows = append(rows, Row{Segment: seg, Selected: sel, Current: seg.Index == s.current})
		}
		return nil
	})
	return rows, err
}

// Toggle flips one segment. Unknown indices are logged and ignored.
func (s *Session) Toggle(index int) (bool, error) {
	var selected bool
	err := s.withStore(func(st *selection.Store) error {
		var err error
		selected, err = st.Toggle(index)
		return err
	})
	if errors.Is(err, selection.ErrNotFound) {
		s.log.Warnw("toggle ignored", "index", index, "error", err)
	}
	return selected, err
}

func (s *Session) SelectAll() error {
	return s.withStore(func(st *selection.Store) error {
		st.SelectAll()
		return nil
	})
}

func (s *Session) DeselectAll() error {
	return s.withStore(func(st *selection.Store) error {
		st.DeselectAll()
		return nil
	})
}

func (s *Session) Invert() error {
	return s.withStore(func(st *selection.Store) error {
		st.InvertAll()
		return nil
	})
}

// Play starts auto-play over the ranges selected right now. Later
// selection changes do not affect the run.
func (s *Session) Play() error {
	var queue []subtitle.Range
	if err := s.withStore(func(st *selection.Store) error {
		queue = st.SelectedRanges()
		return nil
	}); err != nil {
		return err
	}
	return s.driver.Start(queue)
}

func (s *Session) Stop() error {
	return s.driver.Stop()
}

func (s *Session) Playing() bool {
	return s.driver.Playing()
}

// Preview plays a single segment and pauses at its end.
func (s *Session) Preview(index int) error {
	var seg subtitle.Segment
	err := s.withStore(func(st *selection.Store) error {
		var err error
		seg, err = st.Segment(index)
		return err
	})
	if errors.Is(err, selection.ErrNotFound) {
		s.log.Warnw("preview ignored", "index", index, "error", err)
	}
	if err != nil {
		return err
	}
	return s.driver.Preview(seg.Span())
}

// OnPosition is the player's position callback. It advances auto-play
// and tracks which segment is under the playhead.
func (s *Session) OnPosition(pos time.Duration) error {
	_ = s.withStore(func(st *selection.Store) error {
		s.current = 0
		if seg, ok := st.SegmentAt(pos); ok {
			s.current = seg.Index
		}
		return nil
	})
	return s.driver.OnPosition(pos)
}

// Current is the segment containing the last reported position.
func (s *Session) Current() (subtitle.Segment, bool) {
	var seg subtitle.Segment
	var ok bool
	_ = s.withStore(func(st *selection.Store) error {
		if s.current == 0 {
			return nil
		}
		var err error
		seg, err = st.Segment(s.current)
		ok = err == nil
		return nil
	})
	return seg, ok
}

// Summary is the selected-versus-total label.
type Summary struct {
	Segments int
	Selected int
	Duration time.Duration
	Total    time.Duration
}

func (m Summary) String() string {
	return subtitle.FormatClock(m.Duration) + " / " + subtitle.FormatClock(m.Total)
}

func (s *Session) Summary() (Summary, error) {
	var sum Summary
	err := s.withStore(func(st *selection.Store) error {
		sum = Summary{
			Segments: st.Len(),
			Selected: len(st.SelectedIndices()),
			Duration: st.SelectedDuration(),
			Total:    st.TotalDuration(),
		}
		return nil
	})
	return sum, err
}

func (s *Session) workDir() string {
	return filepath.Dir(s.mediaPath)
}

// ExportWorking writes every segment to the working file and returns its path.
func (s *Session) ExportWorking() (string, error) {
	var path string
	err := s.withStore(func(st *selection.Store) error {
		path = filepath.Join(s.workDir(), WorkingFile)
		return subtitle.WriteFile(path, st.Segments(), subtitle.All)
	})
	return path, err
}

// ExportSelected writes the selected segments for the cutter.
func (s *Session) ExportSelected() (string, error) {
	var path string
	err := s.withStore(func(st *selection.Store) error {
		if len(st.SelectedIndices()) == 0 {
			return playback.ErrEmptySelection
		}
		path = filepath.Join(s.workDir(), SelectedFile)
		return subtitle.WriteFile(path, st.Segments(), selection.SelectedOnly(st))
	})
	return path, err
}

// ApplyEdited reselects segments from an edited subtitle track.
func (s *Session) ApplyEdited(edited string) (reconcile.Result, error) {
	var res reconcile.Result
	err := s.withStore(func(st *selection.Store) error {
		var err error
		res, err = reconcile.Reconcile(st, edited, s.reconcile)
		return err
	})
	if err != nil {
		return res, err
	}
	if res.Unmatched > 0 {
		s.log.Warnw("edited ranges without a segment", "unmatched", res.Unmatched, "ranges", res.Ranges)
	}
	s.log.Infow("selection reconciled", "selected", len(res.Selected))
	return res, nil
}

func (s *Session) media() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return "", ErrNotLoaded
	}
	return s.mediaPath, nil
}

// StartRecommend sends the working export in the background. The caller
// feeds a successful result to ApplyEdited.
func (s *Session) StartRecommend(ctx context.Context, minutes float64, style recommend.Style) (*task.Handle[string], error) {
	if s.recommender == nil {
		return nil, errors.New("no recommender configured")
	}
	media, err := s.media()
	if err != nil {
		return nil, err
	}
	if s.runner.Busy(task.KindRecommend, media) {
		return nil, fmt.Errorf("recommendation for %s: %w", media, task.ErrBusy)
	}

	path, err := s.ExportWorking()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &subtitle.FileIOError{Op: "read", Path: path, Err: err}
	}

	req := recommend.Request{Subtitles: string(data), Minutes: minutes, Style: style}
	return task.Go(ctx, s.runner, task.KindRecommend, media, func(ctx context.Context, sink logging.Sink) (string, error) {
		logging.Infof(sink, "sending %s", path)
		return s.recommender.Recommend(ctx, req)
	})
}

// Recommend runs a recommendation to completion, streaming its log to
// onLog, and applies the result. A failed request leaves the selection alone.
func (s *Session) Recommend(
	ctx context.Context,
	minutes float64,
	style recommend.Style,
	onLog func(logging.Record),
) (reconcile.Result, error) {
	h, err := s.StartRecommend(ctx, minutes, style)
	if err != nil {
		return reconcile.Result{}, err
	}
	edited, err := h.Wait(onLog)
	if err != nil {
		return reconcile.Result{}, err
	}
	return s.ApplyEdited(edited)
}

// StartCut exports the selection and cuts it in the background.
func (s *Session) StartCut(ctx context.Context) (*task.Handle[string], error) {
	if s.cutter == nil {
		return nil, errors.New("no cutter configured")
	}
	media, err := s.media()
	if err != nil {
		return nil, err
	}
	if s.runner.Busy(task.KindCut, media) {
		return nil, fmt.Errorf("cut of %s: %w", media, task.ErrBusy)
	}

	srt, err := s.ExportSelected()
	if err != nil {
		return nil, err
	}
	// a session re-cut replaces the previous clip
	opts := s.cutOpts
	opts.Force = true
	return task.Go(ctx, s.runner, task.KindCut, media, func(ctx context.Context, sink logging.Sink) (string, error) {
		logging.Infof(sink, "merging subtitles and rendering video, this may take a while")
		return s.cutter.Cut(ctx, media, srt, opts, sink)
	})
}

// Cut runs a cut to completion and returns the output path.
func (s *Session) Cut(ctx context.Context, onLog func(logging.Record)) (string, error) {
	h, err := s.StartCut(ctx)
	if err != nil {
		return "", err
	}
	return h.Wait(onLog)
}
