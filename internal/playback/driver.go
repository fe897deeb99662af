package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mgpai22/clipcut/internal/logging"
	"github.com/mgpai22/clipcut/internal/subtitle"
)

// ErrDriverStopped is returned by calls made after the driver's loop exited.
var ErrDriverStopped = errors.New("playback driver stopped")

// Player is the external media player the driver controls.
type Player interface {
	Seek(pos time.Duration) error
	Play() error
	Pause() error
	Position() time.Duration
}

// Timer is the handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type DriverOption func(*Driver)

// WithAfterFunc replaces the timer source, mainly for tests.
func WithAfterFunc(fn AfterFunc) DriverOption {
	return func(d *Driver) {
		d.afterFunc = fn
	}
}

// WithSink routes player failures to a task log.
func WithSink(sink logging.Sink) DriverOption {
	return func(d *Driver) {
		d.sink = sink
	}
}

// WithOnComplete registers a callback for a drained queue. It runs on the
// driver goroutine and must not call back into the driver.
func WithOnComplete(fn func()) DriverOption {
	return func(d *Driver) {
		d.onComplete = fn
	}
}

type request struct {
	ev    Event
	reply chan error
}

// Driver serializes every playback event (UI calls, player position
// callbacks and preview timers) onto one goroutine, runs it through the
// Sequencer and hands the resulting commands to the Player.
type Driver struct {
	player     Player
	seq        *Sequencer
	afterFunc  AfterFunc
	sink       logging.Sink
	onComplete func()

	requests chan request
	done     chan struct{}
	doneOnce sync.Once

	mu      sync.Mutex
	snap    State
	timers  []Timer
	lastPos atomic.Int64
}

func NewDriver(player Player, opts ...DriverOption) *Driver {
	d := &Driver{
		player:    player,
		seq:       NewSequencer(),
		afterFunc: realAfterFunc,
		sink:      logging.Discard,
		requests:  make(chan request),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes events until ctx is cancelled. It must be called exactly once.
func (d *Driver) Run(ctx context.Context) error {
	defer d.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-d.requests:
			req.reply <- d.handle(req.ev)
		}
	}
}

func (d *Driver) shutdown() {
	d.doneOnce.Do(func() {
		close(d.done)
	})

	d.mu.Lock()
	timers := d.timers
	d.timers = nil
	d.mu.Unlock()
	for _, t := range timers {
		t.Stop()
	}
}

func (d *Driver) handle(ev Event) error {
	if pe, ok := ev.(PositionEvent); ok {
		d.lastPos.Store(int64(pe.Position))
	}

	cmds, err := d.seq.Apply(ev)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.snap = d.seq.State()
	d.mu.Unlock()

	for _, cmd := range cmds {
		d.dispatch(cmd)
	}
	return nil
}

func (d *Driver) dispatch(cmd Command) {
	var err error
	switch cmd.Kind {
	case Seek:
		err = d.player.Seek(cmd.Position)
	case Play:
		err = d.player.Play()
	case Pause:
		err = d.player.Pause()
	case ArmTimer:
		token := cmd.Token
		t := d.afterFunc(cmd.Delay, func() {
			_ = d.post(TimerEvent{Token: token})
		})
		d.mu.Lock()
		stale := d.timers
		d.timers = []Timer{t}
		d.mu.Unlock()
		for _, old := range stale {
			old.Stop()
		}
	case Complete:
		logging.Infof(d.sink, "auto-play complete")
		if d.onComplete != nil {
			d.onComplete()
		}
	}
	if err != nil {
		logging.Warnf(d.sink, "player %s failed: %v", cmd, err)
	}
}

func (d *Driver) post(ev Event) error {
	req := request{ev: ev, reply: make(chan error, 1)}
	select {
	case d.requests <- req:
	case <-d.done:
		return ErrDriverStopped
	}
	select {
	case err := <-req.reply:
		return err
	case <-d.done:
		return ErrDriverStopped
	}
}

// Start begins auto-play over queue, typically the store's selected ranges.
func (d *Driver) Start(queue []subtitle.Range) error {
	return d.post(StartEvent{Queue: queue})
}

// Stop pauses the player and ends any auto-play session.
func (d *Driver) Stop() error {
	return d.post(StopEvent{})
}

// Preview plays one range and pauses at its end unless auto-play is running.
func (d *Driver) Preview(r subtitle.Range) error {
	return d.post(PreviewEvent{Range: r})
}

// OnPosition feeds a player position update into the sequencer.
func (d *Driver) OnPosition(pos time.Duration) error {
	return d.post(PositionEvent{Position: pos})
}

// State returns a snapshot taken after the last processed event.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

func (d *Driver) Playing() bool {
	return d.State().Mode == Playing
}

// LastPosition is the most recent position reported to the driver.
func (d *Driver) LastPosition() time.Duration {
	return time.Duration(d.lastPos.Load())
}
