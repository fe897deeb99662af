package playback

import (
	"errors"
	"fmt"
	"time"

	"github.com/mgpai22/clipcut/internal/subtitle"
)

var (
	// ErrEmptySelection is returned when auto-play is started with nothing queued.
	ErrEmptySelection = errors.New("no segments selected")
	ErrInvalidRange   = errors.New("invalid preview range")
)

type Mode int

const (
	Idle Mode = iota
	Playing
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// State is the full auto-play session state. The zero value is Idle.
type State struct {
	Mode Mode

	// ranges still to play, head first; owned copy of the caller's slice
	Queue []subtitle.Range

	// stop position of the range in flight
	CurrentEnd time.Duration

	// position at which the previous range was seen to finish, used to
	// skip content the player already ran through
	PendingResume time.Duration
	HasPending    bool

	// identifies the latest single-segment preview; older timers are stale
	PreviewToken uint64
}

// Event is one input to the state machine.
type Event interface {
	event()
}

type StartEvent struct {
	Queue []subtitle.Range
}

type PositionEvent struct {
	Position time.Duration
}

type StopEvent struct{}

type PreviewEvent struct {
	Range subtitle.Range
}

type TimerEvent struct {
	Token uint64
}

func (StartEvent) event()    {}
func (PositionEvent) event() {}
func (StopEvent) event()     {}
func (PreviewEvent) event()  {}
func (TimerEvent) event()    {}

type CommandKind int

const (
	Seek CommandKind = iota
	Play
	Pause
	// ArmTimer asks for a TimerEvent carrying Token after Delay
	ArmTimer
	// Complete reports that the queue drained
	Complete
)

func (k CommandKind) String() string {
	switch k {
	case Seek:
		return "seek"
	case Play:
		return "play"
	case Pause:
		return "pause"
	case ArmTimer:
		return "arm-timer"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command is an instruction for the player or the host.
type Command struct {
	Kind     CommandKind
	Position time.Duration
	Delay    time.Duration
	Token    uint64
}

func (c Command) String() string {
	switch c.Kind {
	case Seek:
		return fmt.Sprintf("seek(%s)", subtitle.FormatTimestamp(c.Position))
	case ArmTimer:
		return fmt.Sprintf("arm-timer(%s, #%d)", c.Delay, c.Token)
	default:
		return c.Kind.String()
	}
}

// Step applies ev to s and returns the next state with the commands to issue,
// in order. It never blocks and never mutates s. On error the returned state
// equals s and no commands are issued.
func Step(s State, ev Event) (State, []Command, error) {
	switch e := ev.(type) {
	case StartEvent:
		return start(s, e.Queue)
	case PositionEvent:
		next, cmds := onPosition(s, e.Position)
		return next, cmds, nil
	case StopEvent:
		next, cmds := stop(s)
		return next, cmds, nil
	case PreviewEvent:
		return preview(s, e.Range)
	case TimerEvent:
		next, cmds := onTimer(s, e.Token)
		return next, cmds, nil
	default:
		return s, nil, fmt.Errorf("unknown playback event %T", ev)
	}
}

func start(s State, queue []subtitle.Range) (State, []Command, error) {
	if len(queue) == 0 {
		return s, nil, ErrEmptySelection
	}

	first := queue[0]
	rest := make([]subtitle.Range, len(queue)-1)
	copy(rest, queue[1:])

	next := State{
		Mode:         Playing,
		Queue:        rest,
		CurrentEnd:   first.End,
		PreviewToken: s.PreviewToken,
	}
	return next, []Command{
		{Kind: Seek, Position: first.Start},
		{Kind: Play},
	}, nil
}

// Positions before the current end are either normal progress or stale
// callbacks from before the last seek; both leave the session alone.
func onPosition(s State, pos time.Duration) (State, []Command) {
	if s.Mode != Playing || pos < s.CurrentEnd {
		return s, nil
	}

	s.PendingResume = pos
	s.HasPending = true

	if len(s.Queue) == 0 {
		return State{PreviewToken: s.PreviewToken}, []Command{
			{Kind: Pause},
			{Kind: Complete},
		}
	}

	head := s.Queue[0]
	s.Queue = s.Queue[1:]

	from := head.Start
	if s.HasPending && s.PendingResume > head.Start {
		from = s.PendingResume
	}
	s.CurrentEnd = head.End

	return s, []Command{
		{Kind: Seek, Position: from},
		{Kind: Play},
	}
}

func stop(s State) (State, []Command) {
	return State{PreviewToken: s.PreviewToken}, []Command{{Kind: Pause}}
}

func preview(s State, r subtitle.Range) (State, []Command, error) {
	if r.End <= r.Start {
		return s, nil, fmt.Errorf("%w: %s", ErrInvalidRange, subtitle.FormatRange(r.Start, r.End))
	}

	s.PreviewToken++
	return s, []Command{
		{Kind: Seek, Position: r.Start},
		{Kind: Play},
		{Kind: ArmTimer, Delay: r.Duration(), Token: s.PreviewToken},
	}, nil
}

// auto-play owns the player while active, so preview pauses are dropped
func onTimer(s State, token uint64) (State, []Command) {
	if token != s.PreviewToken || s.Mode == Playing {
		return s, nil
	}
	return s, []Command{{Kind: Pause}}
}

// Sequencer keeps a State and advances it through Step.
type Sequencer struct {
	state State
}

func NewSequencer() *Sequencer {
	return &Sequencer{}
}

func (q *Sequencer) State() State {
	return q.state
}

func (q *Sequencer) Playing() bool {
	return q.state.Mode == Playing
}

func (q *Sequencer) Apply(ev Event) ([]Command, error) {
	next, cmds, err := Step(q.state, ev)
	if err != nil {
		return nil, err
	}
	q.state = next
	return cmds, nil
}

func (q *Sequencer) Start(queue []subtitle.Range) ([]Command, error) {
	return q.Apply(StartEvent{Queue: queue})
}

func (q *Sequencer) OnPosition(pos time.Duration) []Command {
	cmds, _ := q.Apply(PositionEvent{Position: pos})
	return cmds
}

func (q *Sequencer) Stop() []Command {
	cmds, _ := q.Apply(StopEvent{})
	return cmds
}

func (q *Sequencer) Preview(r subtitle.Range) ([]Command, error) {
	return q.Apply(PreviewEvent{Range: r})
}

func (q *Sequencer) OnTimer(token uint64) []Command {
	cmds, _ := q.Apply(TimerEvent{Token: token})
	return cmds
}
