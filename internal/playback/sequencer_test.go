package playback

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/mgpai22/clipcut/internal/subtitle"
)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func rng(start, end int) subtitle.Range {
	return subtitle.Range{Start: ms(start), End: ms(end)}
}

func seekPlay(pos int) []Command {
	return []Command{{Kind: Seek, Position: ms(pos)}, {Kind: Play}}
}

func mustStep(t *testing.T, s State, ev Event) (State, []Command) {
	t.Helper()
	next, cmds, err := Step(s, ev)
	if err != nil {
		t.Fatalf("Step(%T) failed: %v", ev, err)
	}
	return next, cmds
}

func TestStartEmptyQueue(t *testing.T) {
	s, cmds, err := Step(State{}, StartEvent{})
	if !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
	if s.Mode != Idle || cmds != nil {
		t.Errorf("empty start changed state: %+v %v", s, cmds)
	}
}

func TestStartCopiesQueue(t *testing.T) {
	queue := []subtitle.Range{rng(1000, 3500), rng(4000, 6000)}
	s, cmds := mustStep(t, State{}, StartEvent{Queue: queue})

	if s.Mode != Playing || s.CurrentEnd != ms(3500) {
		t.Errorf("state after start = %+v", s)
	}
	if !reflect.DeepEqual(cmds, seekPlay(1000)) {
		t.Errorf("commands = %v", cmds)
	}

	queue[1] = rng(0, 1)
	if s.Queue[0] != rng(4000, 6000) {
		t.Errorf("queue aliases caller slice: %v", s.Queue)
	}
}

func TestPositionAtBoundaryDequeues(t *testing.T) {
	s, _ := mustStep(t, State{}, StartEvent{Queue: []subtitle.Range{rng(1000, 3500), rng(4000, 6000)}})

	s, cmds := mustStep(t, s, PositionEvent{Position: ms(2000)})
	if cmds != nil {
		t.Fatalf("mid-range position issued %v", cmds)
	}

	s, cmds = mustStep(t, s, PositionEvent{Position: ms(3500)})
	if !reflect.DeepEqual(cmds, seekPlay(4000)) {
		t.Errorf("commands at boundary = %v, want seek 4000", cmds)
	}
	if s.CurrentEnd != ms(6000) || len(s.Queue) != 0 {
		t.Errorf("state after dequeue = %+v", s)
	}
}

func TestOverrunCompensation(t *testing.T) {
	tests := []struct {
		name     string
		queue    []subtitle.Range
		position int
		wantSeek int
	}{
		{
			name:     "overrun before next start seeks to nominal start",
			queue:    []subtitle.Range{rng(1000, 3500), rng(4000, 6000)},
			position: 3600,
			wantSeek: 4000,
		},
		{
			name:     "overrun past next start resumes from overrun",
			queue:    []subtitle.Range{rng(1000, 3500), rng(3400, 6000)},
			position: 3600,
			wantSeek: 3600,
		},
		{
			name:     "overrun equal to next start uses nominal start",
			queue:    []subtitle.Range{rng(1000, 3500), rng(3600, 6000)},
			position: 3600,
			wantSeek: 3600,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := mustStep(t, State{}, StartEvent{Queue: tt.queue})
			s, cmds := mustStep(t, s, PositionEvent{Position: ms(tt.position)})

			if !reflect.DeepEqual(cmds, seekPlay(tt.wantSeek)) {
				t.Errorf("commands = %v, want seek %d", cmds, tt.wantSeek)
			}
			if !s.HasPending || s.PendingResume != ms(tt.position) {
				t.Errorf("pending resume = %v (%v)", s.PendingResume, s.HasPending)
			}
		})
	}
}

func TestDrainEmitsSingleComplete(t *testing.T) {
	s, _ := mustStep(t, State{}, StartEvent{Queue: []subtitle.Range{rng(1000, 3500), rng(4000, 6000)}})

	var all []Command
	for _, pos := range []int{1500, 3500, 4100, 6000, 6100, 7000} {
		var cmds []Command
		s, cmds = mustStep(t, s, PositionEvent{Position: ms(pos)})
		all = append(all, cmds...)
	}

	completes := 0
	for _, c := range all {
		if c.Kind == Complete {
			completes++
		}
	}
	if completes != 1 {
		t.Errorf("expected exactly one Complete, got %d in %v", completes, all)
	}
	if s.Mode != Idle || len(s.Queue) != 0 || s.HasPending {
		t.Errorf("state after drain = %+v", s)
	}
	if all[len(all)-2].Kind != Pause || all[len(all)-1].Kind != Complete {
		t.Errorf("drain should pause then complete, got %v", all)
	}
}

func TestStopAlwaysReturnsToIdle(t *testing.T) {
	playing, _ := mustStep(t, State{}, StartEvent{Queue: []subtitle.Range{rng(0, 1000), rng(2000, 3000)}})

	for name, from := range map[string]State{"idle": {}, "playing": playing} {
		t.Run(name, func(t *testing.T) {
			s, cmds := mustStep(t, from, StopEvent{})
			if s.Mode != Idle || len(s.Queue) != 0 || s.CurrentEnd != 0 || s.HasPending {
				t.Errorf("state after stop = %+v", s)
			}
			if !reflect.DeepEqual(cmds, []Command{{Kind: Pause}}) {
				t.Errorf("stop commands = %v", cmds)
			}
		})
	}
}

func TestPositionWhileIdleIgnored(t *testing.T) {
	s, cmds := mustStep(t, State{}, PositionEvent{Position: time.Hour})
	if s.Mode != Idle || cmds != nil {
		t.Errorf("idle position produced %+v %v", s, cmds)
	}
}

func TestBackwardPositionIgnored(t *testing.T) {
	s, _ := mustStep(t, State{}, StartEvent{Queue: []subtitle.Range{rng(1000, 3500), rng(4000, 6000)}})
	s, _ = mustStep(t, s, PositionEvent{Position: ms(3500)})

	// stale callback from before the seek
	s2, cmds := mustStep(t, s, PositionEvent{Position: ms(3550)})
	if cmds != nil || !reflect.DeepEqual(s2, s) {
		t.Errorf("stale position changed session: %+v %v", s2, cmds)
	}
}

func TestPreviewTimer(t *testing.T) {
	s, cmds := mustStep(t, State{}, PreviewEvent{Range: rng(2000, 2750)})
	want := []Command{
		{Kind: Seek, Position: ms(2000)},
		{Kind: Play},
		{Kind: ArmTimer, Delay: ms(750), Token: 1},
	}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("preview commands = %v", cmds)
	}
	if s.Mode != Idle {
		t.Errorf("preview changed mode to %v", s.Mode)
	}

	_, cmds = mustStep(t, s, TimerEvent{Token: 1})
	if !reflect.DeepEqual(cmds, []Command{{Kind: Pause}}) {
		t.Errorf("timer commands = %v", cmds)
	}
}

func TestPreviewTimerSuppressedDuringAutoPlay(t *testing.T) {
	s, _ := mustStep(t, State{}, PreviewEvent{Range: rng(2000, 2750)})
	s, _ = mustStep(t, s, StartEvent{Queue: []subtitle.Range{rng(5000, 9000)}})

	_, cmds := mustStep(t, s, TimerEvent{Token: 1})
	if cmds != nil {
		t.Errorf("timer during auto-play issued %v", cmds)
	}
}

func TestNewerPreviewSupersedesTimer(t *testing.T) {
	s, _ := mustStep(t, State{}, PreviewEvent{Range: rng(0, 5000)})
	s, _ = mustStep(t, s, PreviewEvent{Range: rng(8000, 9000)})

	if _, cmds := mustStep(t, s, TimerEvent{Token: 1}); cmds != nil {
		t.Errorf("stale timer issued %v", cmds)
	}
	if _, cmds := mustStep(t, s, TimerEvent{Token: 2}); len(cmds) != 1 || cmds[0].Kind != Pause {
		t.Errorf("current timer issued %v", cmds)
	}
}

func TestPreviewRejectsEmptyRange(t *testing.T) {
	_, _, err := Step(State{}, PreviewEvent{Range: rng(3000, 3000)})
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	s, _ := mustStep(t, State{}, StartEvent{Queue: []subtitle.Range{rng(0, 1000), rng(2000, 3000), rng(4000, 5000)}})
	before := State{
		Mode:       s.Mode,
		Queue:      append([]subtitle.Range(nil), s.Queue...),
		CurrentEnd: s.CurrentEnd,
	}

	_, _ = mustStep(t, s, PositionEvent{Position: ms(1000)})

	if !reflect.DeepEqual(s, before) {
		t.Errorf("input state mutated: %+v", s)
	}
}

func TestSequencerWrapper(t *testing.T) {
	q := NewSequencer()
	if _, err := q.Start(nil); !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
	if _, err := q.Start([]subtitle.Range{rng(0, 1000)}); err != nil {
		t.Fatal(err)
	}
	if !q.Playing() {
		t.Fatal("sequencer should be playing")
	}
	cmds := q.OnPosition(ms(1000))
	if len(cmds) != 2 || cmds[1].Kind != Complete || q.Playing() {
		t.Errorf("drain via wrapper = %v, playing %v", cmds, q.Playing())
	}
}
