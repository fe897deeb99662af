package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/mgpai22/clipcut/internal/logging"
)

var (
	// ErrBusy is returned when a task of the same kind is already running
	// for the same resource.
	ErrBusy = errors.New("task already running")
	// ErrExternalTask matches every *ExternalTaskError.
	ErrExternalTask = errors.New("external task failed")
)

// kind of long-running external operation
type Kind string

const (
	KindTranscribe Kind = "transcribe"
	KindCut        Kind = "cut"
	KindRecommend  Kind = "recommend"
)

// ExternalTaskError wraps the failure of a background task. Any partial
// output the task produced must not be used.
type ExternalTaskError struct {
	Kind     Kind
	Resource string
	Err      error
}

func (e *ExternalTaskError) Error() string {
	return fmt.Sprintf("%s of %s failed: %v", e.Kind, e.Resource, e.Err)
}

func (e *ExternalTaskError) Unwrap() error {
	return e.Err
}

func (e *ExternalTaskError) Is(target error) bool {
	return target == ErrExternalTask
}

// Func is the body of a task. It reports progress only through sink.
type Func[T any] func(ctx context.Context, sink logging.Sink) (T, error)

// Handle tracks one running task.
type Handle[T any] struct {
	ID       string
	Kind     Kind
	Resource string

	logs *logging.ChannelSink
	done chan struct{}

	result T
	err    error
}

// Logs delivers the task's records in production order and is closed when
// the task returns. The task blocks while the buffer is full, so a caller
// that does not use Wait must drain it.
func (h *Handle[T]) Logs() <-chan logging.Record {
	return h.logs.Records()
}

// Done is closed once the result is available.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Result returns the outcome; it is only meaningful after Done is closed.
func (h *Handle[T]) Result() (T, error) {
	return h.result, h.err
}

// Wait passes every log record to onLog, in order, then returns the result.
func (h *Handle[T]) Wait(onLog func(logging.Record)) (T, error) {
	for r := range h.logs.Records() {
		if onLog != nil {
			onLog(r)
		}
	}
	<-h.done
	return h.result, h.err
}

type key struct {
	kind     Kind
	resource string
}

// Runner starts background tasks, allowing one per kind and resource.
type Runner struct {
	logger *logging.Logger
	buffer int

	mu     sync.Mutex
	active map[key]string
}

func NewRunner(logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Runner{
		logger: logger,
		buffer: 256,
		active: make(map[key]string),
	}
}

// Busy reports whether a task of kind is running for resource.
func (r *Runner) Busy(kind Kind, resource string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[key{kind, resource}]
	return ok
}

// Go runs fn on its own goroutine. Its failure, including a panic, comes
// back from Wait as an *ExternalTaskError.
func Go[T any](
	ctx context.Context,
	r *Runner,
	kind Kind,
	resource string,
	fn Func[T],
) (*Handle[T], error) {
	k := key{kind, resource}

	r.mu.Lock()
	if id, ok := r.active[k]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%s of %s (task %s): %w", kind, resource, id, ErrBusy)
	}
	h := &Handle[T]{
		ID:       uuid.NewString(),
		Kind:     kind,
		Resource: resource,
		logs:     logging.NewChannelSink(r.buffer),
		done:     make(chan struct{}),
	}
	r.active[k] = h.ID
	r.mu.Unlock()

	log := r.logger.Named(string(kind))
	log.Debugw("task started", "id", h.ID, "resource", resource)

	go func() {
		defer close(h.done)
		defer r.release(k)

		sink := logging.Tee(h.logs, logging.ZapSink(log, h.ID))
		result, err := run(ctx, fn, sink)

		h.logs.Close()

		if err != nil {
			log.Warnw("task failed", "id", h.ID, "resource", resource, "error", err)
			var ext *ExternalTaskError
			if !errors.As(err, &ext) {
				err = &ExternalTaskError{Kind: kind, Resource: resource, Err: err}
			}
		} else {
			log.Debugw("task finished", "id", h.ID, "resource", resource)
		}
		h.result, h.err = result, err
	}()

	return h, nil
}

func run[T any](ctx context.Context, fn Func[T], sink logging.Sink) (result T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return fn(ctx, sink)
}

func (r *Runner) release(k key) {
	r.mu.Lock()
	delete(r.active, k)
	r.mu.Unlock()
}
