package logging

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Record is one line of background task output.
type Record struct {
	Time  time.Time
	Level zapcore.Level
	Text  string
}

// Sink receives task output in the order it was produced.
// Implementations must not reorder or drop records.
type Sink interface {
	Write(r Record)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(r Record)

func (f SinkFunc) Write(r Record) { f(r) }

// Discard drops every record.
var Discard Sink = SinkFunc(func(Record) {})

// writes a formatted record at the given level
func Emit(s Sink, level zapcore.Level, format string, args ...any) {
	if s == nil {
		return
	}
	s.Write(Record{
		Time:  time.Now(),
		Level: level,
		Text:  fmt.Sprintf(format, args...),
	})
}

func Infof(s Sink, format string, args ...any) {
	Emit(s, zapcore.InfoLevel, format, args...)
}

func Warnf(s Sink, format string, args ...any) {
	Emit(s, zapcore.WarnLevel, format, args...)
}

func Errorf(s Sink, format string, args ...any) {
	Emit(s, zapcore.ErrorLevel, format, args...)
}

// ChannelSink buffers records on a channel for a single consumer.
// Write blocks when the buffer is full, so nothing is lost.
// Close must only be called once every writer has returned.
type ChannelSink struct {
	ch   chan Record
	once sync.Once
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSink{ch: make(chan Record, buffer)}
}

func (s *ChannelSink) Write(r Record) {
	s.ch <- r
}

func (s *ChannelSink) Records() <-chan Record {
	return s.ch
}

func (s *ChannelSink) Close() {
	s.once.Do(func() { close(s.ch) })
}

// ZapSink forwards records to the process logger.
func ZapSink(l *Logger, task string) Sink {
	return SinkFunc(func(r Record) {
		l.Logw(r.Level, r.Text, "task", task)
	})
}

// Tee fans each record out to every sink in order.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(r Record) {
		for _, s := range sinks {
			if s != nil {
				s.Write(r)
			}
		}
	})
}

const displayName = "clipcut"

// FormatRecord renders a record for display as
// "[2006-01-02 15:04:05] clipcut - text". A leading "[component:file:L12]"
// tag from an external engine is stripped.
func FormatRecord(r Record) string {
	text := strings.TrimSpace(r.Text)
	if strings.HasPrefix(text, "[") {
		if i := strings.Index(text, "]"); i >= 0 {
			if rest := strings.TrimSpace(text[i+1:]); rest != "" {
				text = rest
			}
		}
	}
	return fmt.Sprintf(
		"[%s] %s - %s",
		r.Time.Format("2006-01-02 15:04:05"),
		displayName,
		text,
	)
}

// LineWriter splits a byte stream into records, one per line.
// Carriage returns count as line breaks so ffmpeg progress lines come through.
type LineWriter struct {
	sink  Sink
	level zapcore.Level
	mu    sync.Mutex
	buf   bytes.Buffer
}

func NewLineWriter(sink Sink, level zapcore.Level) *LineWriter {
	return &LineWriter{sink: sink, level: level}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			break
		}
		line := string(data[:i])
		w.buf.Next(i + 1)
		w.emit(line)
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *LineWriter) emit(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	w.sink.Write(Record{Time: time.Now(), Level: w.level, Text: line})
}
