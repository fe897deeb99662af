package logging

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

type recordingSink struct {
	records []Record
}

func (s *recordingSink) Write(r Record) { s.records = append(s.records, r) }

func (s *recordingSink) texts() []string {
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Text
	}
	return out
}

func TestFormatRecord(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "plain line",
			text: "Transcribing audio",
			want: "[2024-03-09 14:05:07] clipcut - Transcribing audio",
		},
		{
			name: "engine tag stripped",
			text: "[autocut:transcribe.py:L38] INFO Done transcription",
			want: "[2024-03-09 14:05:07] clipcut - INFO Done transcription",
		},
		{
			name: "bracket only line kept",
			text: "[progress]",
			want: "[2024-03-09 14:05:07] clipcut - [progress]",
		},
		{
			name: "surrounding whitespace trimmed",
			text: "  frame=10 \n",
			want: "[2024-03-09 14:05:07] clipcut - frame=10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatRecord(Record{Time: ts, Text: tt.text})
			if got != tt.want {
				t.Errorf("FormatRecord() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLineWriterSplitsAndPreservesOrder(t *testing.T) {
	sink := &recordingSink{}
	w := NewLineWriter(sink, zapcore.InfoLevel)

	chunks := []string{
		"first li",
		"ne\nsecond\r",
		"\n\nframe=1\rframe=2\r",
		"tail",
	}
	for _, c := range chunks {
		if _, err := w.Write([]byte(c)); err != nil {
			t.Fatalf("Write returned error: %v", err)
		}
	}
	w.Flush()

	want := []string{"first line", "second", "frame=1", "frame=2", "tail"}
	got := sink.texts()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("records = %q, want %q", got, want)
	}
}

func TestChannelSinkDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(2)

	go func() {
		for i := 0; i < 50; i++ {
			Infof(sink, "line %d", i)
		}
		sink.Close()
	}()

	i := 0
	for r := range sink.Records() {
		want := "line " + strconv.Itoa(i)
		if r.Text != want {
			t.Fatalf("record %d = %q, want %q", i, r.Text, want)
		}
		i++
	}
	if i != 50 {
		t.Errorf("received %d records, want 50", i)
	}
}

func TestTeeWritesToEverySink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	s := Tee(a, nil, b)
	Warnf(s, "careful %s", "now")

	if len(a.records) != 1 || len(b.records) != 1 {
		t.Fatalf("expected one record per sink, got %d and %d", len(a.records), len(b.records))
	}
	if a.records[0].Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", a.records[0].Level)
	}
	if b.records[0].Text != "careful now" {
		t.Errorf("text = %q", b.records[0].Text)
	}
}
