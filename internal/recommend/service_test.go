package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

const track = `1
00:00:01,000 --> 00:00:03,000
hello

2
00:00:04,000 --> 00:00:06,000
world
`

func TestServiceRecommend(t *testing.T) {
	var got serviceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"processed_subtitles": "2\n00:00:04,000 --> 00:00:06,000\nworld\n",
		})
	}))
	defer srv.Close()

	c := NewServiceClient(Options{ServiceURL: srv.URL, UserID: "u-42"})
	out, err := c.Recommend(context.Background(), Request{Subtitles: track, Minutes: 2.5, Style: StyleDialogue})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if !strings.Contains(out, "00:00:04,000 --> 00:00:06,000") {
		t.Errorf("unexpected output %q", out)
	}

	want := serviceRequest{UserID: "u-42", Subtitles: track, Duration: 2.5, Style: "2"}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
}

func TestServiceRecommendFollowsURL(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/process_subtitles", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"processed_subtitles": srv.URL + "/files/out.srt",
		})
	})
	mux.HandleFunc("/files/out.srt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("1\n00:00:01,000 --> 00:00:03,000\nhello\n"))
	})

	c := NewServiceClient(Options{ServiceURL: srv.URL + "/process_subtitles"})
	out, err := c.Recommend(context.Background(), Request{Subtitles: track, Minutes: 1, Style: StyleHighlights})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if !strings.HasPrefix(out, "1\n00:00:01,000") {
		t.Errorf("downloaded track = %q", out)
	}
}

func TestServiceRecommendErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>not json</html>"))
			},
		},
		{
			name: "missing field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewServiceClient(Options{ServiceURL: srv.URL})
			if _, err := c.Recommend(context.Background(), Request{Subtitles: track, Minutes: 1, Style: StyleNarrative}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestServiceRecommendRejectsOversizedBody(t *testing.T) {
	body := `{"processed_subtitles":"1\n00:00:01,000 --> 00:00:03,000\nhello\n"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewServiceClient(Options{ServiceURL: srv.URL})
	c.limit = int64(len(body))
	if _, err := c.Recommend(context.Background(), Request{Subtitles: track, Minutes: 1, Style: StyleHighlights}); err != nil {
		t.Fatalf("body at the limit: %v", err)
	}

	c.limit = int64(len(body)) - 1
	_, err := c.Recommend(context.Background(), Request{Subtitles: track, Minutes: 1, Style: StyleHighlights})
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Errorf("expected ErrResponseTooLarge, got %v", err)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"héllo", 2, "h..."},
		{"日本語", 4, "日..."},
	}
	for _, tt := range tests {
		got := truncateString(tt.in, tt.max)
		if got != tt.want || !utf8.ValidString(got) {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestServiceRecommendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewServiceClient(Options{ServiceURL: url})
	if _, err := c.Recommend(context.Background(), Request{Subtitles: track, Minutes: 1, Style: StyleHighlights}); err == nil {
		t.Error("expected network error")
	}
}

func TestRequestValidation(t *testing.T) {
	c := NewServiceClient(Options{ServiceURL: "http://127.0.0.1:0"})
	bad := []Request{
		{Subtitles: "", Minutes: 1, Style: StyleHighlights},
		{Subtitles: track, Minutes: 0, Style: StyleHighlights},
		{Subtitles: track, Minutes: 1, Style: 4},
	}
	for _, req := range bad {
		if _, err := c.Recommend(context.Background(), req); err == nil {
			t.Errorf("expected validation error for %+v", req)
		}
	}
}
