package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mgpai22/clipcut/internal/config"
	"github.com/mgpai22/clipcut/internal/logging"
)

// bodies above this size are rejected
const maxResponseBytes = 32 << 20

var ErrResponseTooLarge = errors.New("service response too large")

// ServiceClient talks to the remote subtitle processing endpoint.
type ServiceClient struct {
	url    string
	userID string
	client *http.Client
	sink   logging.Sink
	limit  int64
}

type serviceRequest struct {
	UserID    string  `json:"user_id"`
	Subtitles string  `json:"subtitles"`
	Duration  float64 `json:"duration"`
	Style     string  `json:"style"`
}

type serviceResponse struct {
	ProcessedSubtitles *string `json:"processed_subtitles"`
}

func NewServiceClient(opts Options) *ServiceClient {
	url := opts.ServiceURL
	if url == "" {
		url = config.DefaultServiceURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		client = &http.Client{Timeout: timeout}
	}
	return &ServiceClient{
		url:    url,
		userID: opts.UserID,
		client: client,
		sink:   opts.sink(),
		limit:  maxResponseBytes,
	}
}

// Recommend posts the track and returns the processed one. A response
// that is a link is downloaded. There is no retry.
func (c *ServiceClient) Recommend(ctx context.Context, req Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	body, err := json.Marshal(serviceRequest{
		UserID:    c.userID,
		Subtitles: req.Subtitles,
		Duration:  req.Minutes,
		Style:     fmt.Sprint(int(req.Style)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	logging.Infof(c.sink, "requesting %v minute %s cut from %s", req.Minutes, req.Style, c.url)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	data, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	var resp serviceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("malformed response: %w", err)
	}
	if resp.ProcessedSubtitles == nil {
		return "", fmt.Errorf("malformed response: missing processed_subtitles")
	}

	processed := strings.TrimSpace(*resp.ProcessedSubtitles)
	if isURL(processed) {
		logging.Infof(c.sink, "downloading processed subtitles from %s", processed)
		return c.fetch(ctx, processed)
	}
	return *resp.ProcessedSubtitles, nil
}

func (c *ServiceClient) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	data, err := c.do(req)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *ServiceClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > c.limit {
		return nil, fmt.Errorf("%w: %s sent more than %d bytes", ErrResponseTooLarge, req.URL.Host, c.limit)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("service returned %s: %s", resp.Status, truncateString(strings.TrimSpace(string(data)), 200))
	}
	return data, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// truncates s to at most maxLen bytes without splitting a rune
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
