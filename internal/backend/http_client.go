package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/manwarsd/dreamboard/internal/generation"
	"github.com/manwarsd/dreamboard/internal/story"
)

const (
	maxResponseBytes = 8 << 20
	maxDetailBytes   = 512
)

// Error is a failed call to one of the services.
type Error struct {
	Op         string
	StatusCode int
	Detail     string
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true for server errors (5xx) and network errors.
// Client errors (4xx) are considered permanent.
func (e *Error) IsRetryable() bool {
	return e.Err != nil || e.StatusCode >= 500
}

// UserMessage is the text shown to the user: the service's own detail when
// it sent one, otherwise a generic message.
func (e *Error) UserMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "the generation service could not complete the request, please try again"
}

// Endpoints are the base URLs of the three services. They may all point at
// the same host.
type Endpoints struct {
	VideoURL  string
	ImageURL  string
	UploadURL string
}

// HTTPClient calls the generation services over HTTP with JSON bodies.
type HTTPClient struct {
	endpoints  Endpoints
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	uploadRetries uint64
	newBackOff    func() backoff.BackOff
}

func NewHTTPClient(endpoints Endpoints, token string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		endpoints: Endpoints{
			VideoURL:  strings.TrimRight(endpoints.VideoURL, "/"),
			ImageURL:  strings.TrimRight(endpoints.ImageURL, "/"),
			UploadURL: strings.TrimRight(endpoints.UploadURL, "/"),
		},
		token: token,
		// Generation can take minutes; callers bound it with their context.
		httpClient:    &http.Client{},
		logger:        logger,
		uploadRetries: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
}

func (c *HTTPClient) GenerateVideos(ctx context.Context, storyID string, req generation.VideoRequest) ([]generation.VideoResponse, error) {
	u := fmt.Sprintf("%s/video_generation/generate_videos_from_scenes/%s", c.endpoints.VideoURL, url.PathEscape(storyID))
	var out []generation.VideoResponse
	if err := c.postJSON(ctx, "generate videos", u, req, &out); err != nil {
		return nil, err
	}
	for i := range out {
		normalizeVideos(out[i].Videos)
	}
	return out, nil
}

func (c *HTTPClient) MergeVideos(ctx context.Context, storyID string, req generation.VideoRequest) (*generation.VideoResponse, error) {
	u := fmt.Sprintf("%s/video_generation/merge_videos/%s", c.endpoints.VideoURL, url.PathEscape(storyID))
	var out generation.VideoResponse
	if err := c.postJSON(ctx, "merge videos", u, req, &out); err != nil {
		return nil, err
	}
	normalizeVideos(out.Videos)
	return &out, nil
}

func (c *HTTPClient) GenerateImages(ctx context.Context, storyID string, req generation.ImageRequest) ([]generation.ImageResponse, error) {
	u := fmt.Sprintf("%s/image_generation/generate_image/%s", c.endpoints.ImageURL, url.PathEscape(storyID))
	var out []generation.ImageResponse
	if err := c.postJSON(ctx, "generate images", u, req, &out); err != nil {
		return nil, err
	}
	for i := range out {
		normalizeImages(out[i].Images)
	}
	return out, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, op, u string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	c.logger.Info("calling generation service",
		"op", op,
		"url", u,
		"body_size", humanize.Bytes(uint64(len(body))),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(op, resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.Info("generation service responded",
		"op", op,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Dreamboard-Request-Id", uuid.NewString())
}

func newStatusError(op string, status int, body []byte) *Error {
	e := &Error{Op: op, StatusCode: status, Body: truncate(string(body), maxDetailBytes)}
	e.Detail = parseDetail(body)
	return e
}

// parseDetail extracts {"detail": "..."} from an error body. Short plain
// text bodies are taken as the detail as well.
func parseDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Detail) == 0 {
			return ""
		}
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
		return ""
	}

	if len(trimmed) <= maxDetailBytes && !strings.HasPrefix(trimmed, "<") {
		return trimmed
	}
	return ""
}

func normalizeVideos(videos []story.Video) {
	for i := range videos {
		if videos[i].SignedURI == "" {
			videos[i].SignedURI = SignedURI(videos[i].GCSURI)
		}
	}
}

func normalizeImages(images []story.Image) {
	for i := range images {
		if images[i].SignedURI == "" {
			images[i].SignedURI = SignedURI(images[i].GCSURI)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
