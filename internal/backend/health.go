package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultHealthTTL = 1 * time.Minute

// ServiceHealth is the probe result of one service.
type ServiceHealth struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type Health struct {
	Video    ServiceHealth `json:"video"`
	Image    ServiceHealth `json:"image"`
	ProbedAt time.Time     `json:"probed_at"`
}

// OK reports whether both generation services answered.
func (h *Health) OK() bool {
	return h.Video.OK && h.Image.OK
}

// Probe checks both health endpoints concurrently. A failing service is
// reported in the result, not as an error.
func (c *HTTPClient) Probe(ctx context.Context) (*Health, error) {
	h := &Health{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.Video = c.probeOne(gctx, c.endpoints.VideoURL+"/video_generation/video_health_check")
		return nil
	})
	g.Go(func() error {
		h.Image = c.probeOne(gctx, c.endpoints.ImageURL+"/image_generation/image_health_check")
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.ProbedAt = time.Now()
	return h, nil
}

func (c *HTTPClient) probeOne(ctx context.Context, u string) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ServiceHealth{Error: err.Error()}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ServiceHealth{Error: err.Error()}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return ServiceHealth{Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return ServiceHealth{OK: true}
}

// Prober is anything that can report backend health.
type Prober interface {
	Probe(ctx context.Context) (*Health, error)
}

// CachedHealth caches probe results for a TTL so status requests do not hit
// the backend every time.
type CachedHealth struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Health
}

func NewCachedHealth(prober Prober, logger *slog.Logger) *CachedHealth {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedHealth{
		prober: prober,
		ttl:    defaultHealthTTL,
		logger: logger,
	}
}

// Get returns the cached result if fresh, otherwise re-probes.
func (c *CachedHealth) Get(ctx context.Context) (*Health, error) {
	c.mu.RLock()
	if c.cached != nil && time.Since(c.cached.ProbedAt) < c.ttl {
		h := c.cached
		c.mu.RUnlock()
		return h, nil
	}
	c.mu.RUnlock()

	return c.Refresh(ctx)
}

func (c *CachedHealth) Peek() *Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached
}

// Refresh probes regardless of cache freshness. On failure the stale result
// is returned if there is one.
func (c *CachedHealth) Refresh(ctx context.Context) (*Health, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, err := c.prober.Probe(ctx)
	if err != nil {
		c.logger.Warn("backend health probe failed", "error", err)
		if c.cached != nil {
			return c.cached, nil
		}
		return nil, err
	}

	c.cached = h
	return h, nil
}

func (c *CachedHealth) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
