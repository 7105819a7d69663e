package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/manwarsd/dreamboard/internal/generation"
)

func TestHTTPClient_Probe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/video_generation/video_health_check":
			w.Write([]byte(`"Success"`))
		case "/image_generation/image_health_check":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	h, err := newTestClient(server.URL).Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !h.Video.OK {
		t.Errorf("Video = %+v, want ok", h.Video)
	}
	if h.Image.OK || h.Image.Error != "HTTP 503" {
		t.Errorf("Image = %+v, want HTTP 503", h.Image)
	}
	if h.OK() {
		t.Error("OK() = true, want false")
	}
}

type fakeProber struct {
	calls int
	err   error
}

func (p *fakeProber) Probe(ctx context.Context) (*Health, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &Health{Video: ServiceHealth{OK: true}, Image: ServiceHealth{OK: true}, ProbedAt: time.Now()}, nil
}

func TestCachedHealth_TTL(t *testing.T) {
	fake := &fakeProber{}
	cache := NewCachedHealth(fake, testLogger())
	cache.ttl = 50 * time.Millisecond
	ctx := context.Background()

	h1, err := cache.Get(ctx)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	h2, _ := cache.Get(ctx)
	if h1 != h2 || fake.calls != 1 {
		t.Fatalf("calls = %d, want 1 (cached)", fake.calls)
	}

	time.Sleep(80 * time.Millisecond)
	if _, err := cache.Get(ctx); err != nil {
		t.Fatalf("Get after TTL: %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("calls = %d, want 2 after TTL expiry", fake.calls)
	}
}

func TestCachedHealth_StaleOnError(t *testing.T) {
	fake := &fakeProber{}
	cache := NewCachedHealth(fake, testLogger())
	ctx := context.Background()

	first, _ := cache.Get(ctx)
	fake.err = errors.New("down")

	got, err := cache.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v, want stale result", err)
	}
	if got != first {
		t.Error("expected stale cached result")
	}

	cache.Invalidate()
	if cache.Peek() != nil {
		t.Fatal("Peek() should be nil after Invalidate")
	}
	if _, err := cache.Refresh(ctx); err == nil {
		t.Fatal("Refresh() with empty cache should fail")
	}
}

func TestStubClient_Merge(t *testing.T) {
	c := NewStubClient(testLogger())
	resp, err := c.MergeVideos(context.Background(), "s", generation.VideoRequest{})
	if err != nil {
		t.Fatalf("MergeVideos() error = %v", err)
	}
	if resp.Done {
		t.Error("merge of no segments should not be done")
	}
}
