package playback

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/manwarsd/dreamboard/internal/story"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "dreamboard", "story-1", "videos")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scene_1.mp4"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewServer(root, slog.New(slog.NewTextHandler(io.Discard, nil))), root
}

func TestServer_Resolve(t *testing.T) {
	srv, root := newTestServer(t)
	want := filepath.Join(root, "dreamboard", "story-1", "videos", "scene_1.mp4")

	got, err := srv.Resolve(story.Video{GCSURI: "gs://bucket/dreamboard/story-1/videos/scene_1.mp4"})
	if err != nil || got != want {
		t.Fatalf("Resolve(gcs) = %q, %v, want %q", got, err, want)
	}

	got, err = srv.Resolve(story.Video{GCSFusePath: "dreamboard/story-1/videos/scene_1.mp4", GCSURI: "gs://other/x.mp4"})
	if err != nil || got != want {
		t.Fatalf("Resolve(fuse) = %q, %v, want %q", got, err, want)
	}

	if _, err := srv.Resolve(story.Video{GCSFusePath: "../../etc/passwd"}); !errors.Is(err, ErrOutsideMount) {
		t.Errorf("Resolve(traversal) error = %v, want ErrOutsideMount", err)
	}
	if _, err := srv.Resolve(story.Video{GCSFusePath: "/etc/passwd"}); !errors.Is(err, ErrOutsideMount) {
		t.Errorf("Resolve(absolute) error = %v, want ErrOutsideMount", err)
	}
	if _, err := srv.Resolve(story.Video{SignedURI: "https://example.com/v.mp4"}); !errors.Is(err, ErrNotLocal) {
		t.Errorf("Resolve(remote) error = %v, want ErrNotLocal", err)
	}

	disabled := NewServer("", nil)
	if _, err := disabled.Resolve(story.Video{GCSURI: "gs://b/x.mp4"}); !errors.Is(err, ErrDisabled) {
		t.Errorf("Resolve(disabled) error = %v, want ErrDisabled", err)
	}
}

func TestServer_ServeVideo(t *testing.T) {
	srv, _ := newTestServer(t)
	v := story.Video{GCSURI: "gs://bucket/dreamboard/story-1/videos/scene_1.mp4", MimeType: "video/mp4"}

	rr := httptest.NewRecorder()
	if err := srv.ServeVideo(rr, httptest.NewRequest(http.MethodGet, "/", nil), v); err != nil {
		t.Fatalf("ServeVideo() error = %v", err)
	}
	if rr.Code != http.StatusOK || rr.Body.String() != "0123456789" || rr.Header().Get("Content-Type") != "video/mp4" {
		t.Fatalf("full response = %d %q %q", rr.Code, rr.Body.String(), rr.Header().Get("Content-Type"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "bytes=2-4")
	rr = httptest.NewRecorder()
	if err := srv.ServeVideo(rr, req, v); err != nil {
		t.Fatalf("ServeVideo(range) error = %v", err)
	}
	if rr.Code != http.StatusPartialContent || rr.Body.String() != "234" {
		t.Fatalf("range response = %d %q", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes 2-4/10" {
		t.Errorf("Content-Range = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Range", "bytes=50-")
	rr = httptest.NewRecorder()
	srv.ServeVideo(rr, req, v)
	if rr.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("unsatisfiable status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.ServeVideo(rr, httptest.NewRequest(http.MethodHead, "/", nil), v)
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 || rr.Header().Get("Content-Length") != "10" {
		t.Fatalf("HEAD response = %d, body %d bytes, length %q", rr.Code, rr.Body.Len(), rr.Header().Get("Content-Length"))
	}

	missing := story.Video{GCSURI: "gs://bucket/dreamboard/story-1/videos/nope.mp4"}
	if err := srv.ServeVideo(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), missing); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ServeVideo(missing) error = %v, want not exist", err)
	}
}
