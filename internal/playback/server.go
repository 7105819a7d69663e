// Package playback streams generated videos from a local mount of the
// generation bucket, so clips can be previewed without a signed URL.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/manwarsd/dreamboard/internal/story"
)

var (
	ErrDisabled     = errors.New("local playback is not configured")
	ErrNotLocal     = errors.New("video has no local path")
	ErrOutsideMount = errors.New("video path escapes the media root")
)

type Server struct {
	root   string
	logger *slog.Logger
}

// NewServer serves files below root. An empty root disables playback.
func NewServer(root string, logger *slog.Logger) *Server {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &Server{root: root, logger: logger}
}

func (s *Server) Enabled() bool {
	return s.root != ""
}

// Resolve maps a video to its file below the media root. The fuse path is
// used when the backend reported one, otherwise the object name of its
// gs:// URI.
func (s *Server) Resolve(v story.Video) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}

	rel := v.GCSFusePath
	if rel == "" {
		obj, ok := objectName(v.GCSURI)
		if !ok {
			return "", ErrNotLocal
		}
		rel = obj
	}

	var p string
	if filepath.IsAbs(rel) {
		p = filepath.Clean(rel)
	} else {
		p = filepath.Join(s.root, filepath.FromSlash(rel))
	}

	within, err := filepath.Rel(s.root, p)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", ErrOutsideMount
	}
	return p, nil
}

// objectName strips the scheme and bucket from a gs:// URI.
func objectName(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", false
	}
	_, obj, ok := strings.Cut(rest, "/")
	if !ok || obj == "" {
		return "", false
	}
	return obj, true
}

// ServeVideo writes the video's bytes, honoring a single byte range.
func (s *Server) ServeVideo(w http.ResponseWriter, r *http.Request, v story.Video) error {
	path, err := s.Resolve(v)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat video: %w", err)
	}
	if info.IsDir() {
		return os.ErrNotExist
	}
	size := info.Size()

	contentType := v.MimeType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	span, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	case err != nil && !errors.Is(err, ErrInvalidRange):
		return err
	}

	if span == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.Copy(w, f)
		}
		return nil
	}

	if _, err := f.Seek(span.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek video: %w", err)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(span.Length(), 10))
	w.Header().Set("Content-Range", span.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method != http.MethodHead {
		io.CopyN(w, f, span.Length())
	}
	return nil
}
