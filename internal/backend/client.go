// Package backend talks to the external image generation, video generation
// and file upload services.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/manwarsd/dreamboard/internal/generation"
	"github.com/manwarsd/dreamboard/internal/story"
)

// Client is the boundary to the generation services. Every call is one
// batch round trip; a returned error means no response body is available.
type Client interface {
	GenerateVideos(ctx context.Context, storyID string, req generation.VideoRequest) ([]generation.VideoResponse, error)
	MergeVideos(ctx context.Context, storyID string, req generation.VideoRequest) (*generation.VideoResponse, error)
	GenerateImages(ctx context.Context, storyID string, req generation.ImageRequest) ([]generation.ImageResponse, error)
	UploadFile(ctx context.Context, storyID, kind, filename string, data []byte) (*story.Image, error)
	Probe(ctx context.Context) (*Health, error)
}

const signedURIPrefix = "https://storage.mtls.cloud.google.com/"

// SignedURI derives the authenticated browser URL of a gs:// object.
func SignedURI(gcsURI string) string {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return gcsURI
	}
	return signedURIPrefix + strings.TrimPrefix(gcsURI, "gs://")
}

// BucketPath is the upload destination of a file of the given kind, with
// "@" standing in for "/" as the upload service expects.
func BucketPath(storyID, kind string) string {
	return strings.Join([]string{storyID, "uploads", kind}, "@")
}

// StubClient fabricates successful responses without any network access. It
// is used when no backend is configured.
type StubClient struct {
	bucket string
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{bucket: "dreamboard-stub", logger: logger}
}

func (c *StubClient) GenerateVideos(ctx context.Context, storyID string, req generation.VideoRequest) ([]generation.VideoResponse, error) {
	c.logger.Info("backend stub: video generation requested", "story_id", storyID, "segments", len(req.Segments))
	out := make([]generation.VideoResponse, 0, len(req.Segments))
	for _, seg := range req.Segments {
		name := fmt.Sprintf("scene_%d_%d.mp4", seg.SegmentNumber, time.Now().UnixNano())
		out = append(out, generation.VideoResponse{
			Done:             true,
			OperationName:    "stub",
			ExecutionMessage: "generated by stub backend",
			SceneID:          seg.SceneID,
			SegmentNumber:    seg.SegmentNumber,
			Videos:           []story.Video{c.video(storyID, name)},
		})
	}
	return out, nil
}

func (c *StubClient) MergeVideos(ctx context.Context, storyID string, req generation.VideoRequest) (*generation.VideoResponse, error) {
	c.logger.Info("backend stub: merge requested", "story_id", storyID, "segments", len(req.Segments))
	if len(req.Segments) == 0 {
		return &generation.VideoResponse{Done: false, ExecutionMessage: "There are not videos to merge."}, nil
	}
	v := c.video(storyID, "final_video_"+time.Now().UTC().Format("2006-01-02-15-04-05")+".mp4")
	if len(req.Segments) == 1 && req.Segments[0].SelectedVideo != nil {
		v = *req.Segments[0].SelectedVideo
	}
	return &generation.VideoResponse{
		Done:          true,
		OperationName: "final_video",
		Videos:        []story.Video{v},
	}, nil
}

func (c *StubClient) GenerateImages(ctx context.Context, storyID string, req generation.ImageRequest) ([]generation.ImageResponse, error) {
	c.logger.Info("backend stub: image generation requested", "story_id", storyID, "scenes", len(req.Scenes))
	out := make([]generation.ImageResponse, 0, len(req.Scenes))
	for _, sc := range req.Scenes {
		n := sc.CreativeDir.NumberOfImages
		if n < 1 {
			n = 1
		}
		images := make([]story.Image, n)
		ids := make([]string, n)
		for i := range images {
			ids[i] = fmt.Sprintf("scene_%d_%d_%d", sc.SceneNum, i, time.Now().UnixNano())
			images[i] = c.image(storyID, "images", ids[i]+".png")
		}
		out = append(out, generation.ImageResponse{
			Done:          true,
			OperationName: "stub",
			SceneIDs:      strings.Join(ids, "|"),
			SegmentNumber: sc.SceneNum,
			Images:        images,
		})
	}
	return out, nil
}

func (c *StubClient) UploadFile(ctx context.Context, storyID, kind, filename string, data []byte) (*story.Image, error) {
	c.logger.Info("backend stub: upload requested", "story_id", storyID, "kind", kind, "file", filename, "bytes", len(data))
	img := c.image(storyID, path.Join("uploads", kind), filename)
	return &img, nil
}

func (c *StubClient) Probe(ctx context.Context) (*Health, error) {
	return &Health{Video: ServiceHealth{OK: true}, Image: ServiceHealth{OK: true}, ProbedAt: time.Now()}, nil
}

func (c *StubClient) video(storyID, name string) story.Video {
	uri := fmt.Sprintf("gs://%s/dreamboard/%s/videos/%s", c.bucket, storyID, name)
	return story.Video{Name: name, GCSURI: uri, SignedURI: SignedURI(uri), MimeType: "video/mp4"}
}

func (c *StubClient) image(storyID, dir, name string) story.Image {
	uri := fmt.Sprintf("gs://%s/dreamboard/%s/%s/%s", c.bucket, storyID, dir, name)
	return story.Image{Name: name, GCSURI: uri, SignedURI: SignedURI(uri), MimeType: mimeFromName(name)}
}

func mimeFromName(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	}
	return "image/png"
}
