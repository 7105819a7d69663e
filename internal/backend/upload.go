package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"

	"github.com/manwarsd/dreamboard/internal/story"
)

type uploadedFile struct {
	Name        string `json:"name"`
	GCSURI      string `json:"gcs_uri"`
	SignedURI   string `json:"signed_uri"`
	GCSFusePath string `json:"gcs_fuse_path"`
	MimeType    string `json:"mime_type"`
}

// UploadFile stores a user file through the upload service. Server and
// network errors are retried with exponential backoff; 4xx responses are
// returned immediately.
func (c *HTTPClient) UploadFile(ctx context.Context, storyID, kind, filename string, data []byte) (*story.Image, error) {
	u := fmt.Sprintf("%s/file_uploader/upload_file/%s", c.endpoints.UploadURL, url.PathEscape(BucketPath(storyID, kind)))

	c.logger.Info("uploading file",
		"story_id", storyID,
		"kind", kind,
		"file", filename,
		"size", humanize.Bytes(uint64(len(data))),
	)

	var img *story.Image
	attempt := 0
	op := func() error {
		attempt++
		var err error
		img, err = c.uploadOnce(ctx, u, filename, data)
		if err == nil {
			return nil
		}
		var be *Error
		if errors.As(err, &be) && !be.IsRetryable() {
			return backoff.Permanent(err)
		}
		c.logger.Warn("upload attempt failed", "attempt", attempt, "file", filename, "error", err)
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.uploadRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return img, nil
}

func (c *HTTPClient) uploadOnce(ctx context.Context, u, filename string, data []byte) (*story.Image, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: "upload file", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Op: "upload file", StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError("upload file", resp.StatusCode, body)
	}

	var f uploadedFile
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, &Error{Op: "upload file", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.Info("file uploaded",
		"file", filename,
		"gcs_uri", f.GCSURI,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	img := &story.Image{
		Name:        f.Name,
		GCSURI:      f.GCSURI,
		SignedURI:   f.SignedURI,
		GCSFusePath: f.GCSFusePath,
		MimeType:    f.MimeType,
	}
	if img.Name == "" {
		img.Name = filename
	}
	if img.SignedURI == "" {
		img.SignedURI = SignedURI(img.GCSURI)
	}
	if img.MimeType == "" {
		img.MimeType = mimeFromName(filename)
	}
	return img, nil
}
