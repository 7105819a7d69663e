package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/manwarsd/dreamboard/internal/catalog"
	"github.com/manwarsd/dreamboard/internal/export"
	"github.com/manwarsd/dreamboard/internal/story"
)

const maxUploadBytes = 20 << 20

// uploadHandler forwards a seed or reference image to the upload service
// and attaches the stored file to the scene.
func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		storyID := chi.URLParam(r, "id")

		kind := catalog.FileKind(chi.URLParam(r, "kind"))
		if kind != catalog.FileKindSeed && kind != catalog.FileKindReference {
			WriteError(w, http.StatusBadRequest, "upload kind must be seed or reference", "BAD_REQUEST")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				WriteError(w, http.StatusRequestEntityTooLarge,
					"file exceeds "+humanize.IBytes(maxUploadBytes), "TOO_LARGE")
				return
			}
			WriteError(w, http.StatusBadRequest, "invalid multipart body", "BAD_REQUEST")
			return
		}

		sceneID := r.FormValue("scene_id")
		if sceneID == "" {
			WriteError(w, http.StatusBadRequest, "scene_id is required", "BAD_REQUEST")
			return
		}

		var refType story.ReferenceType
		if v := r.FormValue("reference_type"); v != "" {
			rt, ok := story.ParseReferenceType(v)
			if !ok {
				WriteError(w, http.StatusBadRequest, "unknown reference_type", "BAD_REQUEST")
				return
			}
			refType = rt
		}

		st, err := cfg.Stories.GetStory(ctx, storyID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if st.Scene(sceneID) == nil {
			writeDomainError(w, catalog.ErrSceneNotFound)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "file is required", "BAD_REQUEST")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read file", "BAD_REQUEST")
			return
		}
		if len(data) > maxUploadBytes {
			WriteError(w, http.StatusRequestEntityTooLarge,
				"file exceeds "+humanize.IBytes(maxUploadBytes), "TOO_LARGE")
			return
		}

		name := export.SanitizeFilename(header.Filename)
		img, err := cfg.Backend.UploadFile(ctx, storyID, string(kind), name, data)
		if err != nil {
			cfg.Logger.Error("upload failed", "story_id", storyID, "file", name, "error", err)
			writeDomainError(w, err)
			return
		}

		sc, err := cfg.Stories.AttachImage(ctx, storyID, sceneID, kind, *img, refType, r.FormValue("description"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		cfg.Logger.Info("file uploaded",
			"story_id", storyID,
			"scene", sc.Number,
			"kind", kind,
			"size", humanize.Bytes(uint64(len(data))),
		)
		WriteJSON(w, http.StatusCreated, UploadResponse{Image: *img, Scene: sc})
	}
}
