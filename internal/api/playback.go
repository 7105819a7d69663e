package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/manwarsd/dreamboard/internal/catalog"
	"github.com/manwarsd/dreamboard/internal/playback"
	"github.com/manwarsd/dreamboard/internal/story"
)

// scenePlaybackHandler streams the scene's selected video from the local
// media mount.
func scenePlaybackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := cfg.Stories.GetStory(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		sc := st.Scene(chi.URLParam(r, "sceneID"))
		if sc == nil {
			writeDomainError(w, catalog.ErrSceneNotFound)
			return
		}
		if sc.VideoSettings.Selected == nil {
			WriteError(w, http.StatusNotFound, "scene has no selected video", "NOT_FOUND")
			return
		}
		servePlayback(cfg, w, r, *sc.VideoSettings.Selected)
	}
}

func finalPlaybackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := cfg.Stories.GetStory(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		fv := st.FinalVideo()
		if fv == nil {
			WriteError(w, http.StatusNotFound, "story has no final video", "NOT_FOUND")
			return
		}
		servePlayback(cfg, w, r, *fv)
	}
}

func servePlayback(cfg ServerConfig, w http.ResponseWriter, r *http.Request, v story.Video) {
	if cfg.Playback == nil {
		WriteError(w, http.StatusNotFound, playback.ErrDisabled.Error(), "PLAYBACK_DISABLED")
		return
	}

	err := cfg.Playback.ServeVideo(w, r, v)
	switch {
	case err == nil:
	case errors.Is(err, playback.ErrDisabled):
		WriteError(w, http.StatusNotFound, err.Error(), "PLAYBACK_DISABLED")
	case errors.Is(err, playback.ErrNotLocal), errors.Is(err, os.ErrNotExist):
		WriteError(w, http.StatusNotFound, "video is not available on the media mount", "NOT_FOUND")
	case errors.Is(err, playback.ErrOutsideMount):
		WriteError(w, http.StatusForbidden, err.Error(), "FORBIDDEN")
	default:
		cfg.Logger.Error("playback error", "video", v.Name, "error", err)
		WriteError(w, http.StatusInternalServerError, "playback failed", "INTERNAL_ERROR")
	}
}
