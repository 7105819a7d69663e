package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/manwarsd/dreamboard/internal/catalog"
)

func listStoriesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := cfg.Stories.ListStories(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list stories", "INTERNAL_ERROR")
			return
		}

		resp := StoriesResponse{Stories: make([]StorySummaryResponse, len(infos))}
		for i, info := range infos {
			resp.Stories[i] = StoryInfoToResponse(info)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createStoryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateStoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		st, err := cfg.Stories.CreateStory(r.Context(), req.Title, req.Description)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, StoryToResponse(st))
	}
}

func getStoryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := cfg.Stories.GetStory(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, StoryToResponse(st))
	}
}

func updateStoryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateStoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		st, err := cfg.Stories.UpdateStory(r.Context(), chi.URLParam(r, "id"), req.Title, req.Description)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, StoryToResponse(st))
	}
}

func deleteStoryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, busy := cfg.Orchestrator.InFlight(id); busy {
			WriteError(w, http.StatusConflict, "a batch is running for this story", "BATCH_IN_FLIGHT")
			return
		}
		if err := cfg.Stories.DeleteStory(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch catalog.ScenePatch
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
				return
			}
		}

		sc, err := cfg.Stories.AddScene(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, SceneResponse{Scene: sc})
	}
}

func updateSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch catalog.ScenePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sc, err := cfg.Stories.UpdateScene(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sceneID"), patch)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SceneResponse{Scene: sc})
	}
}

func removeSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := cfg.Stories.RemoveScene(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sceneID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, StoryToResponse(st))
	}
}

func moveSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoveSceneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		st, err := cfg.Stories.MoveScene(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sceneID"), req.Number)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, StoryToResponse(st))
	}
}

func selectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		track := catalog.Track(chi.URLParam(r, "track"))
		sc, err := cfg.Stories.Select(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sceneID"), track, catalog.SelectOp(req.Op), req.Key)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SceneResponse{Scene: sc})
	}
}
