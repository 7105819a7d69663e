package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/manwarsd/dreamboard/internal/generation"
	"github.com/manwarsd/dreamboard/internal/orchestrator"
)

func validationHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := cfg.Stories.GetStory(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ValidationToResponse(st))
	}
}

// batchHandler queues a batch for the runner, or with ?wait=true runs it
// inside the request and returns the per-scene summary.
func batchHandler(cfg ServerConfig, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storyID := chi.URLParam(r, "id")

		if r.URL.Query().Get("wait") == "true" {
			res, err := cfg.Orchestrator.Run(r.Context(), storyID, action)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			WriteJSON(w, http.StatusOK, ResultToResponse(res))
			return
		}

		job, err := cfg.Orchestrator.Submit(r.Context(), storyID, action)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if cfg.Runner != nil {
			cfg.Runner.Notify()
		}
		WriteJSON(w, http.StatusAccepted, JobAcceptedResponse{JobID: job.ID, Status: job.Status})
	}
}

func ResultToResponse(res *orchestrator.Result) BatchResponse {
	scenes := res.Summary.Scenes
	if scenes == nil {
		scenes = []generation.SceneOutcome{}
	}
	return BatchResponse{
		JobID:      res.JobID,
		Action:     res.Action,
		Messages:   summaryMessages(res),
		Scenes:     scenes,
		Processed:  res.Summary.Processed,
		Failed:     res.Summary.Failed,
		Skipped:    res.Summary.Skipped,
		FinalVideo: res.FinalVideo,
	}
}

func summaryMessages(res *orchestrator.Result) []string {
	msgs := make([]string, 0, len(res.Summary.Scenes)+1)
	for _, o := range res.Summary.Scenes {
		msgs = append(msgs, o.Message)
	}
	if res.FinalVideo != nil {
		msgs = append(msgs, "Final video: "+res.FinalVideo.Name)
	}
	return msgs
}
