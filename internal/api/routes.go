package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/manwarsd/dreamboard/internal/backend"
	"github.com/manwarsd/dreamboard/internal/catalog"
	"github.com/manwarsd/dreamboard/internal/config"
	"github.com/manwarsd/dreamboard/internal/generation"
	"github.com/manwarsd/dreamboard/internal/orchestrator"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist(cfg.AllowedOrigins))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/stories", listStoriesHandler(cfg))
		r.Post("/stories", createStoryHandler(cfg))
		r.Route("/stories/{id}", func(r chi.Router) {
			r.Get("/", getStoryHandler(cfg))
			r.Patch("/", updateStoryHandler(cfg))
			r.Delete("/", deleteStoryHandler(cfg))

			r.Post("/scenes", addSceneHandler(cfg))
			r.Patch("/scenes/{sceneID}", updateSceneHandler(cfg))
			r.Delete("/scenes/{sceneID}", removeSceneHandler(cfg))
			r.Post("/scenes/{sceneID}/move", moveSceneHandler(cfg))
			r.Post("/scenes/{sceneID}/selection/{track}", selectHandler(cfg))

			r.Get("/validation", validationHandler(cfg))
			r.Post("/generate", batchHandler(cfg, orchestrator.ActionGenerate))
			r.Post("/images", batchHandler(cfg, orchestrator.ActionImages))
			r.Post("/merge", batchHandler(cfg, orchestrator.ActionMerge))

			r.Post("/uploads/{kind}", uploadHandler(cfg))
			r.Get("/export.edl", exportEDLHandler(cfg))
			r.Get("/scenes/{sceneID}/video", scenePlaybackHandler(cfg))
			r.Get("/final/video", finalPlaybackHandler(cfg))
			r.Get("/jobs", listStoryJobsHandler(cfg))
			r.Get("/events", eventsHandler(cfg))
		})

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: uptime,
			AgentID: cfg.AgentID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		storiesCount, _ := cfg.Stories.CountStories(ctx)
		jobs, _ := cfg.Repository.ListJobs(ctx, 20)

		state := "idle"
		var activeJob *JobResponse
		jobsRunning, jobsQueued := 0, 0
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobs {
			switch j.Status {
			case catalog.JobStatusRunning:
				state = "busy"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			case catalog.JobStatusPending:
				jobsQueued++
			case catalog.JobStatusFailed:
				if lastError == "" {
					lastError = j.Error
				}
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:        state,
			LastError:    lastError,
			StoriesCount: storiesCount,
			JobsRunning:  jobsRunning,
			JobsQueued:   jobsQueued,
			ActiveJob:    activeJob,
		}

		if cfg.Health != nil {
			h, err := cfg.Health.Get(ctx)
			if err == nil && h != nil {
				resp.Backend = &BackendStatusResponse{
					Stub:        cfg.StubBackend,
					VideoOK:     h.Video.OK,
					ImageOK:     h.Image.OK,
					VideoError:  h.Video.Error,
					ImageError:  h.Image.Error,
					LastProbeAt: h.ProbedAt.Format(time.RFC3339),
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Repository.ListJobs(r.Context(), queryLimit(r, 50))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, jobsToResponse(jobs))
	}
}

func listStoryJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Repository.ListStoryJobs(r.Context(), chi.URLParam(r, "id"), queryLimit(r, 50))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, jobsToResponse(jobs))
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func jobsToResponse(jobs []*catalog.Job) JobsResponse {
	resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
	for i, j := range jobs {
		resp.Jobs[i] = JobToResponse(j)
	}
	return resp
}

func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 || n > 500 {
		return def
	}
	return n
}

// writeDomainError maps service and orchestrator errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *generation.ValidationError
	var berr *backend.Error
	var merr *generation.MergeError

	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  verr.Error(),
			Code:   "VALIDATION_FAILED",
			Scenes: verr.Scenes,
		})
	case errors.Is(err, orchestrator.ErrBatchInFlight):
		WriteError(w, http.StatusConflict, err.Error(), "BATCH_IN_FLIGHT")
	case errors.Is(err, catalog.ErrStoryNotFound), errors.Is(err, catalog.ErrSceneNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, catalog.ErrInvalidInput), errors.Is(err, orchestrator.ErrUnknownAction):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.As(err, &berr):
		WriteError(w, http.StatusBadGateway, berr.UserMessage(), "BACKEND_ERROR")
	case errors.As(err, &merr), errors.Is(err, generation.ErrEmptyMerge):
		WriteError(w, http.StatusBadGateway, err.Error(), "MERGE_FAILED")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
