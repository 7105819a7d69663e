package api

import (
	"time"

	"github.com/manwarsd/dreamboard/internal/catalog"
	"github.com/manwarsd/dreamboard/internal/generation"
	"github.com/manwarsd/dreamboard/internal/story"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	AgentID string `json:"agent_id"`
}

type StatusResponse struct {
	State        string                 `json:"state"`
	LastError    string                 `json:"last_error,omitempty"`
	StoriesCount int                    `json:"stories_count"`
	JobsRunning  int                    `json:"jobs_running"`
	JobsQueued   int                    `json:"jobs_queued"`
	ActiveJob    *JobResponse           `json:"active_job,omitempty"`
	Backend      *BackendStatusResponse `json:"backend,omitempty"`
}

type BackendStatusResponse struct {
	Stub        bool   `json:"stub"`
	VideoOK     bool   `json:"video_ok"`
	ImageOK     bool   `json:"image_ok"`
	VideoError  string `json:"video_error,omitempty"`
	ImageError  string `json:"image_error,omitempty"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type CreateStoryRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type UpdateStoryRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type StoryResponse struct {
	Story      *story.Story      `json:"story"`
	Validation generation.Report `json:"validation"`
}

type StoriesResponse struct {
	Stories []StorySummaryResponse `json:"stories"`
}

type StorySummaryResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	SceneCount    int    `json:"scene_count"`
	HasFinalVideo bool   `json:"has_final_video"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type SceneResponse struct {
	Scene *story.Scene `json:"scene"`
}

type MoveSceneRequest struct {
	Number int `json:"number"`
}

type SelectionRequest struct {
	Op  string `json:"op"`
	Key string `json:"key,omitempty"`
}

type ValidationResponse struct {
	Video             generation.Report      `json:"video"`
	Images            generation.ImageReport `json:"images"`
	CanGenerate       bool                   `json:"can_generate"`
	CanMerge          bool                   `json:"can_merge"`
	CanGenerateImages bool                   `json:"can_generate_images"`
	Problems          []string               `json:"problems"`
}

type JobAcceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type BatchResponse struct {
	JobID      string                    `json:"job_id"`
	Action     string                    `json:"action"`
	Messages   []string                  `json:"messages"`
	Scenes     []generation.SceneOutcome `json:"scenes"`
	Processed  int                       `json:"processed"`
	Failed     int                       `json:"failed"`
	Skipped    int                       `json:"skipped"`
	FinalVideo *story.Video              `json:"final_video,omitempty"`
}

type UploadResponse struct {
	Image story.Image  `json:"image"`
	Scene *story.Scene `json:"scene"`
}

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	StoryID   string `json:"story_id"`
	Summary   string `json:"summary,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Scenes []int  `json:"scenes,omitempty"`
}

func StoryToResponse(st *story.Story) StoryResponse {
	return StoryResponse{Story: st, Validation: generation.Validate(st)}
}

func StoryInfoToResponse(info *catalog.StoryInfo) StorySummaryResponse {
	return StorySummaryResponse{
		ID:            info.ID,
		Title:         info.Title,
		Description:   info.Description,
		SceneCount:    info.SceneCount,
		HasFinalVideo: info.HasFinalVideo,
		CreatedAt:     info.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     info.UpdatedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *catalog.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		StoryID:   j.StoryID,
		Summary:   j.Summary,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}

func ValidationToResponse(st *story.Story) ValidationResponse {
	resp := ValidationResponse{
		Video:    generation.Validate(st),
		Images:   generation.ValidateImages(st),
		Problems: []string{},
	}
	if err := resp.Video.CheckGenerate(); err != nil {
		resp.Problems = append(resp.Problems, err.Error())
	} else {
		resp.CanGenerate = true
	}
	if err := resp.Video.CheckMerge(); err != nil {
		resp.Problems = append(resp.Problems, err.Error())
	} else {
		resp.CanMerge = true
	}
	if err := resp.Images.Check(); err != nil {
		resp.Problems = append(resp.Problems, err.Error())
	} else {
		resp.CanGenerateImages = true
	}
	return resp
}
