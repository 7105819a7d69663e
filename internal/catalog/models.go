// Package catalog persists stories and batch jobs and implements the story
// editing operations exposed over the API and CLI.
package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	JobTypeGenerate = "generate"
	JobTypeImages   = "images"
	JobTypeMerge    = "merge"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

var (
	ErrStoryNotFound = errors.New("story not found")
	ErrSceneNotFound = errors.New("scene not found")
	ErrInvalidInput  = errors.New("invalid input")
)

// Job records one batch round trip against the generation services.
type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	StoryID   string    `json:"story_id"`
	Summary   string    `json:"summary,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the job has not settled yet.
func (j *Job) Active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// StoryInfo is the listing view of a story.
type StoryInfo struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	SceneCount    int       `json:"scene_count"`
	HasFinalVideo bool      `json:"has_final_video"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewID() string {
	return uuid.NewString()
}
