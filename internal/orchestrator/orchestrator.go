// Package orchestrator runs batch generation and merge round trips for a
// story: validate, build, send, reconcile, persist and notify.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/manwarsd/dreamboard/internal/backend"
	"github.com/manwarsd/dreamboard/internal/catalog"
	"github.com/manwarsd/dreamboard/internal/events"
	"github.com/manwarsd/dreamboard/internal/generation"
	"github.com/manwarsd/dreamboard/internal/logging"
	"github.com/manwarsd/dreamboard/internal/story"
)

// Batch actions. They double as job types.
const (
	ActionGenerate = catalog.JobTypeGenerate
	ActionImages   = catalog.JobTypeImages
	ActionMerge    = catalog.JobTypeMerge
)

var (
	// ErrBatchInFlight is returned when a story already has an outstanding
	// batch. Batches for one story never overlap.
	ErrBatchInFlight = errors.New("a batch is already in flight for this story")
	ErrUnknownAction = errors.New("unknown batch action")
)

// Result is the outcome of one completed batch.
type Result struct {
	JobID      string             `json:"job_id"`
	StoryID    string             `json:"story_id"`
	Action     string             `json:"action"`
	Summary    generation.Summary `json:"summary"`
	FinalVideo *story.Video       `json:"final_video,omitempty"`
	Story      *story.Story       `json:"-"`
}

type Orchestrator struct {
	repo   catalog.Repository
	client backend.Client
	events events.Publisher
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]string
}

func New(repo catalog.Repository, client backend.Client, publisher events.Publisher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		repo:     repo,
		client:   client,
		events:   publisher,
		logger:   logger,
		inflight: make(map[string]string),
	}
}

// BulkGenerate sends every scene flagged for regeneration to the video
// service and appends the returned candidates.
func (o *Orchestrator) BulkGenerate(ctx context.Context, storyID string) (*Result, error) {
	return o.Run(ctx, storyID, ActionGenerate)
}

// GenerateImages sends every scene with an image prompt to the image service.
func (o *Orchestrator) GenerateImages(ctx context.Context, storyID string) (*Result, error) {
	return o.Run(ctx, storyID, ActionImages)
}

// MergeAll asks the video service to assemble the selected videos of every
// included scene and stores the result as the story's final video.
func (o *Orchestrator) MergeAll(ctx context.Context, storyID string) (*Result, error) {
	return o.Run(ctx, storyID, ActionMerge)
}

// Run executes a batch synchronously. Validation failures are returned as
// *generation.ValidationError before anything is sent.
func (o *Orchestrator) Run(ctx context.Context, storyID, action string) (*Result, error) {
	if err := checkAction(action); err != nil {
		return nil, err
	}
	if !o.acquire(storyID, action) {
		return nil, ErrBatchInFlight
	}
	defer o.release(storyID)

	if err := o.checkNoActiveJob(ctx, storyID); err != nil {
		return nil, err
	}
	st, err := o.load(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if err := Check(action, st); err != nil {
		return nil, err
	}

	job := newJob(storyID, action, catalog.JobStatusRunning)
	if err := o.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return o.execute(ctx, job, st)
}

// Submit validates a batch and queues it for the Runner.
func (o *Orchestrator) Submit(ctx context.Context, storyID, action string) (*catalog.Job, error) {
	if err := checkAction(action); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inflight[storyID]; busy {
		return nil, ErrBatchInFlight
	}
	if err := o.checkNoActiveJob(ctx, storyID); err != nil {
		return nil, err
	}
	st, err := o.load(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if err := Check(action, st); err != nil {
		return nil, err
	}

	job := newJob(storyID, action, catalog.JobStatusPending)
	if err := o.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	o.logger.Info("batch queued", "job_id", job.ID, "story_id", storyID, "action", action)
	return job, nil
}

// ExecuteJob runs a queued job. The job is re-validated against the story
// as it is now.
func (o *Orchestrator) ExecuteJob(ctx context.Context, job *catalog.Job) (*Result, error) {
	if err := checkAction(job.Type); err != nil {
		o.failJob(ctx, job, err)
		return nil, err
	}
	if !o.acquire(job.StoryID, job.Type) {
		return nil, ErrBatchInFlight
	}
	defer o.release(job.StoryID)

	if err := o.repo.UpdateJobStatus(ctx, job.ID, catalog.JobStatusRunning, ""); err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}
	job.Status = catalog.JobStatusRunning

	st, err := o.load(ctx, job.StoryID)
	if err == nil {
		err = Check(job.Type, st)
	}
	if err != nil {
		o.failJob(ctx, job, err)
		return nil, err
	}
	return o.execute(ctx, job, st)
}

// InFlight reports the action outstanding for a story, if any.
func (o *Orchestrator) InFlight(storyID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	action, ok := o.inflight[storyID]
	return action, ok
}

func (o *Orchestrator) execute(ctx context.Context, job *catalog.Job, st *story.Story) (*Result, error) {
	logger := logging.WithStoryID(logging.WithJobID(o.logger, job.ID), job.StoryID).With("action", job.Type)
	logger.Info("batch started", "scenes", len(st.Scenes))
	o.publish(events.BatchStarted, job, "")

	start := time.Now()
	var res *Result
	var err error
	switch job.Type {
	case ActionGenerate:
		res, err = o.generateVideos(ctx, st)
	case ActionImages:
		res, err = o.generateImages(ctx, st)
	case ActionMerge:
		res, err = o.merge(ctx, st)
	}
	if err != nil {
		logger.Error("batch failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		o.failJob(ctx, job, err)
		return nil, err
	}

	res.JobID = job.ID
	res.StoryID = job.StoryID
	res.Action = job.Type

	summary := res.Summary.String()
	if res.FinalVideo != nil {
		summary = "Final video: " + res.FinalVideo.Name
	}
	if err := o.repo.CompleteJob(context.WithoutCancel(ctx), job.ID, summary); err != nil {
		logger.Error("failed to complete job", "error", err)
	}

	logger.Info("batch completed",
		"processed", res.Summary.Processed,
		"failed", res.Summary.Failed,
		"skipped", res.Summary.Skipped,
		"duplicates", res.Summary.Duplicates,
		"orphans", res.Summary.Orphans,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	o.publish(events.BatchCompleted, job, summary)
	o.publishStory(job.StoryID, job.Type+" applied")
	return res, nil
}

func (o *Orchestrator) generateVideos(ctx context.Context, st *story.Story) (*Result, error) {
	req := generation.BuildVideoRequest(generation.ActionGenerate, st)
	responses, err := o.client.GenerateVideos(ctx, st.ID, req)
	if err != nil {
		return nil, err
	}

	var sum generation.Summary
	updated, err := o.repo.UpdateStory(ctx, st.ID, func(cur *story.Story) error {
		sum = generation.ReconcileVideos(cur, responses)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save generated videos: %w", err)
	}
	return &Result{Summary: sum, Story: updated}, nil
}

func (o *Orchestrator) generateImages(ctx context.Context, st *story.Story) (*Result, error) {
	req := generation.BuildImageRequest(st)
	responses, err := o.client.GenerateImages(ctx, st.ID, req)
	if err != nil {
		return nil, err
	}

	var sum generation.Summary
	updated, err := o.repo.UpdateStory(ctx, st.ID, func(cur *story.Story) error {
		sum = generation.ReconcileImages(cur, req.Scenes, responses)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save generated images: %w", err)
	}
	return &Result{Summary: sum, Story: updated}, nil
}

func (o *Orchestrator) merge(ctx context.Context, st *story.Story) (*Result, error) {
	req := generation.BuildVideoRequest(generation.ActionMerge, st)
	resp, err := o.client.MergeVideos(ctx, st.ID, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, generation.ErrEmptyMerge
	}

	updated, err := o.repo.UpdateStory(ctx, st.ID, func(cur *story.Story) error {
		return generation.ApplyMerge(cur, *resp)
	})
	if err != nil {
		return nil, err
	}
	return &Result{Summary: generation.Summary{Scenes: []generation.SceneOutcome{}}, FinalVideo: updated.FinalVideo(), Story: updated}, nil
}

func (o *Orchestrator) acquire(storyID, action string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[storyID]; busy {
		return false
	}
	o.inflight[storyID] = action
	return true
}

func (o *Orchestrator) release(storyID string) {
	o.mu.Lock()
	delete(o.inflight, storyID)
	o.mu.Unlock()
}

func (o *Orchestrator) checkNoActiveJob(ctx context.Context, storyID string) error {
	active, err := o.repo.ActiveJob(ctx, storyID)
	if err != nil {
		return fmt.Errorf("check active job: %w", err)
	}
	if active != nil {
		return ErrBatchInFlight
	}
	return nil
}

func (o *Orchestrator) load(ctx context.Context, storyID string) (*story.Story, error) {
	st, err := o.repo.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, catalog.ErrStoryNotFound
	}
	return st, nil
}

func (o *Orchestrator) failJob(ctx context.Context, job *catalog.Job, err error) {
	msg := UserMessage(err)
	if uerr := o.repo.UpdateJobStatus(context.WithoutCancel(ctx), job.ID, catalog.JobStatusFailed, msg); uerr != nil {
		o.logger.Error("failed to mark job failed", "job_id", job.ID, "error", uerr)
	}
	o.publish(events.BatchFailed, job, msg)
}

func (o *Orchestrator) publish(t events.Type, job *catalog.Job, msg string) {
	if o.events == nil {
		return
	}
	o.events.Publish(events.Event{Type: t, StoryID: job.StoryID, JobID: job.ID, Action: job.Type, Message: msg})
}

func (o *Orchestrator) publishStory(storyID, msg string) {
	if o.events == nil {
		return
	}
	o.events.Publish(events.Event{Type: events.StoryUpdated, StoryID: storyID, Message: msg})
}

// Check runs the pre-flight validation of action against st.
func Check(action string, st *story.Story) error {
	switch action {
	case ActionGenerate:
		return generation.Validate(st).CheckGenerate()
	case ActionMerge:
		return generation.Validate(st).CheckMerge()
	case ActionImages:
		return generation.ValidateImages(st).Check()
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// UserMessage renders err the way it is shown to the user.
func UserMessage(err error) string {
	var be *backend.Error
	if errors.As(err, &be) {
		return be.UserMessage()
	}
	return err.Error()
}

func checkAction(action string) error {
	switch action {
	case ActionGenerate, ActionImages, ActionMerge:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

func newJob(storyID, action, status string) *catalog.Job {
	now := time.Now().UTC()
	return &catalog.Job{
		ID:        catalog.NewID(),
		Type:      action,
		Status:    status,
		StoryID:   storyID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
