package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/manwarsd/dreamboard/internal/catalog"
)

// Runner executes queued batch jobs one at a time.
type Runner struct {
	orch         *Orchestrator
	repo         catalog.Repository
	logger       *slog.Logger
	pollInterval time.Duration
	wake         chan struct{}
	running      atomic.Bool
	paused       atomic.Bool
	busy         atomic.Bool
}

func NewRunner(orch *Orchestrator, repo catalog.Repository, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		orch:         orch,
		repo:         repo,
		logger:       logger,
		pollInterval: 5 * time.Second,
		wake:         make(chan struct{}, 1),
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
		case <-r.wake:
		}
		if !r.paused.Load() {
			r.processNextJob(ctx)
		}
	}
}

// Notify makes the runner look for work now instead of at the next tick.
func (r *Runner) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
	r.Notify()
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// IsBusy reports whether a job is executing right now.
func (r *Runner) IsBusy() bool {
	return r.busy.Load()
}

func (r *Runner) processNextJob(ctx context.Context) {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		r.logger.Info("processing job", "job_id", job.ID, "type", job.Type, "story_id", job.StoryID)

		r.busy.Store(true)
		_, err := r.orch.ExecuteJob(ctx, job)
		r.busy.Store(false)

		if errors.Is(err, ErrBatchInFlight) {
			// The story is busy with a synchronous batch; try the next one.
			continue
		}
		if err != nil {
			r.logger.Warn("job failed", "job_id", job.ID, "error", err)
		}
		return
	}
}

// ActiveJobCount returns the number of queued or running jobs.
func (r *Runner) ActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Active() {
			count++
		}
	}
	return count
}
