package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/manwarsd/dreamboard/internal/backend"
	"github.com/manwarsd/dreamboard/internal/catalog"
	"github.com/manwarsd/dreamboard/internal/db"
	"github.com/manwarsd/dreamboard/internal/events"
	"github.com/manwarsd/dreamboard/internal/generation"
	"github.com/manwarsd/dreamboard/internal/story"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupRepo(t *testing.T) catalog.Repository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return catalog.NewRepository(database.Conn())
}

// fakeClient answers from canned functions and records the requests.
type fakeClient struct {
	mu         sync.Mutex
	videoReqs  []generation.VideoRequest
	imageReqs  []generation.ImageRequest
	generateFn func(req generation.VideoRequest) ([]generation.VideoResponse, error)
	mergeFn    func(req generation.VideoRequest) (*generation.VideoResponse, error)
	imagesFn   func(req generation.ImageRequest) ([]generation.ImageResponse, error)
	block      chan struct{}
}

func (f *fakeClient) GenerateVideos(ctx context.Context, storyID string, req generation.VideoRequest) ([]generation.VideoResponse, error) {
	f.mu.Lock()
	f.videoReqs = append(f.videoReqs, req)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.generateFn(req)
}

func (f *fakeClient) MergeVideos(ctx context.Context, storyID string, req generation.VideoRequest) (*generation.VideoResponse, error) {
	f.mu.Lock()
	f.videoReqs = append(f.videoReqs, req)
	f.mu.Unlock()
	return f.mergeFn(req)
}

func (f *fakeClient) GenerateImages(ctx context.Context, storyID string, req generation.ImageRequest) ([]generation.ImageResponse, error) {
	f.mu.Lock()
	f.imageReqs = append(f.imageReqs, req)
	f.mu.Unlock()
	return f.imagesFn(req)
}

func (f *fakeClient) UploadFile(ctx context.Context, storyID, kind, filename string, data []byte) (*story.Image, error) {
	return nil, errors.New("not implemented in test")
}

func (f *fakeClient) Probe(ctx context.Context) (*backend.Health, error) {
	return &backend.Health{}, nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.videoReqs) + len(f.imageReqs)
}

// echoVideos answers every segment with one done candidate.
func echoVideos(req generation.VideoRequest) ([]generation.VideoResponse, error) {
	out := []generation.VideoResponse{}
	for _, seg := range req.Segments {
		out = append(out, generation.VideoResponse{
			Done:          true,
			SceneID:       seg.SceneID,
			SegmentNumber: seg.SegmentNumber,
			Videos:        []story.Video{video(seg.SceneID)},
		})
	}
	return out, nil
}

func video(name string) story.Video {
	return story.Video{Name: name + ".mp4", GCSURI: "gs://b/" + name + ".mp4", SignedURI: "https://signed/" + name + ".mp4"}
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func createStory(t *testing.T, repo catalog.Repository, n int, setup func(i int, s *story.Scene)) *story.Story {
	t.Helper()
	st := story.NewStory("test", "")
	for i := 0; i < n; i++ {
		s := story.AddScene(st)
		s.VideoSettings.Prompt = "scene prompt"
		if setup != nil {
			setup(i, s)
		}
	}
	if err := repo.CreateStory(context.Background(), st); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}
	return st
}

func TestBulkGenerate_ThreeSceneScenario(t *testing.T) {
	repo := setupRepo(t)
	client := &fakeClient{generateFn: echoVideos}
	rec := &recorder{}
	orch := New(repo, client, rec, testLogger())

	st := createStory(t, repo, 3, func(i int, s *story.Scene) {
		s.VideoSettings.RegenerateVideo = i != 1
	})

	res, err := orch.BulkGenerate(context.Background(), st.ID)
	if err != nil {
		t.Fatalf("BulkGenerate() error = %v", err)
	}

	req := client.videoReqs[0]
	if len(req.Segments) != 2 || req.Segments[0].SegmentNumber != 1 || req.Segments[1].SegmentNumber != 3 {
		t.Fatalf("segments = %+v, want scenes 1 and 3", req.Segments)
	}

	got, _ := repo.GetStory(context.Background(), st.ID)
	for _, n := range []int{1, 3} {
		s := got.SceneByNumber(n)
		if len(s.VideoSettings.GeneratedVideos) != 1 || s.VideoSettings.Selected == nil {
			t.Errorf("scene %d = %+v, want one selected candidate", n, s.VideoSettings)
		}
	}
	if s2 := got.SceneByNumber(2); len(s2.VideoSettings.GeneratedVideos) != 0 || s2.VideoSettings.Selected != nil {
		t.Errorf("scene 2 changed: %+v", s2.VideoSettings)
	}
	if !strings.Contains(res.Summary.String(), "Scene 2: not processed.") {
		t.Errorf("summary = %q", res.Summary.String())
	}
	if res.Summary.Processed != 2 || res.Summary.Skipped != 1 {
		t.Errorf("summary counts = %+v", res.Summary)
	}

	job, _ := repo.GetJob(context.Background(), res.JobID)
	if job == nil || job.Status != catalog.JobStatusCompleted {
		t.Fatalf("job = %+v, want completed", job)
	}

	types := rec.types()
	if len(types) < 2 || types[0] != events.BatchStarted || types[1] != events.BatchCompleted {
		t.Errorf("events = %v", types)
	}
}

func TestMergeAll_RefusedWithoutSelection(t *testing.T) {
	repo := setupRepo(t)
	client := &fakeClient{}
	orch := New(repo, client, nil, testLogger())

	st := createStory(t, repo, 2, nil)

	_, err := orch.MergeAll(context.Background(), st.ID)
	var verr *generation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("MergeAll() error = %v, want ValidationError", err)
	}
	if verr.Reason != generation.ReasonMissingSelection || len(verr.Scenes) != 2 || verr.Scenes[0] != 1 {
		t.Errorf("error = %+v", verr)
	}
	if client.calls() != 0 {
		t.Errorf("client calls = %d, want 0", client.calls())
	}
	jobs, _ := repo.ListStoryJobs(context.Background(), st.ID, 10)
	if len(jobs) != 0 {
		t.Errorf("jobs = %d, want 0 for a refused batch", len(jobs))
	}
}

func TestMergeAll_ReplacesFinalVideo(t *testing.T) {
	repo := setupRepo(t)
	final := video("final")
	client := &fakeClient{mergeFn: func(req generation.VideoRequest) (*generation.VideoResponse, error) {
		if req.CreativeDirection == nil || len(req.CreativeDirection.Transitions) != 1 {
			t.Errorf("creative direction = %+v", req.CreativeDirection)
		}
		return &generation.VideoResponse{Done: true, Videos: []story.Video{final}}, nil
	}}
	orch := New(repo, client, nil, testLogger())

	st := createStory(t, repo, 2, func(i int, s *story.Scene) {
		s.VideoSelection().Append(video(s.ID))
	})
	repo.UpdateStory(context.Background(), st.ID, func(s *story.Story) error {
		s.FinalVideos = []story.Video{video("old")}
		return nil
	})

	res, err := orch.MergeAll(context.Background(), st.ID)
	if err != nil {
		t.Fatalf("MergeAll() error = %v", err)
	}
	if res.FinalVideo == nil || res.FinalVideo.Name != "final.mp4" {
		t.Fatalf("FinalVideo = %+v", res.FinalVideo)
	}
	got, _ := repo.GetStory(context.Background(), st.ID)
	if len(got.FinalVideos) != 1 || got.FinalVideos[0].Name != "final.mp4" {
		t.Errorf("FinalVideos = %+v", got.FinalVideos)
	}
}

func TestMergeAll_NotDoneLeavesStory(t *testing.T) {
	repo := setupRepo(t)
	client := &fakeClient{mergeFn: func(req generation.VideoRequest) (*generation.VideoResponse, error) {
		return &generation.VideoResponse{Done: false, ExecutionMessage: "ffmpeg exploded"}, nil
	}}
	orch := New(repo, client, nil, testLogger())

	st := createStory(t, repo, 1, func(i int, s *story.Scene) {
		s.VideoSelection().Append(video(s.ID))
	})

	_, err := orch.MergeAll(context.Background(), st.ID)
	var merr *generation.MergeError
	if !errors.As(err, &merr) || merr.Message != "ffmpeg exploded" {
		t.Fatalf("MergeAll() error = %v, want MergeError", err)
	}
	got, _ := repo.GetStory(context.Background(), st.ID)
	if len(got.FinalVideos) != 0 {
		t.Errorf("FinalVideos = %+v, want none", got.FinalVideos)
	}
	jobs, _ := repo.ListStoryJobs(context.Background(), st.ID, 10)
	if len(jobs) != 1 || jobs[0].Status != catalog.JobStatusFailed || jobs[0].Error != "merge failed: ffmpeg exploded" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestBulkGenerate_TransportFailure(t *testing.T) {
	repo := setupRepo(t)
	client := &fakeClient{generateFn: func(req generation.VideoRequest) ([]generation.VideoResponse, error) {
		return nil, &backend.Error{Op: "generate videos", StatusCode: 500, Detail: "quota exceeded"}
	}}
	rec := &recorder{}
	orch := New(repo, client, rec, testLogger())

	st := createStory(t, repo, 2, func(i int, s *story.Scene) {
		s.VideoSettings.RegenerateVideo = true
	})

	_, err := orch.BulkGenerate(context.Background(), st.ID)
	var be *backend.Error
	if !errors.As(err, &be) {
		t.Fatalf("BulkGenerate() error = %v, want backend error", err)
	}
	if UserMessage(err) != "quota exceeded" {
		t.Errorf("UserMessage() = %q", UserMessage(err))
	}

	got, _ := repo.GetStory(context.Background(), st.ID)
	for _, s := range got.Scenes {
		if len(s.VideoSettings.GeneratedVideos) != 0 {
			t.Errorf("scene %d reconciled after transport failure", s.Number)
		}
	}
	types := rec.types()
	if types[len(types)-1] != events.BatchFailed {
		t.Errorf("events = %v, want batch.failed last", types)
	}
}

func TestBulkGenerate_RejectsSecondBatch(t *testing.T) {
	repo := setupRepo(t)
	client := &fakeClient{generateFn: echoVideos, block: make(chan struct{})}
	orch := New(repo, client, nil, testLogger())

	st := createStory(t, repo, 1, func(i int, s *story.Scene) {
		s.VideoSettings.RegenerateVideo = true
		s.ImageSettings.Prompt = "a cat"
	})

	done := make(chan error, 1)
	go func() {
		_, err := orch.BulkGenerate(context.Background(), st.ID)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := orch.InFlight(st.ID); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first batch never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := orch.GenerateImages(context.Background(), st.ID); !errors.Is(err, ErrBatchInFlight) {
		t.Fatalf("GenerateImages() error = %v, want ErrBatchInFlight", err)
	}
	if _, err := orch.Submit(context.Background(), st.ID, ActionGenerate); !errors.Is(err, ErrBatchInFlight) {
		t.Fatalf("Submit() error = %v, want ErrBatchInFlight", err)
	}

	close(client.block)
	if err := <-done; err != nil {
		t.Fatalf("first batch error = %v", err)
	}
	if _, ok := orch.InFlight(st.ID); ok {
		t.Fatal("story still in flight after completion")
	}
}

func TestBulkGenerate_ReconcilesAgainstCurrentStory(t *testing.T) {
	repo := setupRepo(t)
	var st *story.Story
	client := &fakeClient{generateFn: func(req generation.VideoRequest) ([]generation.VideoResponse, error) {
		// The user removes scene 1 while the batch is outstanding.
		repo.UpdateStory(context.Background(), st.ID, func(s *story.Story) error {
			story.RemoveScene(s, s.Scenes[0].ID)
			return nil
		})
		return echoVideos(req)
	}}
	orch := New(repo, client, nil, testLogger())

	st = createStory(t, repo, 2, func(i int, s *story.Scene) {
		s.VideoSettings.RegenerateVideo = true
	})

	res, err := orch.BulkGenerate(context.Background(), st.ID)
	if err != nil {
		t.Fatalf("BulkGenerate() error = %v", err)
	}
	got, _ := repo.GetStory(context.Background(), st.ID)
	if len(got.Scenes) != 1 {
		t.Fatalf("len(Scenes) = %d, want 1", len(got.Scenes))
	}
	// The surviving scene is now number 1, so its old key no longer matches.
	if len(got.Scenes[0].VideoSettings.GeneratedVideos) != 0 {
		t.Errorf("renumbered scene received a stale result")
	}
	if res.Summary.Orphans != 2 {
		t.Errorf("Orphans = %d, want 2", res.Summary.Orphans)
	}
}

func TestGenerateImages(t *testing.T) {
	repo := setupRepo(t)
	client := &fakeClient{imagesFn: func(req generation.ImageRequest) ([]generation.ImageResponse, error) {
		out := []generation.ImageResponse{}
		for _, sc := range req.Scenes {
			out = append(out, generation.ImageResponse{
				Done: true, SceneIDs: "171", SegmentNumber: sc.SceneNum,
				Images: []story.Image{{Name: "img", SignedURI: "https://img/" + sc.SceneID}},
			})
		}
		return out, nil
	}}
	orch := New(repo, client, nil, testLogger())

	st := createStory(t, repo, 2, func(i int, s *story.Scene) {
		if i == 0 {
			s.ImageSettings.Prompt = "a cat"
		}
	})

	res, err := orch.GenerateImages(context.Background(), st.ID)
	if err != nil {
		t.Fatalf("GenerateImages() error = %v", err)
	}
	if len(client.imageReqs[0].Scenes) != 1 {
		t.Fatalf("image scenes = %d, want 1", len(client.imageReqs[0].Scenes))
	}
	if res.Summary.Processed != 1 || res.Summary.Skipped != 1 {
		t.Errorf("summary = %+v", res.Summary)
	}
	got, _ := repo.GetStory(context.Background(), st.ID)
	if got.Scenes[0].SeedImage() == nil {
		t.Error("scene 1 should have a seed image")
	}
}

func TestRun_UnknownStoryAndAction(t *testing.T) {
	repo := setupRepo(t)
	orch := New(repo, &fakeClient{}, nil, testLogger())

	if _, err := orch.BulkGenerate(context.Background(), "missing"); !errors.Is(err, catalog.ErrStoryNotFound) {
		t.Fatalf("BulkGenerate(missing) error = %v, want ErrStoryNotFound", err)
	}
	if _, err := orch.Run(context.Background(), "x", "render"); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("Run(render) error = %v, want ErrUnknownAction", err)
	}
}
