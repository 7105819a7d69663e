package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/manwarsd/dreamboard/internal/db"
	"github.com/manwarsd/dreamboard/internal/events"
	"github.com/manwarsd/dreamboard/internal/story"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return database, NewRepository(database.Conn())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func ptr[T any](v T) *T { return &v }

func newStoryWithScenes(t *testing.T, svc *Service, n int) *story.Story {
	t.Helper()
	ctx := context.Background()
	st, err := svc.CreateStory(ctx, "Story", "desc")
	if err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}
	for i := 0; i < n; i++ {
		if _, err := svc.AddScene(ctx, st.ID, ScenePatch{VideoPrompt: ptr("prompt")}); err != nil {
			t.Fatalf("AddScene() error = %v", err)
		}
	}
	st, err = svc.GetStory(ctx, st.ID)
	if err != nil {
		t.Fatalf("GetStory() error = %v", err)
	}
	return st
}

func TestService_CreateStory(t *testing.T) {
	_, repo := setupTestDB(t)
	pub := &recordingPublisher{}
	svc := NewService(repo, pub, nil)

	st, err := svc.CreateStory(context.Background(), "  My Story ", "about things")
	if err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}
	if st.ID == "" || st.Title != "My Story" {
		t.Fatalf("story = %+v", st)
	}
	if pub.count() != 1 {
		t.Fatalf("events = %d, want 1", pub.count())
	}

	if _, err := svc.CreateStory(context.Background(), " ", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("CreateStory(blank) error = %v, want ErrInvalidInput", err)
	}
}

func TestService_GetStory_NotFound(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)

	if _, err := svc.GetStory(context.Background(), "missing"); !errors.Is(err, ErrStoryNotFound) {
		t.Fatalf("GetStory() error = %v, want ErrStoryNotFound", err)
	}
}

func TestService_AddAndUpdateScene(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	st := newStoryWithScenes(t, svc, 2)
	ctx := context.Background()

	sc, err := svc.UpdateScene(ctx, st.ID, st.Scenes[1].ID, ScenePatch{
		VideoPrompt:     ptr("a dragon"),
		Transition:      ptr("x_fade"),
		RegenerateVideo: ptr(true),
	})
	if err != nil {
		t.Fatalf("UpdateScene() error = %v", err)
	}
	if sc.Number != 2 || sc.VideoSettings.Prompt != "a dragon" || sc.VideoSettings.Transition != story.TransitionXFade {
		t.Fatalf("scene = %+v", sc.VideoSettings)
	}

	reloaded, _ := svc.GetStory(ctx, st.ID)
	if !reloaded.Scenes[1].VideoSettings.RegenerateVideo {
		t.Fatal("RegenerateVideo not persisted")
	}

	_, err = svc.UpdateScene(ctx, st.ID, st.Scenes[1].ID, ScenePatch{Transition: ptr("spin")})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("UpdateScene(bad transition) error = %v, want ErrInvalidInput", err)
	}
	_, err = svc.UpdateScene(ctx, st.ID, "missing", ScenePatch{})
	if !errors.Is(err, ErrSceneNotFound) {
		t.Fatalf("UpdateScene(missing) error = %v, want ErrSceneNotFound", err)
	}
}

func TestService_RemoveScene_Renumbers(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	st := newStoryWithScenes(t, svc, 3)

	got, err := svc.RemoveScene(context.Background(), st.ID, st.Scenes[0].ID)
	if err != nil {
		t.Fatalf("RemoveScene() error = %v", err)
	}
	if len(got.Scenes) != 2 {
		t.Fatalf("len(Scenes) = %d, want 2", len(got.Scenes))
	}
	for i, s := range got.Scenes {
		if s.Number != i+1 {
			t.Fatalf("Scenes[%d].Number = %d, want %d", i, s.Number, i+1)
		}
	}
}

func TestService_RemoveLastScene_ResetsStory(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	st := newStoryWithScenes(t, svc, 1)
	ctx := context.Background()

	repo.UpdateStory(ctx, st.ID, func(s *story.Story) error {
		s.FinalVideos = []story.Video{{Name: "final"}}
		return nil
	})

	got, err := svc.RemoveScene(ctx, st.ID, st.Scenes[0].ID)
	if err != nil {
		t.Fatalf("RemoveScene() error = %v", err)
	}
	if got.ID != st.ID {
		t.Fatalf("ID = %s, want %s", got.ID, st.ID)
	}
	if len(got.Scenes) != 0 || len(got.FinalVideos) != 0 {
		t.Fatalf("reset story = %+v, want empty", got)
	}
}

func TestService_Select(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	st := newStoryWithScenes(t, svc, 1)
	ctx := context.Background()
	sceneID := st.Scenes[0].ID

	repo.UpdateStory(ctx, st.ID, func(s *story.Story) error {
		s.Scenes[0].VideoSelection().Append(
			story.Video{Name: "a", SignedURI: "https://a"},
			story.Video{Name: "b", SignedURI: "https://b"},
		)
		return nil
	})

	sc, err := svc.Select(ctx, st.ID, sceneID, TrackVideo, SelectNext, "")
	if err != nil {
		t.Fatalf("Select(next) error = %v", err)
	}
	if sc.VideoSettings.Selected.Name != "b" {
		t.Fatalf("Selected = %s, want b", sc.VideoSettings.Selected.Name)
	}

	sc, _ = svc.Select(ctx, st.ID, sceneID, TrackVideo, SelectKey, "https://a")
	if sc.VideoSettings.Selected.Name != "a" {
		t.Fatalf("Selected = %s, want a", sc.VideoSettings.Selected.Name)
	}

	sc, _ = svc.Select(ctx, st.ID, sceneID, TrackVideo, SelectClear, "")
	if sc.VideoSettings.Selected != nil {
		t.Fatal("Selected should be nil after clear")
	}

	if _, err := svc.Select(ctx, st.ID, sceneID, TrackVideo, SelectKey, "https://zzz"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Select(unknown key) error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.Select(ctx, st.ID, sceneID, "audio", SelectNext, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Select(bad track) error = %v, want ErrInvalidInput", err)
	}
}

func TestService_AttachImage(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	st := newStoryWithScenes(t, svc, 1)
	ctx := context.Background()
	sceneID := st.Scenes[0].ID

	seed := story.Image{Name: "seed.png", GCSURI: "gs://b/seed.png", SignedURI: "https://seed"}
	sc, err := svc.AttachImage(ctx, st.ID, sceneID, FileKindSeed, seed, "", "")
	if err != nil {
		t.Fatalf("AttachImage(seed) error = %v", err)
	}
	if sc.SeedImage() == nil || sc.SeedImage().Name != "seed.png" {
		t.Fatalf("SeedImage() = %v, want seed.png", sc.SeedImage())
	}

	for i := 0; i < story.MaxReferenceImages; i++ {
		if _, err := svc.AttachImage(ctx, st.ID, sceneID, FileKindReference, seed, story.ReferenceSubject, "hero"); err != nil {
			t.Fatalf("AttachImage(reference %d) error = %v", i, err)
		}
	}
	if _, err := svc.AttachImage(ctx, st.ID, sceneID, FileKindReference, seed, "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("AttachImage(5th reference) error = %v, want ErrInvalidInput", err)
	}
}

func TestService_AttachImage_SameSeedTwice(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	st := newStoryWithScenes(t, svc, 1)
	ctx := context.Background()
	sceneID := st.Scenes[0].ID

	seed := story.Image{Name: "seed.png", GCSURI: "gs://b/seed.png", SignedURI: "https://seed"}
	svc.AttachImage(ctx, st.ID, sceneID, FileKindSeed, seed, "", "")
	sc, err := svc.AttachImage(ctx, st.ID, sceneID, FileKindSeed, seed, "", "")
	if err != nil {
		t.Fatalf("AttachImage() error = %v", err)
	}
	if got := sc.ImageSelection().Index(); got != 1 {
		t.Fatalf("Index() = %d, want 1 (the new upload)", got)
	}

	sc, _ = svc.Select(ctx, st.ID, sceneID, TrackImage, SelectNext, "")
	if got := sc.ImageSelection().Index(); got != 0 {
		t.Fatalf("Index() after next = %d, want 0", got)
	}
	sc, _ = svc.Select(ctx, st.ID, sceneID, TrackImage, SelectNext, "")
	if got := sc.ImageSelection().Index(); got != 1 {
		t.Fatalf("Index() after second next = %d, want 1", got)
	}
}

func TestService_DeleteStory(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	st := newStoryWithScenes(t, svc, 1)
	ctx := context.Background()

	if err := svc.DeleteStory(ctx, st.ID); err != nil {
		t.Fatalf("DeleteStory() error = %v", err)
	}
	if err := svc.DeleteStory(ctx, st.ID); !errors.Is(err, ErrStoryNotFound) {
		t.Fatalf("DeleteStory(again) error = %v, want ErrStoryNotFound", err)
	}
}

func TestService_SceneDefaults(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)

	if err := svc.SetSceneDefaults(ScenePatch{Transition: ptr("spin")}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("SetSceneDefaults(bad) error = %v, want ErrInvalidInput", err)
	}
	if err := svc.SetSceneDefaults(ScenePatch{VideoAspectRatio: ptr("9:16"), DurationInSecs: ptr(6)}); err != nil {
		t.Fatalf("SetSceneDefaults() error = %v", err)
	}

	st, _ := svc.CreateStory(context.Background(), "Defaults", "")
	sc, err := svc.AddScene(context.Background(), st.ID, ScenePatch{DurationInSecs: ptr(4)})
	if err != nil {
		t.Fatalf("AddScene() error = %v", err)
	}
	if sc.VideoSettings.AspectRatio != "9:16" {
		t.Errorf("AspectRatio = %q, want 9:16", sc.VideoSettings.AspectRatio)
	}
	if sc.VideoSettings.DurationInSecs != 4 {
		t.Errorf("DurationInSecs = %d, want caller's 4", sc.VideoSettings.DurationInSecs)
	}
}
