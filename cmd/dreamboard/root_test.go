package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/manwarsd/dreamboard/internal/catalog"
	"github.com/manwarsd/dreamboard/internal/config"
	"github.com/manwarsd/dreamboard/internal/db"
	"github.com/manwarsd/dreamboard/internal/story"
)

func TestSceneDefaultsPatch(t *testing.T) {
	audio := false
	p := sceneDefaultsPatch(config.SceneDefaults{
		VideoAspectRatio: "9:16",
		DurationInSecs:   6,
		GenerateAudio:    &audio,
		Transition:       "wipe",
	})

	sc := story.NewScene(1)
	if err := p.Apply(sc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	vs := sc.VideoSettings
	if vs.AspectRatio != "9:16" || vs.DurationInSecs != 6 || vs.GenerateAudio || vs.Transition != story.TransitionWipe {
		t.Fatalf("video settings = %+v", vs)
	}
	if vs.FramesPerSec != story.DefaultVideoSettings().FramesPerSec {
		t.Errorf("FramesPerSec = %d, want default", vs.FramesPerSec)
	}
	if p.NumberOfImages != nil || p.ImageAspectRatio != nil {
		t.Error("unset defaults should stay nil")
	}
}

func TestEnsureSecret_Stable(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	defer database.Close()
	repo := catalog.NewRepository(database.Conn())
	ctx := context.Background()

	first, err := ensureAuthToken(ctx, repo)
	if err != nil {
		t.Fatalf("ensureAuthToken() error = %v", err)
	}
	if len(first) != 64 {
		t.Fatalf("len(token) = %d, want 64", len(first))
	}
	second, _ := ensureAuthToken(ctx, repo)
	if first != second {
		t.Fatal("token changed between calls")
	}

	id, _ := ensureAgentID(ctx, repo)
	if len(id) != 32 || id == first {
		t.Fatalf("agent id = %q", id)
	}
}

func TestWriteYAML_UsesJSONNames(t *testing.T) {
	st := story.NewStory("Harbor", "")
	story.AddScene(st)

	var buf bytes.Buffer
	if err := writeYAML(&buf, st); err != nil {
		t.Fatalf("writeYAML() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"title: Harbor", "video_generation_settings:", "duration_in_secs: 8"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, `"title"`) {
		t.Errorf("output kept JSON quoting:\n%s", out)
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("short", 10); got != "short" {
		t.Errorf("shorten() = %q", got)
	}
	if got := shorten("a very long prompt indeed", 10); got != "a very ..." {
		t.Errorf("shorten() = %q, want %q", got, "a very ...")
	}
}
