package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/manwarsd/dreamboard/internal/backend"
	"github.com/manwarsd/dreamboard/internal/catalog"
	"github.com/manwarsd/dreamboard/internal/config"
	"github.com/manwarsd/dreamboard/internal/db"
	"github.com/manwarsd/dreamboard/internal/events"
	"github.com/manwarsd/dreamboard/internal/logging"
	"github.com/manwarsd/dreamboard/internal/orchestrator"
)

var rootCmd = &cobra.Command{
	Use:   "dreamboard",
	Short: "Plan multi-scene video stories and drive their generation",
	Long: `dreamboard keeps storyboards of numbered scenes, sends them to the
image and video generation services in batches and merges the selected
clips into a final video.

Run "dreamboard serve" for the local API, or use the story commands to
work on the local database directly.`,
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// app wires the components every command needs.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *db.DB
	repo    catalog.Repository
	hub     *events.Hub
	stories *catalog.Service
	client  backend.Client
	orch    *orchestrator.Orchestrator
	health  *backend.CachedHealth
}

// openApp loads the config and opens the database. Commands log text to
// stderr; serve logs JSON to stdout.
func openApp(jsonLogs bool) (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel(), false)
	if jsonLogs {
		logger = logging.NewLogger(cfg.LogLevel())
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	repo := catalog.NewRepository(database.Conn())
	hub := events.NewHub(logging.WithComponent(logger, "events"))

	stories := catalog.NewService(repo, hub, logging.WithComponent(logger, "catalog"))
	if err := stories.SetSceneDefaults(sceneDefaultsPatch(cfg.SceneDefaults())); err != nil {
		database.Close()
		return nil, fmt.Errorf("invalid scene defaults: %w", err)
	}

	client := newBackend(cfg, logging.WithComponent(logger, "backend"))
	orch := orchestrator.New(repo, client, hub, logging.WithComponent(logger, "orchestrator"))

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      database,
		repo:    repo,
		hub:     hub,
		stories: stories,
		client:  client,
		orch:    orch,
		health:  backend.NewCachedHealth(client, logger),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func newBackend(cfg config.Config, logger *slog.Logger) backend.Client {
	if cfg.UseStubBackend() {
		logger.Warn("no generation backend configured, using stub responses")
		return backend.NewStubClient(logger)
	}
	logger.Info("generation backend configured",
		"video_url", cfg.VideoBackendURL(),
		"image_url", cfg.ImageBackendURL(),
		"upload_url", cfg.UploadBackendURL(),
		"token", logging.SanitizeToken(cfg.BackendToken()),
	)
	return backend.NewHTTPClient(backend.Endpoints{
		VideoURL:  cfg.VideoBackendURL(),
		ImageURL:  cfg.ImageBackendURL(),
		UploadURL: cfg.UploadBackendURL(),
	}, cfg.BackendToken(), logger)
}

func sceneDefaultsPatch(d config.SceneDefaults) catalog.ScenePatch {
	var p catalog.ScenePatch
	if d.VideoAspectRatio != "" {
		p.VideoAspectRatio = &d.VideoAspectRatio
	}
	if d.DurationInSecs > 0 {
		p.DurationInSecs = &d.DurationInSecs
	}
	if d.FramesPerSec > 0 {
		p.FramesPerSec = &d.FramesPerSec
	}
	if d.SampleCount > 0 {
		p.SampleCount = &d.SampleCount
	}
	p.GenerateAudio = d.GenerateAudio
	if d.Transition != "" {
		p.Transition = &d.Transition
	}
	if d.ImageAspectRatio != "" {
		p.ImageAspectRatio = &d.ImageAspectRatio
	}
	if d.NumberOfImages > 0 {
		p.NumberOfImages = &d.NumberOfImages
	}
	if d.PersonGeneration != "" {
		p.PersonGeneration = &d.PersonGeneration
	}
	return p
}

func ensureAgentID(ctx context.Context, repo catalog.Repository) (string, error) {
	return ensureSecret(ctx, repo, "agent_id", 16)
}

func ensureAuthToken(ctx context.Context, repo catalog.Repository) (string, error) {
	return ensureSecret(ctx, repo, "auth_token", 32)
}

func ensureSecret(ctx context.Context, repo catalog.Repository, key string, size int) (string, error) {
	existing, err := repo.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	value := hex.EncodeToString(b)

	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}
