package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvPort, EnvLogLevel, EnvDataDir, EnvConfigFile, EnvHeadless, EnvAllowedOrigins, EnvMediaRoot,
		EnvBackendURL, EnvVideoBackendURL, EnvImageBackendURL, EnvUploadURL, EnvBackendToken,
	} {
		t.Setenv(k, "")
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != DefaultLogLevel {
		t.Errorf("LogLevel() = %q, want %q", cfg.LogLevel(), DefaultLogLevel)
	}
	if !cfg.UseStubBackend() {
		t.Error("UseStubBackend() = false, want true without a backend url")
	}
	if filepath.Base(cfg.DBPath()) != DBFilename {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvBackendURL, "http://backend:8000")
	t.Setenv(EnvImageBackendURL, "http://images:8001")
	t.Setenv(EnvBackendToken, "secret")
	t.Setenv(EnvHeadless, "true")
	t.Setenv(EnvAllowedOrigins, "http://studio.example, ,https://x.example")
	t.Setenv(EnvMediaRoot, "/mnt/bucket")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.Port() != 9000 {
		t.Errorf("Port() = %d, want 9000", cfg.Port())
	}
	if cfg.VideoBackendURL() != "http://backend:8000" || cfg.UploadBackendURL() != "http://backend:8000" {
		t.Errorf("backend urls = %q, %q", cfg.VideoBackendURL(), cfg.UploadBackendURL())
	}
	if cfg.ImageBackendURL() != "http://images:8001" {
		t.Errorf("ImageBackendURL() = %q", cfg.ImageBackendURL())
	}
	if cfg.BackendToken() != "secret" || !cfg.Headless() || cfg.UseStubBackend() {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.AllowedOrigins()) != 2 {
		t.Errorf("AllowedOrigins() = %v, want 2 entries", cfg.AllowedOrigins())
	}
	if cfg.MediaRoot() != "/mnt/bucket" {
		t.Errorf("MediaRoot() = %q", cfg.MediaRoot())
	}
}

func TestNew_InvalidPort(t *testing.T) {
	for _, p := range []string{"0", "70000", "abc"} {
		clearEnv(t)
		t.Setenv(EnvPort, p)
		if _, err := New(); err == nil {
			t.Errorf("New() with port %q: expected error", p)
		}
	}
}

func TestNew_YAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "dreamboard.yaml")
	content := `
port: 9100
log_level: debug
backend:
  url: http://from-file:8000
  token: file-token
scene_defaults:
  video_aspect_ratio: "9:16"
  duration_in_secs: 6
  transition: x_fade
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvBackendToken, "env-token")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.Port() != 9100 || cfg.LogLevel() != "debug" {
		t.Errorf("port/log level = %d/%s", cfg.Port(), cfg.LogLevel())
	}
	if cfg.VideoBackendURL() != "http://from-file:8000" {
		t.Errorf("VideoBackendURL() = %q", cfg.VideoBackendURL())
	}
	if cfg.BackendToken() != "env-token" {
		t.Errorf("BackendToken() = %q, want env override", cfg.BackendToken())
	}
	d := cfg.SceneDefaults()
	if d.VideoAspectRatio != "9:16" || d.DurationInSecs != 6 || d.Transition != "x_fade" {
		t.Errorf("SceneDefaults() = %+v", d)
	}
}

func TestNew_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	os.Unsetenv(EnvLogLevel)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DREAMBOARD_LOG_LEVEL=warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.LogLevel() != "warn" {
		t.Errorf("LogLevel() = %q, want warn from .env", cfg.LogLevel())
	}
}
