// Package config provides configuration management for dreamboard.
// Values come from defaults, an optional YAML file, a .env file and
// environment variables, later sources winning.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort     = 8790
	DefaultLogLevel = "info"
	DefaultDataDir  = ".dreamboard"

	// Environment variable names
	EnvPort           = "DREAMBOARD_PORT"
	EnvLogLevel       = "DREAMBOARD_LOG_LEVEL"
	EnvDataDir        = "DREAMBOARD_DATA_DIR"
	EnvConfigFile     = "DREAMBOARD_CONFIG"
	EnvHeadless       = "DREAMBOARD_HEADLESS"
	EnvAllowedOrigins = "DREAMBOARD_ALLOWED_ORIGINS"
	EnvMediaRoot      = "DREAMBOARD_MEDIA_ROOT"

	// Backend environment variable names. EnvBackendURL sets all three
	// services at once.
	EnvBackendURL      = "DREAMBOARD_BACKEND_URL"
	EnvVideoBackendURL = "DREAMBOARD_VIDEO_BACKEND_URL"
	EnvImageBackendURL = "DREAMBOARD_IMAGE_BACKEND_URL"
	EnvUploadURL       = "DREAMBOARD_UPLOAD_BACKEND_URL"
	EnvBackendToken    = "DREAMBOARD_BACKEND_TOKEN"

	// Database filename
	DBFilename = "dreamboard.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	VideoBackendURL() string
	ImageBackendURL() string
	UploadBackendURL() string
	BackendToken() string
	UseStubBackend() bool
	Headless() bool
	AllowedOrigins() []string
	MediaRoot() string
	SceneDefaults() SceneDefaults
}

// SceneDefaults override the generation settings new scenes start with.
// Zero values keep the built-in default.
type SceneDefaults struct {
	VideoAspectRatio string `yaml:"video_aspect_ratio"`
	DurationInSecs   int    `yaml:"duration_in_secs"`
	FramesPerSec     int    `yaml:"frames_per_sec"`
	SampleCount      int    `yaml:"sample_count"`
	GenerateAudio    *bool  `yaml:"generate_audio"`
	Transition       string `yaml:"transition"`
	ImageAspectRatio string `yaml:"image_aspect_ratio"`
	NumberOfImages   int    `yaml:"number_of_images"`
	PersonGeneration string `yaml:"person_generation"`
}

type fileConfig struct {
	Port           int           `yaml:"port"`
	LogLevel       string        `yaml:"log_level"`
	DataDir        string        `yaml:"data_dir"`
	Headless       *bool         `yaml:"headless"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MediaRoot      string        `yaml:"media_root"`
	Backend        backendFile   `yaml:"backend"`
	Scenes         SceneDefaults `yaml:"scene_defaults"`
}

type backendFile struct {
	URL       string `yaml:"url"`
	VideoURL  string `yaml:"video_url"`
	ImageURL  string `yaml:"image_url"`
	UploadURL string `yaml:"upload_url"`
	Token     string `yaml:"token"`
}

// EnvConfig is the resolved configuration.
type EnvConfig struct {
	port           int
	logLevel       string
	dataDir        string
	headless       bool
	allowedOrigins []string
	mediaRoot      string

	videoURL  string
	imageURL  string
	uploadURL string
	token     string

	scenes SceneDefaults
}

// New loads .env (if present), then the YAML file named by
// DREAMBOARD_CONFIG (if set), then environment overrides.
func New() (*EnvConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("invalid port %d: port must be between 1 and 65535", cfg.port)
	}
	return cfg, nil
}

func (c *EnvConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if f.Port != 0 {
		c.port = f.Port
	}
	if f.LogLevel != "" {
		c.logLevel = f.LogLevel
	}
	if f.DataDir != "" {
		c.dataDir = f.DataDir
	}
	if f.Headless != nil {
		c.headless = *f.Headless
	}
	if len(f.AllowedOrigins) > 0 {
		c.allowedOrigins = f.AllowedOrigins
	}
	setIfNotEmpty(&c.mediaRoot, f.MediaRoot)
	c.setBackendURLs(f.Backend.URL)
	setIfNotEmpty(&c.videoURL, f.Backend.VideoURL)
	setIfNotEmpty(&c.imageURL, f.Backend.ImageURL)
	setIfNotEmpty(&c.uploadURL, f.Backend.UploadURL)
	setIfNotEmpty(&c.token, f.Backend.Token)
	c.scenes = f.Scenes
	return nil
}

func (c *EnvConfig) loadEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		c.port = port
	}

	setIfNotEmpty(&c.logLevel, os.Getenv(EnvLogLevel))
	setIfNotEmpty(&c.dataDir, os.Getenv(EnvDataDir))

	if h := os.Getenv(EnvHeadless); h != "" {
		v, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.headless = v
	}

	if o := os.Getenv(EnvAllowedOrigins); o != "" {
		c.allowedOrigins = nil
		for _, origin := range strings.Split(o, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.allowedOrigins = append(c.allowedOrigins, origin)
			}
		}
	}

	setIfNotEmpty(&c.mediaRoot, os.Getenv(EnvMediaRoot))
	c.setBackendURLs(os.Getenv(EnvBackendURL))
	setIfNotEmpty(&c.videoURL, os.Getenv(EnvVideoBackendURL))
	setIfNotEmpty(&c.imageURL, os.Getenv(EnvImageBackendURL))
	setIfNotEmpty(&c.uploadURL, os.Getenv(EnvUploadURL))
	setIfNotEmpty(&c.token, os.Getenv(EnvBackendToken))
	return nil
}

func (c *EnvConfig) setBackendURLs(url string) {
	if url == "" {
		return
	}
	c.videoURL = url
	c.imageURL = url
	c.uploadURL = url
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func (c *EnvConfig) VideoBackendURL() string {
	return c.videoURL
}

func (c *EnvConfig) ImageBackendURL() string {
	return c.imageURL
}

func (c *EnvConfig) UploadBackendURL() string {
	return c.uploadURL
}

func (c *EnvConfig) BackendToken() string {
	return c.token
}

// UseStubBackend is true when no video backend is configured.
func (c *EnvConfig) UseStubBackend() bool {
	return c.videoURL == ""
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

// AllowedOrigins lists extra browser origins allowed by CORS in addition to
// loopback origins.
func (c *EnvConfig) AllowedOrigins() []string {
	return c.allowedOrigins
}

// MediaRoot is the local mount of the generation bucket. Empty disables
// local previews.
func (c *EnvConfig) MediaRoot() string {
	return c.mediaRoot
}

func (c *EnvConfig) SceneDefaults() SceneDefaults {
	return c.scenes
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
