package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the service configuration
type Config struct {
	OutputDir   string        `yaml:"output_dir"`
	DownloadDir string        `yaml:"download_dir"`
	DBPath      string        `yaml:"db_path"`
	LogLevel    string        `yaml:"log_level"`
	FFmpeg      FFmpegConfig  `yaml:"ffmpeg"`
	Server      ServerConfig  `yaml:"server"`
	Acquire     AcquireConfig `yaml:"acquire"`
}

type FFmpegConfig struct {
	Threads int `yaml:"threads"` // 0 picks a count from the number of CPUs
}

type ServerConfig struct {
	Port          int           `yaml:"port"`
	MaxConcurrent int64         `yaml:"max_concurrent"`
	ArtifactTTL   time.Duration `yaml:"artifact_ttl"`
	ReapInterval  time.Duration `yaml:"reap_interval"`
}

type AcquireConfig struct {
	Binary  string `yaml:"binary"`
	Format  string `yaml:"format"`
	Cookies string `yaml:"cookies"`
}

const (
	// Output canvas (9:16 portrait)
	CanvasWidth  = 1080
	CanvasHeight = 1920

	// Square preset inner frame
	SquareScaleWidth = 360
	SquareFrameSize  = 400

	// Still images are looped into a clip of this length
	ImageClipSeconds = 10

	// Tagline layout
	LineHeight       = 70
	DefaultFontName  = "Arial"
	DefaultTextColor = "white"
	DefaultShadow    = "black"

	// Logo placement
	LogoScale   = 0.25
	LogoAnchorY = 0.8

	// Environment overrides
	EnvOutputDir = "COMPOSER_OUTPUT_DIR"
	EnvPort      = "COMPOSER_PORT"
	EnvLogLevel  = "COMPOSER_LOG_LEVEL"
)

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		OutputDir:   "./output",
		DownloadDir: "./media/yt-downloads",
		DBPath:      "./output/composer.db",
		LogLevel:    "info",
		FFmpeg: FFmpegConfig{
			Threads: 0,
		},
		Server: ServerConfig{
			Port:          3000,
			MaxConcurrent: 2,
			ArtifactTTL:   time.Hour,
			ReapInterval:  time.Minute,
		},
		Acquire: AcquireConfig{
			Binary: "yt-dlp",
			Format: "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		},
	}
}

// Load reads the configuration file at path (or the first one found on the
// search path) over the defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "failed to parse config %s", path)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxConcurrent < 1 {
		return errors.Errorf("server.max_concurrent must be at least 1, got %d", c.Server.MaxConcurrent)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if dir := os.Getenv(EnvOutputDir); dir != "" {
		c.OutputDir = dir
	}
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvPort)
		}
		c.Server.Port = port
	}
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		c.LogLevel = lvl
	}
	return nil
}

func findConfigFile() string {
	candidates := []string{
		"./composer.yaml",
		"./composer.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".video-composer", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
