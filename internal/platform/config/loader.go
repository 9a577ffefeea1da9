package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from an optional YAML file layered over defaults.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader that also honors a .env file in the working directory.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      "config.yaml",
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file path (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load merges defaults, the YAML file (when present) and the VOXNOTE_CONFIG
// environment override, in that order.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using process environment")
		}
	}

	path := l.path
	if env := os.Getenv("VOXNOTE_CONFIG"); env != "" {
		path = env
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else {
		path = ""
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

// Validate rejects configurations the lifecycle manager cannot run with.
func Validate(cfg *Config) error {
	if cfg.Storage.TempDir == "" || cfg.Storage.AudioDir == "" {
		return fmt.Errorf("storage temp_dir and audio_dir are required")
	}
	if cfg.Capture.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", cfg.Capture.SampleRate)
	}
	if cfg.Capture.Channels <= 0 {
		return fmt.Errorf("invalid channels: %d", cfg.Capture.Channels)
	}
	if cfg.Sweep.MaxAge <= 0 {
		return fmt.Errorf("sweep max_age must be positive")
	}
	return nil
}
