package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log           LogConfig           `yaml:"log"`
	Storage       StorageConfig       `yaml:"storage"`
	Capture       CaptureConfig       `yaml:"capture"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Sweep         SweepConfig         `yaml:"sweep"`
	Pool          PoolConfig          `yaml:"pool_config"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type StorageConfig struct {
	DataDir  string `yaml:"data_dir"`
	TempDir  string `yaml:"temp_dir"`
	AudioDir string `yaml:"audio_dir"`
	DBFile   string `yaml:"db_file"`
}

type CaptureConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

type TranscriptionConfig struct {
	ModelID       string `yaml:"model_id"`
	ModelCacheDir string `yaml:"model_cache_dir"`
	Workers       int    `yaml:"workers"`
}

type SweepConfig struct {
	MaxAge   time.Duration `yaml:"max_age"`
	Interval time.Duration `yaml:"interval"`
}

// UnmarshalYAML accepts Go duration strings like "1h" or "30m".
func (s *SweepConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxAge   string `yaml:"max_age"`
		Interval string `yaml:"interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.MaxAge != "" {
		d, err := time.ParseDuration(raw.MaxAge)
		if err != nil {
			return fmt.Errorf("sweep max_age: %w", err)
		}
		s.MaxAge = d
	}
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("sweep interval: %w", err)
		}
		s.Interval = d
	}
	return nil
}

type PoolConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}
