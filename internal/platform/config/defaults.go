package config

import "time"

// Default returns the configuration used when no file overrides are present.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
		},
		Storage: StorageConfig{
			DataDir:  "data",
			TempDir:  "data/tmp",
			AudioDir: "data/audio",
			DBFile:   "data/voxnote.db",
		},
		Capture: CaptureConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		Transcription: TranscriptionConfig{
			ModelID:       "whisper-tiny",
			ModelCacheDir: "data/models",
			Workers:       2,
		},
		Sweep: SweepConfig{
			MaxAge:   time.Hour,
			Interval: 30 * time.Minute,
		},
		Pool: PoolConfig{
			Workers:   4,
			QueueSize: 64,
		},
	}
}
