package note

import (
	"fmt"
	"time"
)

// TranscriptStatus is the transcription state persisted on a note.
type TranscriptStatus string

const (
	StatusPending    TranscriptStatus = "pending"
	StatusProcessing TranscriptStatus = "processing"
	StatusCompleted  TranscriptStatus = "completed"
	StatusFailed     TranscriptStatus = "failed"
)

// Note is a committed voice memo. It exists if and only if its audio file
// has been verified in permanent storage.
type Note struct {
	ID               string
	Title            string
	Transcript       string
	Duration         float64 // seconds, fixed at commit time from decoded audio
	AudioFile        string
	AudioReady       bool
	SourceEncoding   string
	TranscriptStatus TranscriptStatus
	TranscriptError  string
	RetryCount       int
	Generation       uint64
	Metadata         map[string]interface{}
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DefaultTitle derives the fallback label used when the user never confirms
// a title, e.g. on auto-save.
func DefaultTitle(at time.Time) string {
	return fmt.Sprintf("Recording %s", at.Format("2006-01-02 15:04"))
}

// Update carries partial-field semantics: nil fields are left untouched.
type Update struct {
	Title            *string
	Transcript       *string
	TranscriptStatus *TranscriptStatus
	TranscriptError  *string
	RetryCount       *int
	AudioFile        *string
	SourceEncoding   *string
	Duration         *float64
}
