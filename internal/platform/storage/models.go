package storage

import (
	"time"

	"gorm.io/datatypes"
)

// NoteRecord is the persisted row for a committed voice note. A row exists
// only when its audio file has been verified in permanent storage.
type NoteRecord struct {
	ID                 string         `gorm:"type:varchar(64);primaryKey"`
	Title              string         `gorm:"not null"`
	Transcript         string         `gorm:"type:text"`
	DurationSeconds    float64        `gorm:"not null;default:0"`
	AudioFile          string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	AudioReady         bool           `gorm:"default:true"`
	SourceEncoding     string         `gorm:"type:varchar(16)"`
	TranscriptStatus   string         `gorm:"type:varchar(16);index;default:'pending'"`
	TranscriptError    string         `gorm:"type:text"`
	RetryCount         int            `gorm:"default:0"`
	Generation         uint64         `gorm:"default:0"`
	Metadata           datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt          time.Time      `gorm:"index"`
	UpdatedAt          time.Time
}
