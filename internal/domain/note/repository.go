package note

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"voxnote-go/internal/platform/errors"
	"voxnote-go/internal/platform/storage"
)

// ErrNotFound is returned when a note id has no row.
var ErrNotFound = errors.New(errors.KindStorage, "note.get", "note not found")

// Repository is the durable store of committed notes.
type Repository struct {
	db *gorm.DB

	// Updates are serialized per note id so a title edit landing concurrently
	// with a transcription completion cannot lose either write.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *Repository) lockFor(id string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	mu, ok := r.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		r.locks[id] = mu
	}
	return mu
}

// Insert creates the note row. Callers must only invoke this after the
// permanent audio file has been verified; the promotion pipeline is the
// single production call site.
func (r *Repository) Insert(ctx context.Context, n *Note) error {
	record, err := toRecord(n)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "note.insert", "failed to insert note", err)
	}
	return nil
}

// GetByID fetches one note.
func (r *Repository) GetByID(ctx context.Context, id string) (*Note, error) {
	var record storage.NoteRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(errors.KindStorage, "note.get", "failed to load note", err)
	}
	return fromRecord(&record), nil
}

// GetAll returns every note ordered by creation time descending.
func (r *Repository) GetAll(ctx context.Context) ([]*Note, error) {
	var records []storage.NoteRecord
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "note.get_all", "failed to list notes", err)
	}
	notes := make([]*Note, len(records))
	for i := range records {
		notes[i] = fromRecord(&records[i])
	}
	return notes, nil
}

// Search matches a case-insensitive substring over title and transcript,
// with the same ordering as GetAll.
func (r *Repository) Search(ctx context.Context, query string) ([]*Note, error) {
	q := "%" + strings.ToLower(query) + "%"
	var records []storage.NoteRecord
	err := r.db.WithContext(ctx).
		Where("LOWER(title) LIKE ? OR LOWER(transcript) LIKE ?", q, q).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "note.search", "failed to search notes", err)
	}
	notes := make([]*Note, len(records))
	for i := range records {
		notes[i] = fromRecord(&records[i])
	}
	return notes, nil
}

// Update applies the non-nil fields of u to the note.
func (r *Repository) Update(ctx context.Context, id string, u Update) error {
	mu := r.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	fields := map[string]interface{}{}
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.Transcript != nil {
		fields["transcript"] = *u.Transcript
	}
	if u.TranscriptStatus != nil {
		fields["transcript_status"] = string(*u.TranscriptStatus)
	}
	if u.TranscriptError != nil {
		fields["transcript_error"] = *u.TranscriptError
	}
	if u.RetryCount != nil {
		fields["retry_count"] = *u.RetryCount
	}
	if u.AudioFile != nil {
		fields["audio_file"] = *u.AudioFile
	}
	if u.SourceEncoding != nil {
		fields["source_encoding"] = *u.SourceEncoding
	}
	if u.Duration != nil {
		fields["duration_seconds"] = *u.Duration
	}
	if len(fields) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Model(&storage.NoteRecord{}).
		Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return errors.Wrap(errors.KindStorage, "note.update", "failed to update note", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BumpGeneration atomically increments the note's task generation and marks
// the note processing. It returns the new generation.
func (r *Repository) BumpGeneration(ctx context.Context, id string) (uint64, error) {
	mu := r.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	var generation uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record storage.NoteRecord
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		generation = record.Generation + 1
		return tx.Model(&storage.NoteRecord{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"generation":        generation,
				"transcript_status": string(StatusProcessing),
				"transcript_error":  "",
			}).Error
	})
	if err != nil {
		if err == ErrNotFound {
			return 0, err
		}
		return 0, errors.Wrap(errors.KindStorage, "note.bump_generation", "failed to start transcription task", err)
	}
	return generation, nil
}

// FinishTranscription records a task outcome only while the task's
// generation is still current; a stale task's result is dropped. It reports
// whether the write was applied.
func (r *Repository) FinishTranscription(ctx context.Context, id string, generation uint64, u Update) (bool, error) {
	mu := r.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	fields := map[string]interface{}{}
	if u.Transcript != nil {
		fields["transcript"] = *u.Transcript
	}
	if u.TranscriptStatus != nil {
		fields["transcript_status"] = string(*u.TranscriptStatus)
	}
	if u.TranscriptError != nil {
		fields["transcript_error"] = *u.TranscriptError
	}
	if u.RetryCount != nil {
		fields["retry_count"] = *u.RetryCount
	}

	res := r.db.WithContext(ctx).Model(&storage.NoteRecord{}).
		Where("id = ? AND generation = ?", id, generation).
		Updates(fields)
	if res.Error != nil {
		return false, errors.Wrap(errors.KindStorage, "note.finish_transcription", "failed to record transcription result", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Delete removes the note row. The caller removes the permanent audio file
// first; a row must never outlive its bytes.
func (r *Repository) Delete(ctx context.Context, id string) error {
	mu := r.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	res := r.db.WithContext(ctx).Delete(&storage.NoteRecord{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrap(errors.KindStorage, "note.delete", "failed to delete note", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	r.locksMu.Lock()
	delete(r.locks, id)
	r.locksMu.Unlock()
	return nil
}

func toRecord(n *Note) (*storage.NoteRecord, error) {
	var meta []byte
	if n.Metadata != nil {
		var err error
		meta, err = json.Marshal(n.Metadata)
		if err != nil {
			return nil, errors.Wrap(errors.KindStorage, "note.insert", "failed to encode metadata", err)
		}
	}
	return &storage.NoteRecord{
		ID:               n.ID,
		Title:            n.Title,
		Transcript:       n.Transcript,
		DurationSeconds:  n.Duration,
		AudioFile:        n.AudioFile,
		AudioReady:       n.AudioReady,
		SourceEncoding:   n.SourceEncoding,
		TranscriptStatus: string(n.TranscriptStatus),
		TranscriptError:  n.TranscriptError,
		RetryCount:       n.RetryCount,
		Generation:       n.Generation,
		Metadata:         datatypes.JSON(meta),
		CreatedAt:        n.CreatedAt,
	}, nil
}

func fromRecord(record *storage.NoteRecord) *Note {
	var meta map[string]interface{}
	if len(record.Metadata) > 0 {
		_ = json.Unmarshal(record.Metadata, &meta)
	}
	return &Note{
		ID:               record.ID,
		Title:            record.Title,
		Transcript:       record.Transcript,
		Duration:         record.DurationSeconds,
		AudioFile:        record.AudioFile,
		AudioReady:       record.AudioReady,
		SourceEncoding:   record.SourceEncoding,
		TranscriptStatus: TranscriptStatus(record.TranscriptStatus),
		TranscriptError:  record.TranscriptError,
		RetryCount:       record.RetryCount,
		Generation:       record.Generation,
		Metadata:         meta,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}
