package migrate

import (
	"context"
	"log/slog"
	"path/filepath"

	"voxnote-go/internal/domain/note"
	"voxnote-go/internal/platform/errors"
	"voxnote-go/internal/platform/observability"
	"voxnote-go/internal/platform/storage"
	"voxnote-go/internal/util/audio"
)

// Progress is reported after each note so a caller can render a progress bar.
type Progress struct {
	Completed    int
	Total        int
	CurrentTitle string
	Resources    observability.ResourceSnapshot
}

// Result summarizes a whole batch. The repository is repointed only for the
// successes; failures carry their reasons.
type Result struct {
	Succeeded []string
	Failed    map[string]string
}

// Migrator re-encodes legacy MP3 audio to the canonical WAV container and
// repoints the note rows. One corrupt file never aborts the batch.
type Migrator struct {
	repo     *note.Repository
	files    storage.FileStore
	audioDir string
	logger   *slog.Logger
}

func NewMigrator(repo *note.Repository, files storage.FileStore, audioDir string, logger *slog.Logger) *Migrator {
	return &Migrator{
		repo:     repo,
		files:    files,
		audioDir: audioDir,
		logger:   logger,
	}
}

// ScanForLegacyAudio counts notes whose stored audio sniffs as a legacy
// format. Content signatures decide, not extensions or the recorded encoding.
func (m *Migrator) ScanForLegacyAudio(ctx context.Context) (int, error) {
	legacy, err := m.legacyNotes(ctx)
	if err != nil {
		return 0, err
	}
	return len(legacy), nil
}

func (m *Migrator) legacyNotes(ctx context.Context) ([]*note.Note, error) {
	notes, err := m.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var legacy []*note.Note
	for _, n := range notes {
		data, err := m.files.Read(filepath.Join(m.audioDir, n.AudioFile))
		if err != nil {
			continue
		}
		if audio.DetectFormat(data) == audio.FormatMP3 {
			legacy = append(legacy, n)
		}
	}
	return legacy, nil
}

// MigrateAll converts every legacy note, reporting progress after each one.
// Cancellation is honored at note granularity only.
func (m *Migrator) MigrateAll(ctx context.Context, onProgress func(Progress)) (res *Result, err error) {
	ctx, endSpan := observability.StartSpan(ctx, "migrate", "batch")
	defer func() { endSpan(err) }()

	result := &Result{Failed: make(map[string]string)}
	legacy, err := m.legacyNotes(ctx)
	if err != nil {
		return result, err
	}

	total := len(legacy)
	m.logger.Info("[migrate] starting batch", "total", total)

	for i, n := range legacy {
		select {
		case <-ctx.Done():
			return result, errors.Wrap(errors.KindMigration, "migrate.all", "migration interrupted", ctx.Err())
		default:
		}

		if err := m.migrateOne(ctx, n); err != nil {
			result.Failed[n.ID] = err.Error()
			m.logger.Warn("[migrate] note failed", "note", n.ID, "error", err)
		} else {
			result.Succeeded = append(result.Succeeded, n.ID)
		}

		if onProgress != nil {
			onProgress(Progress{
				Completed:    i + 1,
				Total:        total,
				CurrentTitle: n.Title,
				Resources:    observability.Snapshot(),
			})
		}
	}

	m.logger.Info("[migrate] batch finished",
		"succeeded", len(result.Succeeded), "failed", len(result.Failed))
	return result, nil
}

// migrateOne re-encodes a single note. The new file passes the same
// integrity check the promotion pipeline applies before the row is
// repointed; the old file is deleted last.
func (m *Migrator) migrateOne(ctx context.Context, n *note.Note) error {
	oldPath := filepath.Join(m.audioDir, n.AudioFile)
	data, err := m.files.Read(oldPath)
	if err != nil {
		return errors.Wrap(errors.KindMigration, "migrate.one", "failed to read legacy audio", err)
	}
	if audio.DetectFormat(data) != audio.FormatMP3 {
		return errors.New(errors.KindMigration, "migrate.one", "audio is not in a legacy format")
	}

	pcm, sampleRate, err := audio.DecodeMP3(data)
	if err != nil {
		return errors.Wrap(errors.KindMigration, "migrate.one", "failed to decode legacy audio", err)
	}

	// go-mp3 always emits 16-bit stereo PCM.
	wavData, err := audio.EncodeWav(pcm, sampleRate, 2)
	if err != nil {
		return errors.Wrap(errors.KindMigration, "migrate.one", "failed to encode canonical audio", err)
	}

	newFile := n.ID + audio.FormatWav.Extension()
	newPath := filepath.Join(m.audioDir, newFile)
	// A legacy file can already carry the canonical name with MP3 content
	// inside. Then the write replaces it in place and there is nothing left
	// to clean up, neither on rollback nor after the repoint.
	replacedInPlace := newPath == oldPath
	if err := m.files.Write(newPath, wavData); err != nil {
		return errors.Wrap(errors.KindMigration, "migrate.one", "failed to write canonical audio", err)
	}

	written, err := m.files.Read(newPath)
	if err != nil {
		if !replacedInPlace {
			_ = m.files.Delete(newPath)
		}
		return errors.Wrap(errors.KindIntegrity, "migrate.one", "canonical audio failed integrity check", err)
	}
	if _, err := audio.Verify(written); err != nil {
		if !replacedInPlace {
			_ = m.files.Delete(newPath)
		}
		return errors.Wrap(errors.KindIntegrity, "migrate.one", "canonical audio failed integrity check", err)
	}

	duration, durErr := audio.WavDuration(written)
	encoding := string(audio.FormatWav)
	update := note.Update{
		AudioFile:      &newFile,
		SourceEncoding: &encoding,
	}
	if durErr == nil {
		update.Duration = &duration
	}
	if err := m.repo.Update(ctx, n.ID, update); err != nil {
		if !replacedInPlace {
			_ = m.files.Delete(newPath)
		}
		return err
	}

	// Best-effort: a leftover legacy file is logged, never fatal.
	if !replacedInPlace {
		if err := m.files.Delete(oldPath); err != nil {
			m.logger.Warn("[migrate] failed to delete legacy audio", "note", n.ID, "error", err)
		}
	}

	m.logger.Info("[migrate] note migrated", "note", n.ID, "file", newFile)
	return nil
}
