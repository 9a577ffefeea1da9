package promote

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"voxnote-go/internal/domain/artifact"
	"voxnote-go/internal/domain/note"
	"voxnote-go/internal/platform/errors"
	"voxnote-go/internal/platform/observability"
	"voxnote-go/internal/platform/storage"
	"voxnote-go/internal/util/audio"
)

// ErrIntegrityCheckFailed signals that the promoted file did not verify; no
// note row was created and the temp artifact was left in place.
var ErrIntegrityCheckFailed = errors.New(errors.KindIntegrity, "promote.commit", "promoted audio failed integrity check")

// Metadata carries the commit-time fields supplied by the caller. Duration
// is a wall-clock fallback, used only when the audio itself cannot be probed.
type Metadata struct {
	Title    string
	Duration float64
}

// Pipeline moves a temp artifact to permanent storage and inserts the note
// row. It is the only path by which a note becomes visible, and the row is
// only written after the permanent bytes verify.
type Pipeline struct {
	repo      *note.Repository
	artifacts *artifact.Store
	files     storage.FileStore
	audioDir  string
	logger    *slog.Logger
}

func NewPipeline(repo *note.Repository, artifacts *artifact.Store, files storage.FileStore, audioDir string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		repo:      repo,
		artifacts: artifacts,
		files:     files,
		audioDir:  audioDir,
		logger:    logger,
	}
}

// Commit promotes the artifact. On integrity failure the temp artifact is
// retained for diagnostic retry; the next sweep reclaims it if abandoned.
func (p *Pipeline) Commit(ctx context.Context, art *artifact.Artifact, meta Metadata) (n *note.Note, err error) {
	ctx, endSpan := observability.StartSpan(ctx, "promote", "commit")
	defer func() { endSpan(err) }()

	data, err := p.artifacts.Read(art)
	if err != nil {
		return nil, err
	}

	// Sniff the real format from content; the artifact's extension is only
	// a hint and the negotiated capture encoding varies across devices.
	format, err := audio.Verify(data)
	if err != nil {
		return nil, errors.Wrap(errors.KindIntegrity, "promote.commit", ErrIntegrityCheckFailed.Message, err)
	}

	noteID := uuid.New().String()
	filename := noteID + format.Extension()
	permanentPath := filepath.Join(p.audioDir, filename)

	if err := p.files.Write(permanentPath, data); err != nil {
		return nil, err
	}

	// Re-read the permanent copy and verify it before any row exists. This
	// ordering is the commit atomicity guarantee.
	written, err := p.files.Read(permanentPath)
	if err != nil {
		p.cleanupPermanent(permanentPath)
		return nil, errors.Wrap(errors.KindIntegrity, "promote.commit", ErrIntegrityCheckFailed.Message, err)
	}
	if _, err := audio.Verify(written); err != nil {
		p.cleanupPermanent(permanentPath)
		return nil, errors.Wrap(errors.KindIntegrity, "promote.commit", ErrIntegrityCheckFailed.Message, err)
	}

	duration := meta.Duration
	if probed, err := audio.Duration(written); err == nil {
		duration = probed
	}
	if duration < 0 {
		duration = 0
	}

	title := meta.Title
	now := time.Now()
	if title == "" {
		title = note.DefaultTitle(now)
	}

	n = &note.Note{
		ID:               noteID,
		Title:            title,
		Duration:         duration,
		AudioFile:        filename,
		AudioReady:       true,
		SourceEncoding:   string(format),
		TranscriptStatus: note.StatusPending,
		Metadata: map[string]interface{}{
			"temp_session": art.SessionID,
			"byte_size":    len(written),
		},
		CreatedAt: now,
	}
	if err := p.repo.Insert(ctx, n); err != nil {
		p.cleanupPermanent(permanentPath)
		return nil, err
	}

	// The row is durable; the temp artifact is consumed. Deletion failures
	// are non-fatal and left to the sweep.
	if err := p.artifacts.Delete(art); err != nil {
		p.logger.Warn("[promote] failed to delete temp artifact", "name", art.Name, "error", err)
	}

	p.logger.Info("[promote] note committed", "note", noteID, "title", title,
		"duration", duration, "format", format)
	return n, nil
}

// DeleteNote removes a committed note: audio bytes first, then the row, so
// an orphaned reference never outlives its file.
func (p *Pipeline) DeleteNote(ctx context.Context, id string) error {
	n, err := p.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := p.files.Delete(filepath.Join(p.audioDir, n.AudioFile)); err != nil {
		return err
	}
	if err := p.repo.Delete(ctx, id); err != nil {
		return err
	}

	p.logger.Info("[promote] note deleted", "note", id)
	return nil
}

func (p *Pipeline) cleanupPermanent(path string) {
	if err := p.files.Delete(path); err != nil {
		p.logger.Warn("[promote] failed to remove unverified file", "path", path, "error", err)
	}
}
