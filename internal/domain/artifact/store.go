package artifact

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"voxnote-go/internal/platform/errors"
	"voxnote-go/internal/platform/storage"
	"voxnote-go/internal/util/audio"
)

// Artifact is a recording's bytes before commit.
type Artifact struct {
	SessionID string
	Name      string
	Size      int64
	Encoding  audio.Format
	CreatedAt time.Time
}

// Path returns the artifact's location under the store's temp directory.
func (a *Artifact) Path(tempDir string) string {
	return filepath.Join(tempDir, a.Name)
}

// Store manages temporary recording files. Filenames embed the owning
// session id so per-session lookup is a prefix match over the temp
// directory only; that directory scan is O(n) in the number of pending
// temp files, which stays tiny for a local note-taking tool.
type Store struct {
	tempDir string
	files   storage.FileStore
	logger  *slog.Logger

	// owners tracks sessions with a live recording so the sweep never
	// reclaims an artifact out from under an active session.
	ownersMu sync.Mutex
	owners   map[string]struct{}
}

func NewStore(tempDir string, files storage.FileStore, logger *slog.Logger) *Store {
	return &Store{
		tempDir: tempDir,
		files:   files,
		logger:  logger,
		owners:  make(map[string]struct{}),
	}
}

// RegisterOwner must be called before a session writes its artifact.
func (s *Store) RegisterOwner(sessionID string) {
	s.ownersMu.Lock()
	defer s.ownersMu.Unlock()
	s.owners[sessionID] = struct{}{}
}

// ReleaseOwner marks the session's artifacts as no longer protected.
func (s *Store) ReleaseOwner(sessionID string) {
	s.ownersMu.Lock()
	defer s.ownersMu.Unlock()
	delete(s.owners, sessionID)
}

func (s *Store) isOwned(sessionID string) bool {
	s.ownersMu.Lock()
	defer s.ownersMu.Unlock()
	_, ok := s.owners[sessionID]
	return ok
}

// Save persists a finalized recording buffer as a temp artifact.
func (s *Store) Save(sessionID string, data []byte, encoding audio.Format) (*Artifact, error) {
	now := time.Now()
	name := fmt.Sprintf("%s_%d%s", sessionID, now.UnixNano(), encoding.Extension())
	if err := s.files.Write(filepath.Join(s.tempDir, name), data); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "artifact.save", "failed to save temp artifact", err)
	}
	s.logger.Debug("[artifact] saved temp artifact", "session", sessionID, "name", name, "bytes", len(data))
	return &Artifact{
		SessionID: sessionID,
		Name:      name,
		Size:      int64(len(data)),
		Encoding:  encoding,
		CreatedAt: now,
	}, nil
}

// Read loads the artifact bytes.
func (s *Store) Read(a *Artifact) ([]byte, error) {
	data, err := s.files.Read(a.Path(s.tempDir))
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "artifact.read", "failed to read temp artifact", err)
	}
	return data, nil
}

// Delete removes the artifact. Used by the promotion pipeline on commit and
// by explicit discard.
func (s *Store) Delete(a *Artifact) error {
	if err := s.files.Delete(a.Path(s.tempDir)); err != nil {
		return errors.Wrap(errors.KindCleanup, "artifact.delete", "failed to delete temp artifact", err)
	}
	return nil
}

// FindBySession returns the artifacts owned by a session, newest first.
func (s *Store) FindBySession(sessionID string) ([]*Artifact, error) {
	entries, err := s.files.List(s.tempDir)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "artifact.find", "failed to list temp directory", err)
	}

	var found []*Artifact
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name, sessionID+"_") {
			continue
		}
		found = append(found, artifactFromEntry(entry))
	}
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found, nil
}

// SweepAbandoned deletes artifacts older than maxAge whose owning session is
// no longer live. It runs at process start and periodically thereafter.
func (s *Store) SweepAbandoned(maxAge time.Duration) (int, error) {
	entries, err := s.files.List(s.tempDir)
	if err != nil {
		return 0, errors.Wrap(errors.KindStorage, "artifact.sweep", "failed to list temp directory", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		a := artifactFromEntry(entry)
		if a.SessionID == "" {
			continue
		}
		if s.isOwned(a.SessionID) {
			continue
		}
		if !entry.MTime.Before(cutoff) {
			continue
		}
		if err := s.files.Delete(filepath.Join(s.tempDir, entry.Name)); err != nil {
			// Cleanup failures never escalate; the next sweep retries.
			s.logger.Warn("[artifact] sweep failed to delete", "name", entry.Name, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("[artifact] swept abandoned artifacts", "count", removed)
	}
	return removed, nil
}

func artifactFromEntry(entry storage.FileEntry) *Artifact {
	sessionID := ""
	if idx := strings.LastIndex(entry.Name, "_"); idx > 0 {
		sessionID = entry.Name[:idx]
	}
	return &Artifact{
		SessionID: sessionID,
		Name:      entry.Name,
		Size:      entry.Size,
		Encoding:  formatFromName(entry.Name),
		CreatedAt: entry.MTime,
	}
}

// formatFromName maps the filename extension back to an encoding hint. The
// promotion pipeline re-sniffs content before trusting it.
func formatFromName(name string) audio.Format {
	switch filepath.Ext(name) {
	case ".wav":
		return audio.FormatWav
	case ".mp3":
		return audio.FormatMP3
	case ".ogg":
		return audio.FormatOgg
	default:
		return audio.FormatUnknown
	}
}
