package storage

import (
	"os"
	"path/filepath"
	"time"

	"voxnote-go/internal/platform/errors"
)

// FileEntry describes one file in a listing.
type FileEntry struct {
	Name  string
	MTime time.Time
	Size  int64
}

// FileStore abstracts the filesystem operations the lifecycle manager needs.
// Paths are logical (directory + filename); implementations own the mapping
// to the OS.
type FileStore interface {
	Write(path string, data []byte) error
	Read(path string) ([]byte, error)
	Delete(path string) error
	List(dir string) ([]FileEntry, error)
	Exists(path string) bool
}

// LocalFileStore is the os-backed FileStore used in production.
type LocalFileStore struct{}

func NewLocalFileStore() *LocalFileStore {
	return &LocalFileStore{}
}

func (s *LocalFileStore) Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.KindStorage, "filestore.write", "failed to create directory", err)
	}
	// Write to a sibling temp name then rename so readers never observe a
	// partially written file.
	tmp := path + ".partial"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(errors.KindStorage, "filestore.write", "failed to write file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.KindStorage, "filestore.write", "failed to finalize file", err)
	}
	return nil
}

func (s *LocalFileStore) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "filestore.read", "failed to read file", err)
	}
	return data, nil
}

func (s *LocalFileStore) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.KindCleanup, "filestore.delete", "failed to delete file", err)
	}
	return nil
}

func (s *LocalFileStore) List(dir string) ([]FileEntry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStorage, "filestore.list", "failed to list directory", err)
	}

	entries := make([]FileEntry, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, FileEntry{
			Name:  de.Name(),
			MTime: info.ModTime(),
			Size:  info.Size(),
		})
	}
	return entries, nil
}

func (s *LocalFileStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
