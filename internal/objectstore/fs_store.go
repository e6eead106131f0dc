package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// File and directory permissions. Artifacts are served publicly.
const (
	filePermissions = 0o644
	dirPermissions  = 0o755
)

var (
	// ErrInvalidKey is returned for keys that would escape the store root.
	ErrInvalidKey = errors.New("invalid object key")
	// ErrObjectNotFound is returned by Download when no object exists.
	ErrObjectNotFound = errors.New("object not found")
)

// FSObjectStore implements the core.BlobStore interface on a local directory,
// typically one served as static files.
type FSObjectStore struct {
	root string
}

// NewFSObjectStore creates the root directory if needed.
func NewFSObjectStore(root string) (*FSObjectStore, error) {
	dirErr := os.MkdirAll(root, dirPermissions)
	if dirErr != nil {
		return nil, fmt.Errorf("failed to create object directory '%s': %w", root, dirErr)
	}

	return &FSObjectStore{root: root}, nil
}

// Download reads the file stored under key.
func (s *FSObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, readErr := os.ReadFile(path)
	if errors.Is(readErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, ErrObjectNotFound)
	}

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	return data, nil
}

// Upload writes data to a temporary file and renames it into place, so a
// reader never observes a partially written artifact.
func (s *FSObjectStore) Upload(_ context.Context, key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	tempPath := filepath.Join(s.root, ".tmp-"+uuid.NewString())

	writeErr := os.WriteFile(tempPath, data, filePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write object '%s': %w", key, writeErr)
	}

	renameErr := os.Rename(tempPath, path)
	if renameErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to move object '%s' into place: %w", key, renameErr)
	}

	return nil
}

// Exists reports whether a regular file is stored under key.
func (s *FSObjectStore) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to stat object '%s': %w", key, statErr)
	}

	return info.Mode().IsRegular(), nil
}

// Delete removes the file stored under key. A missing file is not an error.
func (s *FSObjectStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	removeErr := os.Remove(path)
	if removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object '%s': %w", key, removeErr)
	}

	return nil
}

func (s *FSObjectStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return filepath.Join(s.root, key), nil
}
