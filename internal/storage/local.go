package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore writes assets to a directory tree served under urlPrefix.
type LocalStore struct {
	baseDir   string
	urlPrefix string
}

func NewLocalStore(baseDir, urlPrefix string) *LocalStore {
	return &LocalStore{baseDir: baseDir, urlPrefix: urlPrefix}
}

func (s *LocalStore) EnsureDir(ctx context.Context, designID uuid.UUID, area Area) error {
	dir := filepath.Join(s.baseDir, designID.String(), string(area))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create asset dir %s: %w", dir, err)
	}
	return nil
}

// Write streams r into a temporary file next to the target and renames it
// into place, so a failed write never leaves a truncated asset behind.
func (s *LocalStore) Write(ctx context.Context, designID uuid.UUID, area Area, name string, r io.Reader, size int64, contentType string) (string, error) {
	key, err := objectKey(designID, area, name)
	if err != nil {
		return "", err
	}
	target := filepath.Join(s.baseDir, filepath.FromSlash(key))

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("move %s into place: %w", key, err)
	}
	return joinURL(s.urlPrefix, key), nil
}

func (s *LocalStore) RemoveAll(ctx context.Context, designID uuid.UUID) error {
	dir := filepath.Join(s.baseDir, designID.String())
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove asset dir %s: %w", dir, err)
	}
	return nil
}

// Dir is the root directory assets are written under.
func (s *LocalStore) Dir() string { return s.baseDir }
