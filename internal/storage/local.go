package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore writes uploads under a directory that the HTTP server exposes
// at PublicPrefix.
type LocalStore struct {
	dir          string
	publicPrefix string
	maxBytes     int64
}

const DefaultPublicPrefix = "/uploads"

func NewLocalStore(dir string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, publicPrefix: DefaultPublicPrefix, maxBytes: maxBytes}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Store(ctx context.Context, up Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext, _, err := checkUpload(up, s.maxBytes)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), up.Data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return s.publicPrefix + "/" + name, nil
}

// Delete removes a previously stored file. Missing files are not an error.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	name := strings.TrimPrefix(path, s.publicPrefix+"/")
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid upload path %q", path)
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
