package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"social-agent/domain/model"
)

// FileCredentialStore keeps one plain-text value per key as a dot-file under a
// base directory (.facebook_token, .tiktok_state, ...). Writes replace the whole
// file; there is no encryption or locking, matching the single-operator design.
type FileCredentialStore struct {
	dir string
}

func NewFileCredentialStore(dir string) *FileCredentialStore {
	if dir == "" {
		dir = "."
	}
	return &FileCredentialStore{dir: dir}
}

func (s *FileCredentialStore) path(key string) string {
	return filepath.Join(s.dir, "."+key)
}

// Get returns "" with a nil error when the key has never been stored.
func (s *FileCredentialStore) Get(ctx context.Context, key string) (string, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("%w: read %s: %v", model.ErrLocalIO, key, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileCredentialStore) Put(ctx context.Context, key, value string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", model.ErrLocalIO, s.dir, err)
	}
	if err := os.WriteFile(s.path(key), []byte(value), 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %v", model.ErrLocalIO, key, err)
	}
	return nil
}

func (s *FileCredentialStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove %s: %v", model.ErrLocalIO, key, err)
	}
	return nil
}
