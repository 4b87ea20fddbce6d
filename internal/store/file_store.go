package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTokenFile is relative to the user's config directory.
const DefaultTokenFile = "wellness/session.yaml"

type tokenFile struct {
	Token         string    `yaml:"token,omitempty"`
	SessionCookie string    `yaml:"session_cookie,omitempty"`
	SavedAt       time.Time `yaml:"saved_at"`
}

// FileStore keeps the slot in a yaml file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFilePath resolves DefaultTokenFile under os.UserConfigDir.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determining config directory: %w", err)
	}
	return filepath.Join(dir, DefaultTokenFile), nil
}

func (s *FileStore) Load(context.Context) (Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Slot{}, ErrTokenNotFound
	}
	if err != nil {
		return Slot{}, fmt.Errorf("reading token file: %w", err)
	}

	var f tokenFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Slot{}, fmt.Errorf("parsing token file %s: %w", s.path, err)
	}
	slot := Slot{Token: f.Token, SessionCookie: f.SessionCookie}
	if slot.IsZero() {
		return Slot{}, ErrTokenNotFound
	}
	return slot, nil
}

func (s *FileStore) Save(_ context.Context, slot Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(tokenFile{
		Token:         slot.Token,
		SessionCookie: slot.SessionCookie,
		SavedAt:       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding token file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
