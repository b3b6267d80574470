// Package session persists the signed-in user's credential between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// Store is the read-only view of the session consumed by the chat client.
type Store interface {
	Credential() string
	Username() string
}

// Data is the persisted session.
type Data struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// FileStore keeps Data in a JSON file on an afero filesystem. Reads are
// served from memory; Reload re-reads the file.
type FileStore struct {
	fs     afero.Fs
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	data Data
}

// NewFileStore opens the session at path. A missing file is an empty session.
func NewFileStore(fs afero.Fs, path string) (*FileStore, error) {
	s := &FileStore{
		fs:     fs,
		path:   path,
		logger: slog.Default().With("component", "session"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Credential returns the stored token, or "" when signed out.
func (s *FileStore) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Token
}

// Username returns the stored username, or "" when signed out.
func (s *FileStore) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Username
}

// Role returns the stored user role.
func (s *FileStore) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Role
}

// Data returns a copy of the whole session.
func (s *FileStore) Data() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Save replaces the session and writes it to disk.
func (s *FileStore) Save(d Data) error {
	payload, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, payload, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	s.mu.Lock()
	s.data = d
	s.mu.Unlock()

	s.logger.Debug("Session saved", "username", d.Username)
	return nil
}

// Clear signs the user out and removes the session file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	s.data = Data{}
	s.mu.Unlock()

	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	s.logger.Debug("Session cleared")
	return nil
}

// Reload re-reads the session file.
func (s *FileStore) Reload() error {
	raw, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.data = Data{}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session file: %w", err)
	}

	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return fmt.Errorf("failed to decode session file %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
	return nil
}

// Static is a fixed in-memory Store, useful when the credential comes from
// somewhere other than the session file.
type Static struct {
	Token string
	User  string
}

// Credential implements Store.
func (s Static) Credential() string { return s.Token }

// Username implements Store.
func (s Static) Username() string { return s.User }
