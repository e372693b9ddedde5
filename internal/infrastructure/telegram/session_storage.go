package telegram

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gotd/td/session"
)

// SessionStorageProvider returns the MTProto session storage of a phone number
type SessionStorageProvider interface {
	ForPhone(phone string) (session.Storage, error)
}

// FileSessionStorage implements session.Storage interface for persistent session storage
type FileSessionStorage struct {
	phoneNumber string
	filePath    string
}

// NewFileSessionStorage creates a new file-based session storage
func NewFileSessionStorage(sessionDir, phoneNumber string) (*FileSessionStorage, error) {
	if phoneNumber == "" {
		return nil, fmt.Errorf("phone number is required")
	}

	if err := os.MkdirAll(sessionDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	return &FileSessionStorage{
		phoneNumber: phoneNumber,
		filePath:    filepath.Join(sessionDir, sessionFileName(phoneNumber)),
	}, nil
}

// sessionFileName keeps only characters that are safe in a file name
func sessionFileName(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '+', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return fmt.Sprintf("session_%s.json", b.String())
}

// LoadSession loads session data from file
func (s *FileSessionStorage) LoadSession(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	// An empty file is a session that was never written
	if len(data) == 0 {
		return nil, session.ErrNotFound
	}

	return data, nil
}

// StoreSession stores session data to file
func (s *FileSessionStorage) StoreSession(_ context.Context, data []byte) error {
	if err := os.WriteFile(s.filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// GetFilePath returns the path to the session file
func (s *FileSessionStorage) GetFilePath() string {
	return s.filePath
}

// DeleteSession removes the session file
func (s *FileSessionStorage) DeleteSession() error {
	if err := os.Remove(s.filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// SessionExists checks if a session file exists
func (s *FileSessionStorage) SessionExists() bool {
	_, err := os.Stat(s.filePath)
	return err == nil
}

// FileSessionProvider keeps one session file per phone number in a directory
type FileSessionProvider struct {
	dir string
}

// NewFileSessionProvider creates a provider rooted at dir
func NewFileSessionProvider(dir string) *FileSessionProvider {
	return &FileSessionProvider{dir: dir}
}

// ForPhone returns the file storage of phone
func (p *FileSessionProvider) ForPhone(phone string) (session.Storage, error) {
	return NewFileSessionStorage(p.dir, phone)
}

// MemorySessionStorage holds a session in memory while a QR login runs
type MemorySessionStorage struct {
	mu   sync.Mutex
	data []byte
}

// NewMemorySessionStorage creates a new memory session storage
func NewMemorySessionStorage() *MemorySessionStorage {
	return &MemorySessionStorage{}
}

// LoadSession loads session data from memory
func (s *MemorySessionStorage) LoadSession(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}

	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, nil
}

// StoreSession stores session data in memory
func (s *MemorySessionStorage) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make([]byte, len(data))
	copy(s.data, data)
	return nil
}

var (
	_ session.Storage        = (*FileSessionStorage)(nil)
	_ session.Storage        = (*MemorySessionStorage)(nil)
	_ SessionStorageProvider = (*FileSessionProvider)(nil)
)
