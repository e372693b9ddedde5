package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Conte777/reaction-service/internal/domain/session/deps"
	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
)

// ErrClosed is returned for requests submitted after Close
var ErrClosed = errors.New("store is closed")

type request struct {
	fn     func(doc *entities.Document) error
	write  bool
	result chan error
}

// FileStore keeps the control-state document in a single JSON file.
// One goroutine owns the file: every View and Update is applied in
// submission order, each on a freshly loaded document.
type FileStore struct {
	path    string
	reqs    chan request
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewFileStore creates the store and starts its owner goroutine
func NewFileStore(path string, logger zerolog.Logger, m *metrics.Metrics) *FileStore {
	s := &FileStore{
		path:    path,
		reqs:    make(chan request),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  logger.With().Str("component", "file_store").Str("path", path).Logger(),
		metrics: m,
	}

	go s.run()

	return s
}

// Update loads the document, applies fn and saves the result
func (s *FileStore) Update(ctx context.Context, fn func(doc *entities.Document) error) error {
	return s.submit(ctx, fn, true)
}

// View loads the document and passes it to fn without saving
func (s *FileStore) View(ctx context.Context, fn func(doc *entities.Document) error) error {
	return s.submit(ctx, fn, false)
}

// Close stops the owner goroutine. Requests already accepted complete first.
func (s *FileStore) Close() {
	s.once.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *FileStore) submit(ctx context.Context, fn func(doc *entities.Document) error, write bool) error {
	req := request{fn: fn, write: write, result: make(chan error, 1)}

	select {
	case s.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
		return ErrClosed
	}

	// Once accepted the request runs to completion so the caller never
	// sees a cancellation error for a write that happened.
	return <-req.result
}

func (s *FileStore) run() {
	defer close(s.done)

	for {
		select {
		case req := <-s.reqs:
			req.result <- s.apply(req)
		case <-s.stop:
			return
		}
	}
}

func (s *FileStore) apply(req request) error {
	doc := s.Load()

	if err := req.fn(doc); err != nil {
		return err
	}

	if !req.write {
		return nil
	}

	if err := s.save(doc); err != nil {
		s.metrics.RecordStoreError("save")
		s.logger.Error().Err(err).Msg("failed to save document")
		return err
	}

	s.metrics.RecordStoreWrite()
	return nil
}

// Load reads the document. Any read or parse failure yields an empty
// document: a missing file and a corrupted file look the same to callers.
func (s *FileStore) Load() *entities.Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.metrics.RecordStoreError("read")
			s.logger.Warn().Err(err).Msg("failed to read document, starting empty")
		}
		return entities.NewDocument()
	}

	doc := entities.NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		s.metrics.RecordStoreError("parse")
		s.logger.Warn().Err(err).Msg("failed to parse document, starting empty")
		return entities.NewDocument()
	}

	doc.Normalize()
	return doc
}

// save replaces the file through a temp file and rename
func (s *FileStore) save(doc *entities.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close document: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace document: %w", err)
	}

	return nil
}

var _ deps.Store = (*FileStore)(nil)
