package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database.json")
	s := NewFileStore(path, zerolog.Nop(), metrics.GetDefaultMetrics())
	t.Cleanup(s.Close)
	return s, path
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	s, _ := newTestStore(t)

	doc := s.Load()
	require.NotNil(t, doc)
	assert.Empty(t, doc.Users)
	assert.Empty(t, doc.TempSessions)
	assert.NotNil(t, doc.Users)
	assert.NotNil(t, doc.TempSessions)
}

func TestFileStore_LoadCorruptedFileIsEmpty(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	doc := s.Load()
	assert.Empty(t, doc.Users)
	assert.Empty(t, doc.TempSessions)
}

func TestFileStore_LoadNullMaps(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"users":null,"temp_sessions":{"X":null}}`), 0o600))

	doc := s.Load()
	assert.NotNil(t, doc.Users)
	assert.Empty(t, doc.TempSessions)
}

func TestFileStore_UpdatePersists(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	group := int64(-100123)
	err := s.Update(ctx, func(doc *entities.Document) error {
		doc.Users["TOKEN123"] = &entities.UserRecord{
			UserID:  42,
			Phone:   "+10000000000",
			Active:  true,
			GroupID: &group,
			Emoji:   "🔥",
		}
		return nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"users"`)
	assert.Contains(t, string(data), `"temp_sessions"`)
	assert.Contains(t, string(data), `"group_id":-100123`)

	var got *entities.UserRecord
	require.NoError(t, s.View(ctx, func(doc *entities.Document) error {
		got = doc.Users["TOKEN123"]
		return nil
	}))
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "🔥", got.Emoji)
	require.NotNil(t, got.GroupID)
	assert.Equal(t, group, *got.GroupID)
}

func TestFileStore_UpdateErrorWritesNothing(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Update(ctx, func(doc *entities.Document) error {
		doc.Users["TOKEN123"] = &entities.UserRecord{Phone: "+1"}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "document must not be written")
}

func TestFileStore_ViewDoesNotWrite(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.View(context.Background(), func(doc *entities.Document) error {
		doc.Users["TOKEN123"] = &entities.UserRecord{Phone: "+1"}
		return nil
	}))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStore_ConcurrentUpdatesAreNotLost(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Update(ctx, func(doc *entities.Document) error {
				doc.TempSessions[fmt.Sprintf("CODE%04d", i)] = &entities.PendingSession{Phone: "+1"}
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.NoError(t, s.View(ctx, func(doc *entities.Document) error {
		assert.Len(t, doc.TempSessions, n)
		return nil
	}))
}

func TestFileStore_ClosedRejectsRequests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	s := NewFileStore(path, zerolog.Nop(), metrics.GetDefaultMetrics())
	s.Close()
	s.Close()

	err := s.Update(context.Background(), func(doc *entities.Document) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFileStore_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	s := NewFileStore(path, zerolog.Nop(), metrics.GetDefaultMetrics())
	defer s.Close()

	// Occupy the owner goroutine so the next submission blocks
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.View(context.Background(), func(doc *entities.Document) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Update(ctx, func(doc *entities.Document) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
}
