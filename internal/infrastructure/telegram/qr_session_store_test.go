package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	sessionerrors "github.com/Conte777/reaction-service/internal/domain/session/errors"
)

func newTestAttempt(code string, createdAt time.Time, ttl time.Duration) *qrAttempt {
	return &qrAttempt{
		id: "attempt-" + code,
		login: entities.QRLogin{
			Code:      code,
			Status:    entities.QRStatusPending,
			CreatedAt: createdAt,
			ExpiresAt: createdAt.Add(ttl),
			UpdatedAt: createdAt,
		},
	}
}

func newTestQRStore(t *testing.T, maxSessions int) *QRSessionStore {
	t.Helper()
	s := NewQRSessionStore(time.Minute, time.Hour, maxSessions, zerolog.Nop())
	t.Cleanup(s.Stop)
	return s
}

func TestQRSessionStore_StoreAndLoad(t *testing.T) {
	s := newTestQRStore(t, 10)

	stored, err := s.store(newTestAttempt("AAAA1111", time.Now(), time.Minute))
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, 1, s.Count())

	a, err := s.load("AAAA1111")
	require.NoError(t, err)
	assert.Equal(t, entities.QRStatusPending, a.snapshot().Status)

	_, err = s.load("MISSING0")
	assert.ErrorIs(t, err, sessionerrors.ErrQRNotFound)
}

func TestQRSessionStore_DuplicateCode(t *testing.T) {
	s := newTestQRStore(t, 10)

	stored, err := s.store(newTestAttempt("AAAA1111", time.Now(), time.Minute))
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = s.store(newTestAttempt("AAAA1111", time.Now(), time.Minute))
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Equal(t, 1, s.Count())
}

func TestQRSessionStore_MaxSessions(t *testing.T) {
	s := newTestQRStore(t, 1)

	_, err := s.store(newTestAttempt("AAAA1111", time.Now(), time.Minute))
	require.NoError(t, err)

	_, err = s.store(newTestAttempt("BBBB2222", time.Now(), time.Minute))
	assert.ErrorIs(t, err, sessionerrors.ErrQRMaxSessions)

	s.delete("AAAA1111")
	assert.Equal(t, 0, s.Count())

	_, err = s.store(newTestAttempt("BBBB2222", time.Now(), time.Minute))
	assert.NoError(t, err)
}

func TestQRSessionStore_LoadExpiredCancels(t *testing.T) {
	s := newTestQRStore(t, 10)

	a := newTestAttempt("AAAA1111", time.Now().Add(-2*time.Minute), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelFunc = cancel
	_, err := s.store(a)
	require.NoError(t, err)

	_, err = s.load("AAAA1111")
	assert.ErrorIs(t, err, sessionerrors.ErrQRExpired)
	assert.Equal(t, entities.QRStatusExpired, a.snapshot().Status)
	assert.Error(t, ctx.Err())

	// Expired attempts stay readable as terminal until cleanup
	got, err := s.load("AAAA1111")
	require.NoError(t, err)
	assert.Equal(t, entities.QRStatusExpired, got.snapshot().Status)
}

func TestQRSessionStore_Cleanup(t *testing.T) {
	s := newTestQRStore(t, 10)
	now := time.Now()

	fresh := newTestAttempt("FRESH001", now, time.Minute)
	stale := newTestAttempt("STALE001", now.Add(-90*time.Second), time.Minute)
	done := newTestAttempt("DONE0001", now.Add(-90*time.Second), time.Minute)
	done.setSuccess("TOKEN001", "+1")
	old := newTestAttempt("OLD00001", now.Add(-3*time.Minute), time.Minute)
	old.setSuccess("TOKEN002", "+2")

	for _, a := range []*qrAttempt{fresh, stale, done, old} {
		_, err := s.store(a)
		require.NoError(t, err)
	}

	removed := s.Cleanup()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 2, s.Count())

	_, err := s.load("FRESH001")
	assert.NoError(t, err)
	_, err = s.load("DONE0001")
	assert.NoError(t, err)
	_, err = s.load("STALE001")
	assert.ErrorIs(t, err, sessionerrors.ErrQRNotFound)
}

func TestQRSessionStore_StopCancelsPending(t *testing.T) {
	s := NewQRSessionStore(time.Minute, time.Hour, 10, zerolog.Nop())

	a := newTestAttempt("AAAA1111", time.Now(), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelFunc = cancel
	_, err := s.store(a)
	require.NoError(t, err)

	s.Stop()
	s.Stop()

	assert.Equal(t, entities.QRStatusCancelled, a.snapshot().Status)
	assert.Error(t, ctx.Err())
}

func TestQRAttempt_SetErrorKeepsTerminal(t *testing.T) {
	a := newTestAttempt("AAAA1111", time.Now(), time.Minute)
	a.setSuccess("TOKEN001", "+1")
	a.setError(assert.AnError)

	snap := a.snapshot()
	assert.Equal(t, entities.QRStatusSuccess, snap.Status)
	assert.Empty(t, snap.Error)
	assert.Equal(t, "TOKEN001", snap.AuthToken)
}

func TestRenderQR(t *testing.T) {
	png, err := renderQR("tg://login?token=abc")
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestQRLoginManager_NewAttemptIsCancellable(t *testing.T) {
	s := newTestQRStore(t, 10)
	m := NewQRLoginManager(s, nil, zerolog.Nop(), nil)

	a, ctx, err := m.newAttempt()
	require.NoError(t, err)
	require.NotNil(t, ctx)
	assert.Equal(t, 1, s.Count())

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.True(t, deadline.Equal(a.snapshot().ExpiresAt))

	// A cancel issued before the run loop starts must still reach it.
	s.cancel(a)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
