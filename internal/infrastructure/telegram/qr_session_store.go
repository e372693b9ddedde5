package telegram

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	sessionerrors "github.com/Conte777/reaction-service/internal/domain/session/errors"
)

// qrAttempt holds runtime data of one QR login
type qrAttempt struct {
	id         string
	login      entities.QRLogin
	cancelFunc context.CancelFunc
	mu         sync.RWMutex
}

func (a *qrAttempt) setQRCode(url, png string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.login.URL = url
	a.login.QRCodeBase64 = png
	a.login.UpdatedAt = time.Now()
}

func (a *qrAttempt) setStatus(status entities.QRStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.login.Status = status
	a.login.UpdatedAt = time.Now()
}

// setError marks the attempt failed unless it already finished
func (a *qrAttempt) setError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.login.IsTerminal() {
		return
	}
	a.login.Status = entities.QRStatusFailed
	if err != nil {
		a.login.Error = err.Error()
	}
	a.login.UpdatedAt = time.Now()
}

func (a *qrAttempt) setSuccess(authToken, phone string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.login.Status = entities.QRStatusSuccess
	a.login.AuthToken = authToken
	a.login.Phone = phone
	a.login.UpdatedAt = time.Now()
}

func (a *qrAttempt) snapshot() *entities.QRLogin {
	a.mu.RLock()
	defer a.mu.RUnlock()
	login := a.login
	return &login
}

// QRSessionStore keeps QR login attempts in memory, addressed by code
type QRSessionStore struct {
	attempts        sync.Map // map[code]*qrAttempt
	sessionTTL      time.Duration
	cleanupInterval time.Duration
	maxSessions     int
	sessionCount    int
	countMu         sync.Mutex
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          zerolog.Logger
}

// NewQRSessionStore creates a new QR session store and starts its cleanup
func NewQRSessionStore(sessionTTL, cleanupInterval time.Duration, maxSessions int, logger zerolog.Logger) *QRSessionStore {
	store := &QRSessionStore{
		sessionTTL:      sessionTTL,
		cleanupInterval: cleanupInterval,
		maxSessions:     maxSessions,
		stopCleanup:     make(chan struct{}),
		logger:          logger.With().Str("component", "qr_session_store").Logger(),
	}

	go store.runCleanup()

	return store
}

// store adds an attempt unless the store is full or the code is taken
func (s *QRSessionStore) store(a *qrAttempt) (bool, error) {
	s.countMu.Lock()
	defer s.countMu.Unlock()

	if s.sessionCount >= s.maxSessions {
		return false, sessionerrors.ErrQRMaxSessions
	}

	if _, loaded := s.attempts.LoadOrStore(a.login.Code, a); loaded {
		return false, nil
	}

	s.sessionCount++
	s.logger.Debug().Str("attempt_id", a.id).Msg("attempt stored")
	return true, nil
}

// load returns an attempt by code. A pending attempt past its deadline
// is marked expired and cancelled.
func (s *QRSessionStore) load(code string) (*qrAttempt, error) {
	value, ok := s.attempts.Load(code)
	if !ok {
		return nil, sessionerrors.ErrQRNotFound
	}

	a := value.(*qrAttempt)
	snap := a.snapshot()
	if !snap.IsTerminal() && snap.IsExpired(time.Now()) {
		a.setStatus(entities.QRStatusExpired)
		s.cancel(a)
		return nil, sessionerrors.ErrQRExpired
	}

	return a, nil
}

// delete removes an attempt from the store
func (s *QRSessionStore) delete(code string) {
	if _, loaded := s.attempts.LoadAndDelete(code); loaded {
		s.countMu.Lock()
		s.sessionCount--
		s.countMu.Unlock()
	}
}

func (s *QRSessionStore) cancel(a *qrAttempt) {
	a.mu.RLock()
	cancel := a.cancelFunc
	a.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Cleanup removes pending attempts older than the TTL and finished ones
// older than twice the TTL. Returns the number of removed attempts.
func (s *QRSessionStore) Cleanup() int {
	now := time.Now()
	var toDelete []*qrAttempt

	s.attempts.Range(func(_, value any) bool {
		a := value.(*qrAttempt)
		snap := a.snapshot()
		retention := s.sessionTTL
		if snap.IsTerminal() {
			retention *= 2
		}
		if now.Sub(snap.CreatedAt) > retention {
			toDelete = append(toDelete, a)
		}
		return true
	})

	for _, a := range toDelete {
		s.cancel(a)
		s.delete(a.login.Code)
	}

	if len(toDelete) > 0 {
		s.logger.Info().Int("removed", len(toDelete)).Msg("cleaned up expired QR logins")
	}

	return len(toDelete)
}

// Count returns the current number of stored attempts
func (s *QRSessionStore) Count() int {
	s.countMu.Lock()
	defer s.countMu.Unlock()
	return s.sessionCount
}

// Stop cancels every running attempt and stops the cleanup goroutine
func (s *QRSessionStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
		s.attempts.Range(func(_, value any) bool {
			a := value.(*qrAttempt)
			if !a.snapshot().IsTerminal() {
				a.setStatus(entities.QRStatusCancelled)
			}
			s.cancel(a)
			return true
		})
	})
}

func (s *QRSessionStore) runCleanup() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}
