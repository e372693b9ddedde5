package telegram

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/gotd/td/session"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresSessionStorage implements session.Storage interface using PostgreSQL
type PostgresSessionStorage struct {
	db          *gorm.DB
	phoneNumber string
	phoneHash   string
}

// NewPostgresSessionStorage creates a new PostgreSQL-based session storage
func NewPostgresSessionStorage(db *gorm.DB, phoneNumber string) (*PostgresSessionStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if phoneNumber == "" {
		return nil, fmt.Errorf("phone number is required")
	}

	return &PostgresSessionStorage{
		db:          db,
		phoneNumber: phoneNumber,
		phoneHash:   hashPhone(phoneNumber),
	}, nil
}

func hashPhone(phone string) string {
	hash := sha256.Sum256([]byte(phone))
	return fmt.Sprintf("%x", hash[:])
}

// LoadSession loads session data from PostgreSQL
func (s *PostgresSessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	var sess SessionModel
	err := s.db.WithContext(ctx).Where("phone_hash = ?", s.phoneHash).First(&sess).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if len(sess.SessionData) == 0 {
		return nil, session.ErrNotFound
	}

	return sess.SessionData, nil
}

// StoreSession upserts session data into PostgreSQL
func (s *PostgresSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	sess := SessionModel{
		Phone:       s.phoneNumber,
		PhoneHash:   s.phoneHash,
		SessionData: data,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_data", "updated_at"}),
	}).Create(&sess).Error
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// DeleteSession removes the session from the database
func (s *PostgresSessionStorage) DeleteSession(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("phone_hash = ?", s.phoneHash).Delete(&SessionModel{}).Error
}

// PostgresSessionProvider stores sessions of every phone number in one table
type PostgresSessionProvider struct {
	db *gorm.DB
}

// NewPostgresSessionProvider creates a provider backed by db
func NewPostgresSessionProvider(db *gorm.DB) *PostgresSessionProvider {
	return &PostgresSessionProvider{db: db}
}

// ForPhone returns the PostgreSQL storage of phone
func (p *PostgresSessionProvider) ForPhone(phone string) (session.Storage, error) {
	return NewPostgresSessionStorage(p.db, phone)
}

var (
	_ session.Storage        = (*PostgresSessionStorage)(nil)
	_ SessionStorageProvider = (*PostgresSessionProvider)(nil)
)
