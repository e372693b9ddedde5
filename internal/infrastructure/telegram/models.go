package telegram

import "time"

// SessionModel is the MTProto session of one phone number
type SessionModel struct {
	ID          uint      `gorm:"primaryKey"`
	Phone       string    `gorm:"not null;size:32"`
	PhoneHash   string    `gorm:"uniqueIndex;not null;size:64"`
	SessionData []byte    `gorm:"type:bytea;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for SessionModel
func (SessionModel) TableName() string {
	return "telegram_sessions"
}
