package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoginSession is one issued bearer token. Only the SHA-256 hash of the token
// is persisted; the raw value exists solely in the response that issued it.
//
// A session starts with TwoFactorComplete=false when the subject has a
// confirmed second-factor credential, and is promoted exactly once by the
// verification endpoint. The transition is one way: no session ever moves
// back to TwoFactorComplete=false.
type LoginSession struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SubjectID         uuid.UUID `json:"subject_id" gorm:"type:uuid;not null;index"`
	TokenHash         string    `json:"-" gorm:"not null;uniqueIndex"`
	TwoFactorComplete bool      `json:"two_factor_complete" gorm:"not null;default:false"`
	ExpiresAt         time.Time `json:"expires_at" gorm:"not null;index"`
	IPAddress         string    `json:"ip_address"`
	UserAgent         string    `json:"user_agent"`
	CreatedAt         time.Time `json:"created_at"`

	Subject *User `json:"-" gorm:"foreignKey:SubjectID"`
}

func (s *LoginSession) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *LoginSession) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Pending reports whether the session still awaits second-factor verification.
func (s *LoginSession) Pending() bool {
	return !s.TwoFactorComplete
}
