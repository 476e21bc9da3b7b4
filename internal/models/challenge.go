package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChallengeType string

const ChallengeTypePasswordReset ChallengeType = "password_reset"

// Challenge is a short-lived emailed code the subject must echo back before a
// sensitive flow continues. Only the argon2id hash of the code is stored.
// AttemptsLeft decrements on every wrong code; the row is soft deleted once it
// reaches zero or once it expires.
type Challenge struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       *uuid.UUID     `json:"user_id" gorm:"type:uuid;index"`
	Type         ChallengeType  `json:"type" gorm:"not null"`
	HashedSecret string         `json:"-" gorm:"not null"`
	AttemptsLeft int            `json:"attempts_left" gorm:"not null;default:3"`
	ExpiresAt    *time.Time     `json:"expires_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	User *User `json:"-" gorm:"foreignKey:UserID"`
}

func (c *Challenge) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
