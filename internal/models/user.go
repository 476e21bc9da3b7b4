package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is an account on the loan platform. Accounts created through an OIDC
// provider carry the provider key that issued them and have no local password
// hash; their second factor is managed by the provider, never locally.
type User struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Email          string         `json:"email" gorm:"not null"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	HashedPassword string         `json:"-"`
	Role           Role           `json:"role" gorm:"not null;default:user"`
	ProviderType   ProviderType   `json:"provider_type" gorm:"not null;default:local"`
	ProviderKey    string         `json:"provider_key" gorm:"not null;default:local"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	TwoFactorCredential *TwoFactorCredential `json:"-" gorm:"foreignKey:SubjectID"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasLocalCredentials reports whether the account can authenticate with an
// email and password pair on this service.
func (u *User) HasLocalCredentials() bool {
	return u.ProviderType == LocalProviderType && u.HashedPassword != ""
}

// TwoFactorEnabled reports whether the account holds a confirmed second-factor
// credential. Unconfirmed setup rows do not count.
func (u *User) TwoFactorEnabled() bool {
	return u.TwoFactorCredential != nil && u.TwoFactorCredential.Enabled
}

func (u *User) ToActivity() map[string]any {
	return map[string]any{
		"id":    u.ID.String(),
		"email": u.Email,
		"role":  string(u.Role),
	}
}

type UserResponse struct {
	ID               uuid.UUID    `json:"id"`
	Email            string       `json:"email"`
	FirstName        string       `json:"first_name"`
	LastName         string       `json:"last_name"`
	Role             Role         `json:"role"`
	ProviderType     ProviderType `json:"provider_type"`
	TwoFactorEnabled bool         `json:"two_factor_enabled"`
	CreatedAt        time.Time    `json:"created_at"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Role:             u.Role,
		ProviderType:     u.ProviderType,
		TwoFactorEnabled: u.TwoFactorEnabled(),
		CreatedAt:        u.CreatedAt,
	}
}

type UserUpdatePasswordBody struct {
	CurrentPassword string `json:"current_password" validate:"required,max=72"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=72"`
	TwoFactorCode   string `json:"two_factor_code"  validate:"omitempty,min=6,max=8"`
}
