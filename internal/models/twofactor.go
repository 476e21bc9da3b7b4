package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// TwoFactorCredential holds the TOTP seed and the unused backup codes for one
// subject. A subject has at most one credential row.
//
// The row is created by setup with Enabled=false and the seed encrypted at
// rest. It becomes Enabled=true only after the subject proves possession of
// the authenticator once, which is also when the first backup-code set is
// issued. A consumed backup code is removed from BackupCodes and never
// reappears except through wholesale regeneration.
type TwoFactorCredential struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	SubjectID   uuid.UUID      `json:"subject_id" gorm:"type:uuid;not null;uniqueIndex"`
	Secret      string         `json:"-" gorm:"not null"`
	Enabled     bool           `json:"enabled" gorm:"not null;default:false"`
	BackupCodes pq.StringArray `json:"-" gorm:"type:text[]"`
	LastUsedAt  *time.Time     `json:"last_used_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (c *TwoFactorCredential) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *TwoFactorCredential) ToActivity() map[string]any {
	return map[string]any{
		"id":         c.ID.String(),
		"subject_id": c.SubjectID.String(),
		"enabled":    c.Enabled,
	}
}

// VerificationAttempt is one append-only row per second-factor verification
// call, stored for security review. TokenFragment keeps only a short masked
// prefix of the submitted value, never the code itself.
type VerificationAttempt struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SubjectID     uuid.UUID `json:"subject_id" gorm:"type:uuid;not null;index"`
	ClientIP      string    `json:"client_ip"`
	Success       bool      `json:"success" gorm:"not null"`
	TokenFragment string    `json:"token_fragment"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
}

func (a *VerificationAttempt) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type TwoFactorSetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCode          string `json:"qr_code"`
}

type TwoFactorVerifySetupBody struct {
	Token string `json:"token" validate:"required,len=6,numeric"`
}

type TwoFactorVerifySetupResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// TwoFactorVerifyBody is the second-factor step of login. SessionToken is the
// raw pending-session token from the password step, not an Authorization
// header value.
type TwoFactorVerifyBody struct {
	SessionToken string `json:"session_token" validate:"required"`
	Token        string `json:"token" validate:"required,min=6,max=8"`
}

type TwoFactorDisableBody struct {
	Password string `json:"password" validate:"required"`
	Token    string `json:"token" validate:"required,min=6,max=8"`
}

type TwoFactorStatusResponse struct {
	Enabled              bool       `json:"enabled"`
	SetupInitiated       bool       `json:"setup_initiated"`
	LastUsedAt           *time.Time `json:"last_used_at"`
	BackupCodesRemaining int        `json:"backup_codes_remaining"`
}

type TwoFactorBackupCodesBody struct {
	Token string `json:"token" validate:"required,len=6,numeric"`
}

type TwoFactorBackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}
