package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ProviderType string

const (
	LocalProviderType ProviderType = "local"
	OIDCProviderType  ProviderType = "oidc"
)

// UserClaimKey is the context key under which the authenticator stores the
// resolved identity of the request.
type UserClaimKey struct{}

// BodyKey and QueryKey are the context keys under which the validation
// middlewares store the decoded request body and query parameters for the
// generic handlers.
type (
	BodyKey  struct{}
	QueryKey struct{}
)

// UserClaims is the identity envelope handler methods receive. It is built
// either from a login-session row (Aud is the session audience and MFA mirrors
// the session's TwoFactorComplete flag) or from a restricted JWT minted for a
// narrow flow such as password reset.
type UserClaims struct {
	UserID      uuid.UUID  `json:"user_id"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Aud         string     `json:"aud"`
	MFA         bool       `json:"mfa"`
	Provider    string     `json:"provider,omitempty"`
	ChallengeID *uuid.UUID `json:"challenge_id,omitempty"`
	jwt.RegisteredClaims

	// SessionTokenHash is set only when the claims come from a login session.
	// Logout deletes the caller's own session through it.
	SessionTokenHash string `json:"-"`

	// ClientIP and UserAgent are filled from the request by the handler layer
	// regardless of how (or whether) the request authenticated.
	ClientIP  string `json:"-"`
	UserAgent string `json:"-"`
}

type AuthLoginBody struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// AuthLoginResponse carries the raw session token. When TwoFactorRequired is
// true the token identifies a pending session that only the second-factor
// verification and logout endpoints accept.
type AuthLoginResponse struct {
	Token             string    `json:"token"`
	TwoFactorRequired bool      `json:"two_factor_required"`
	ExpiresAt         time.Time `json:"expires_at"`
}

type ProviderResponse struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Type    ProviderType `json:"type"`
	Domains []string     `json:"domains"`
}

type PasswordResetRequestBody struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// PasswordResetValidateBody is used for code verification only.
// Password is submitted in a separate step via PasswordResetCompleteBody.
type PasswordResetValidateBody struct {
	Code string `json:"code" validate:"required,len=6,alphanum"`
}

type PasswordResetValidateResponse struct {
	ResetToken        string `json:"reset_token"`
	TwoFactorRequired bool   `json:"two_factor_required"`
}

// PasswordResetCompleteBody is used for the final password reset step.
// Authorization is handled via restricted access token in header. Subjects
// with an enabled second-factor credential must also submit a code.
type PasswordResetCompleteBody struct {
	NewPassword   string `json:"new_password" validate:"required,min=8,max=72"`
	TwoFactorCode string `json:"two_factor_code" validate:"omitempty,min=6,max=8"`
}
