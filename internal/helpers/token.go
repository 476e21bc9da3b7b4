package helpers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"time"

	"api/internal/configuration"
	"api/internal/models"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionTokenBytes = 32

// RandomToken returns a URL-safe random string with 256 bits of entropy.
func RandomToken() (string, error) {
	raw := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// NewSessionToken returns a fresh opaque bearer token together with the
// SHA-256 hex digest that is persisted in its place. The raw token is never
// stored anywhere.
func NewSessionToken() (string, string, error) {
	token, err := RandomToken()
	if err != nil {
		return "", "", err
	}
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the storage digest of a raw session token.
func HashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// tokenConfig holds configuration for creating a specific restricted token type.
type tokenConfig struct {
	audience      string
	provider      string
	mfa           *bool // nil = don't set (defaults to false), otherwise set to this value
	expiryMinutes int
	challengeID   *uuid.UUID
}

func boolPtr(b bool) *bool {
	return &b
}

// createToken is a generic helper for creating JWT tokens with specified configuration.
func createToken(jwtSecret string, user *models.User, config tokenConfig) (string, error) {
	claims := models.UserClaims{
		Email:    user.Email,
		UserID:   user.ID,
		Role:     user.Role,
		Aud:      config.audience,
		Provider: config.provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    configuration.AppName,
			IssuedAt:  &jwt.NumericDate{Time: time.Now()},
			ExpiresAt: &jwt.NumericDate{Time: time.Now().Add(time.Minute * time.Duration(config.expiryMinutes))},
		},
	}

	if config.mfa != nil {
		claims.MFA = *config.mfa
	}

	if config.challengeID != nil {
		claims.ChallengeID = config.challengeID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// ParseToken parses and validates a JWT token without audience validation.
// It validates signature and expiry only. Audience validation is delegated to
// the AudienceValidate middleware for route-specific rules.
// The requireBearer parameter controls whether the "Bearer " prefix is required.
func ParseToken(jwtSecret string, tokenString string, requireBearer bool) (models.UserClaims, error) {
	if requireBearer {
		if !strings.HasPrefix(tokenString, "Bearer ") {
			return models.UserClaims{}, errors.New("invalid token")
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	}

	claims := &models.UserClaims{}

	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(jwtSecret), nil
		},
	)
	if err != nil {
		return models.UserClaims{}, errors.New("invalid token")
	}

	return *claims, nil
}

func CreateHash(password string) (string, error) {
	argonParams := argon2id.Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  32,
		KeyLength:   32,
	}
	hash, err := argon2id.CreateHash(password, &argonParams)
	if err != nil {
		return "", errors.New("can not create hash password")
	}

	return hash, nil
}

func GetUserClaims(c context.Context) (models.UserClaims, error) {
	value, ok := c.Value(models.UserClaimKey{}).(models.UserClaims)
	if !ok {
		return models.UserClaims{}, errors.New("invalid user claims")
	}
	return value, nil
}

// GenerateSecret returns a short emailable challenge code.
func GenerateSecret() (string, error) {
	const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const secretLength = 6
	secret := make([]byte, secretLength)
	for i := range secret {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		secret[i] = charset[n.Int64()]
	}
	return string(secret), nil
}

// NewRestrictedAccessToken creates a short-lived JWT scoped to one flow by its
// audience. It is the only bearer format accepted on the matching routes and
// is rejected everywhere a full login session is expected.
// For the password reset flow, challengeID links the token to the challenge.
func NewRestrictedAccessToken(
	jwtSecret string,
	user *models.User,
	audience string,
	mfaVerified bool,
	challengeID *uuid.UUID,
	expiryMinutes int,
) (string, error) {
	return createToken(jwtSecret, user, tokenConfig{
		audience:      audience,
		provider:      string(user.ProviderType),
		mfa:           boolPtr(mfaVerified),
		expiryMinutes: expiryMinutes,
		challengeID:   challengeID,
	})
}
