package helpers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"api/internal/configuration"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

// TOTPKey holds the generated TOTP key information.
type TOTPKey struct {
	Secret string // Base32-encoded secret
	URL    string // otpauth:// URL for QR code generation
}

// GenerateTOTPSecret creates a new TOTP secret for the given email.
// The 20-byte seed gives 160 bits of entropy before base32 encoding.
// Returns the secret and a URL that can be used to generate a QR code.
func GenerateTOTPSecret(email string) (*TOTPKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      configuration.AppName,
		AccountName: email,
		SecretSize:  20,
	})
	if err != nil {
		return nil, err
	}

	return &TOTPKey{
		Secret: key.Secret(),
		URL:    key.URL(),
	}, nil
}

// GenerateTOTPSecretWithEmail creates a TOTP URL using an existing secret and email.
func GenerateTOTPSecretWithEmail(email string, secret string) (*TOTPKey, error) {
	url := fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		configuration.AppName, email, secret, configuration.AppName)
	return &TOTPKey{
		Secret: secret,
		URL:    url,
	}, nil
}

// totpValidateOpts accepts codes up to two 30-second steps away from server
// time in either direction. Comparison inside the library is constant time.
var totpValidateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      2,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// ValidateTOTPCode validates a 6-digit TOTP code against the given secret,
// tolerating clock drift within the configured window.
func ValidateTOTPCode(secret string, code string) bool {
	return ValidateTOTPCodeAt(secret, code, time.Now())
}

// ValidateTOTPCodeAt is ValidateTOTPCode against an explicit reference time.
func ValidateTOTPCodeAt(secret string, code string, t time.Time) bool {
	valid, err := totp.ValidateCustom(code, secret, t.UTC(), totpValidateOpts)
	if err != nil {
		return false
	}
	return valid
}

// RenderProvisioningImage encodes an otpauth:// provisioning URL as a PNG
// QR code. A URL that does not parse as a provisioning key is rejected
// before encoding.
func RenderProvisioningImage(url string) ([]byte, error) {
	if _, err := otp.NewKeyFromURL(url); err != nil {
		return nil, fmt.Errorf("malformed provisioning url: %w", err)
	}

	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provisioning url: %w", err)
	}
	return png, nil
}

// GenerateBackupCodes returns count single-use codes, each
// configuration.BackupCodeLength uppercase hex characters. Their length keeps
// them distinguishable from 6-digit TOTP codes, which is what routes a
// submission to the right verifier.
func GenerateBackupCodes(count int) ([]string, error) {
	codes := make([]string, count)
	for i := range codes {
		raw := make([]byte, configuration.BackupCodeLength/2)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		codes[i] = strings.ToUpper(hex.EncodeToString(raw))
	}
	return codes, nil
}
