package mfacode

import (
	"crypto/subtle"
	"strings"

	"api/internal/configuration"
)

// Kind says which verifier a submitted code belongs to.
type Kind string

const (
	KindTOTP   Kind = "totp"
	KindBackup Kind = "backup"
)

// Submission is a classified second-factor code. The split keeps the
// length-based dispatch rule in one auditable place instead of scattering
// string-length checks through the services.
type Submission struct {
	Kind Kind
	Code string
}

// Parse classifies a raw submission by the issued code formats: backup codes
// are 8 characters, everything else goes down the TOTP path. Backup codes are
// matched case-insensitively, so they normalize to uppercase here.
func Parse(raw string) Submission {
	code := strings.TrimSpace(raw)

	if len(code) == configuration.BackupCodeLength {
		return Submission{Kind: KindBackup, Code: strings.ToUpper(code)}
	}

	return Submission{Kind: KindTOTP, Code: code}
}

// Mask returns the auditable fragment of a submitted code: a two character
// prefix plus a masking marker. The full value is never retained.
func Mask(raw string) string {
	if len(raw) < 2 {
		return "****"
	}
	return raw[:2] + "****"
}

// VerifyBackupCode scans the stored set for a case-insensitive match and, on
// success, returns the set with that code removed. Every candidate is
// compared in constant time and the scan never exits early, so the call's
// timing does not reveal the match position.
func VerifyBackupCode(submitted string, stored []string) (bool, []string) {
	normalized := strings.ToUpper(strings.TrimSpace(submitted))

	match := -1
	for i, code := range stored {
		if subtle.ConstantTimeCompare([]byte(normalized), []byte(strings.ToUpper(code))) == 1 &&
			match == -1 {
			match = i
		}
	}

	if match == -1 {
		return false, stored
	}

	remaining := make([]string, 0, len(stored)-1)
	remaining = append(remaining, stored[:match]...)
	remaining = append(remaining, stored[match+1:]...)
	return true, remaining
}
