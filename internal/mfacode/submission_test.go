package mfacode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParse tests submission classification.
func TestParse(t *testing.T) {
	t.Run("should classify a 6 digit code as TOTP", func(t *testing.T) {
		submission := Parse("123456")

		assert.Equal(t, KindTOTP, submission.Kind)
		assert.Equal(t, "123456", submission.Code)
	})

	t.Run("should classify an 8 character code as backup", func(t *testing.T) {
		submission := Parse("99EE3096")

		assert.Equal(t, KindBackup, submission.Kind)
		assert.Equal(t, "99EE3096", submission.Code)
	})

	t.Run("should uppercase backup codes", func(t *testing.T) {
		submission := Parse("99ee3096")

		assert.Equal(t, KindBackup, submission.Kind)
		assert.Equal(t, "99EE3096", submission.Code)
	})

	t.Run("should trim surrounding whitespace", func(t *testing.T) {
		submission := Parse("  123456 ")

		assert.Equal(t, KindTOTP, submission.Kind)
		assert.Equal(t, "123456", submission.Code)
	})

	t.Run("should route other lengths to the TOTP path", func(t *testing.T) {
		submission := Parse("12345")

		assert.Equal(t, KindTOTP, submission.Kind)
	})
}

// TestMask tests audit fragment masking.
func TestMask(t *testing.T) {
	t.Run("should keep only a two character prefix", func(t *testing.T) {
		assert.Equal(t, "12****", Mask("123456"))
		assert.Equal(t, "99****", Mask("99EE3096"))
	})

	t.Run("should never return the full value", func(t *testing.T) {
		masked := Mask("123456")

		assert.NotContains(t, masked, "3456")
	})

	t.Run("should handle short input", func(t *testing.T) {
		assert.Equal(t, "****", Mask(""))
		assert.Equal(t, "****", Mask("1"))
	})
}

// TestVerifyBackupCode tests single-use backup code consumption.
func TestVerifyBackupCode(t *testing.T) {
	t.Run("should match a stored code and remove it", func(t *testing.T) {
		stored := []string{"99EE3096", "9D062644"}

		valid, remaining := VerifyBackupCode("99EE3096", stored)

		assert.True(t, valid)
		assert.Equal(t, []string{"9D062644"}, remaining)
	})

	t.Run("should fail a second use of the same code", func(t *testing.T) {
		stored := []string{"99EE3096", "9D062644"}

		valid, remaining := VerifyBackupCode("99EE3096", stored)
		assert.True(t, valid)

		valid, remaining = VerifyBackupCode("99EE3096", remaining)

		assert.False(t, valid)
		assert.Equal(t, []string{"9D062644"}, remaining)
	})

	t.Run("should match case insensitively", func(t *testing.T) {
		stored := []string{"99EE3096"}

		valid, remaining := VerifyBackupCode("99ee3096", stored)

		assert.True(t, valid)
		assert.Empty(t, remaining)
	})

	t.Run("should not match an unknown code", func(t *testing.T) {
		stored := []string{"99EE3096", "9D062644"}

		valid, remaining := VerifyBackupCode("AAAAAAAA", stored)

		assert.False(t, valid)
		assert.Equal(t, stored, remaining)
	})

	t.Run("should preserve the order of surviving codes", func(t *testing.T) {
		stored := []string{"AAAA1111", "BBBB2222", "CCCC3333"}

		valid, remaining := VerifyBackupCode("BBBB2222", stored)

		assert.True(t, valid)
		assert.Equal(t, []string{"AAAA1111", "CCCC3333"}, remaining)
	})

	t.Run("should handle an empty stored set", func(t *testing.T) {
		valid, remaining := VerifyBackupCode("99EE3096", nil)

		assert.False(t, valid)
		assert.Empty(t, remaining)
	})
}
