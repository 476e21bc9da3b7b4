package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"api/internal/configuration"
	apierrors "api/internal/errors"
	"api/internal/models"
	"api/internal/tests"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func serveTwoFactorValidate(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	recorder := httptest.NewRecorder()
	var nextCalled bool
	handler := TwoFactorValidate(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusOK)
		}),
	)
	handler.ServeHTTP(recorder, req)

	return recorder, nextCalled
}

func sessionClaims(mfa bool) models.UserClaims {
	return models.UserClaims{
		UserID: uuid.New(),
		Email:  "analyst@loanpilot.test",
		Role:   models.RoleUser,
		Aud:    configuration.AudienceSession,
		MFA:    mfa,
	}
}

func TestTwoFactorValidate(t *testing.T) {
	t.Run("should pass excluded routes without claims", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req = req.WithContext(context.WithValue(req.Context(), AuthExcludedKey{}, true))

		recorder, nextCalled := serveTwoFactorValidate(t, req)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.True(t, nextCalled)
	})

	t.Run("should refuse protected routes without claims", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/2fa/status", nil)

		recorder, nextCalled := serveTwoFactorValidate(t, req)

		assert.False(t, nextCalled)
		expected := models.Error{
			Errors:  []string{apierrors.ErrForbidden},
			Message: apierrors.MessageFor(apierrors.ErrForbidden),
		}
		tests.AssertJSONResponse(t, recorder, 403, expected)
	})

	t.Run("should pass a completed session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/2fa/status", nil)
		req = req.WithContext(context.WithValue(req.Context(), models.UserClaimKey{}, sessionClaims(true)))

		_, nextCalled := serveTwoFactorValidate(t, req)

		assert.True(t, nextCalled)
	})

	t.Run("should block a pending session on a protected route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/2fa/status", nil)
		req = req.WithContext(context.WithValue(req.Context(), models.UserClaimKey{}, sessionClaims(false)))

		recorder, nextCalled := serveTwoFactorValidate(t, req)

		assert.False(t, nextCalled)
		expected := models.Error{
			Errors:  []string{apierrors.ErrTwoFactorRequired},
			Message: apierrors.MessageFor(apierrors.ErrTwoFactorRequired),
		}
		tests.AssertJSONResponse(t, recorder, 403, expected)
	})

	t.Run("should let a pending session log out", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req = req.WithContext(context.WithValue(req.Context(), models.UserClaimKey{}, sessionClaims(false)))

		_, nextCalled := serveTwoFactorValidate(t, req)

		assert.True(t, nextCalled)
	})

	t.Run("should not bypass logout on the wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/logout", nil)
		req = req.WithContext(context.WithValue(req.Context(), models.UserClaimKey{}, sessionClaims(false)))

		recorder, nextCalled := serveTwoFactorValidate(t, req)

		assert.False(t, nextCalled)
		assert.Equal(t, 403, recorder.Code)
	})

	t.Run("should ignore restricted tokens", func(t *testing.T) {
		claims := sessionClaims(false)
		claims.Aud = configuration.AudienceMFAReset

		req := httptest.NewRequest(http.MethodPost, resetCompletePath, nil)
		req = req.WithContext(context.WithValue(req.Context(), models.UserClaimKey{}, claims))

		_, nextCalled := serveTwoFactorValidate(t, req)

		assert.True(t, nextCalled, "Audience rules, not session state, govern restricted tokens")
	})

	t.Run("should honor pattern bypass rules", func(t *testing.T) {
		original := configuration.TwoFactorBypassRules
		t.Cleanup(func() { configuration.SetTwoFactorBypassRulesForTesting(original) })

		configuration.SetTwoFactorBypassRulesForTesting([]configuration.TwoFactorBypassRule{
			{Pattern: regexp.MustCompile(`^/api/v1/health/.*$`), Method: "*"},
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
		req = req.WithContext(context.WithValue(req.Context(), models.UserClaimKey{}, sessionClaims(false)))

		_, nextCalled := serveTwoFactorValidate(t, req)

		assert.True(t, nextCalled)
	})
}
