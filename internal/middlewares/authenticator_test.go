package middlewares

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"api/internal/configuration"
	apierrors "api/internal/errors"
	"api/internal/helpers"
	"api/internal/models"
	"api/internal/tests"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const authTestJWTSecret = "test-secret-key-for-authenticator-testing"

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func(db *sql.DB) func() {
		return func() { _ = db.Close() }
	}(db))

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// expectSessionLookup arms the queries GetSessionByTokenHash issues: the
// session row, the subject preload and the credential preload.
func expectSessionLookup(
	mock sqlmock.Sqlmock,
	tokenHash string,
	userID uuid.UUID,
	twoFactorComplete bool,
	expiresAt time.Time,
) {
	sessionRows := sqlmock.NewRows(
		[]string{"id", "subject_id", "token_hash", "two_factor_complete", "expires_at"},
	).AddRow(uuid.New(), userID, tokenHash, twoFactorComplete, expiresAt)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "login_sessions" WHERE token_hash = $1`)).
		WillReturnRows(sessionRows)

	userRows := sqlmock.NewRows([]string{"id", "email", "role", "provider_type"}).
		AddRow(userID, "analyst@loanpilot.test", "user", "local")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WillReturnRows(userRows)

	credentialRows := sqlmock.NewRows([]string{"id", "subject_id", "enabled"})
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "two_factor_credentials"`)).
		WillReturnRows(credentialRows)
}

func TestAuthenticate_ExcludedRoutes(t *testing.T) {
	t.Run("should pass login through unauthenticated and mark the exclusion", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		recorder := httptest.NewRecorder()

		var excluded bool
		handler := Authenticate(nil, authTestJWTSecret)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				excluded, _ = r.Context().Value(AuthExcludedKey{}).(bool)
				w.WriteHeader(http.StatusOK)
			}),
		)
		handler.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.True(t, excluded, "Exclusion flag should be set for downstream middlewares")
	})

	t.Run("should exclude the second-factor login step", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/2fa/verify", nil)
		recorder := httptest.NewRecorder()

		var nextCalled bool
		handler := Authenticate(nil, authTestJWTSecret)(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			}),
		)
		handler.ServeHTTP(recorder, req)

		assert.True(t, nextCalled)
	})

	t.Run("should still require auth for logout under the public auth prefix", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		recorder := httptest.NewRecorder()

		handler := Authenticate(nil, authTestJWTSecret)(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)
		handler.ServeHTTP(recorder, req)

		expected := models.Error{
			Errors:  []string{apierrors.ErrSessionNotFound},
			Message: apierrors.MessageFor(apierrors.ErrSessionNotFound),
		}
		tests.AssertJSONResponse(t, recorder, 401, expected)
	})

	t.Run("should require auth for password reset completion", func(t *testing.T) {
		path := "/api/v1/auth/reset-password/550e8400-e29b-41d4-a716-446655440000/complete"
		req := httptest.NewRequest(http.MethodPost, path, nil)
		recorder := httptest.NewRecorder()

		handler := Authenticate(nil, authTestJWTSecret)(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)
		handler.ServeHTTP(recorder, req)

		assert.Equal(t, 401, recorder.Code)
	})

	t.Run("should require auth for unmatched paths", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
		recorder := httptest.NewRecorder()

		handler := Authenticate(nil, authTestJWTSecret)(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)
		handler.ServeHTTP(recorder, req)

		assert.Equal(t, 401, recorder.Code)
	})
}

func TestAuthenticate_SessionTokens(t *testing.T) {
	t.Run("should resolve a valid session token into claims", func(t *testing.T) {
		gormDB, mock := newMockDB(t)

		userID := uuid.New()
		token := "raw-opaque-session-token"
		expectSessionLookup(mock, helpers.HashSessionToken(token), userID, true, time.Now().Add(time.Hour))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/2fa/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		recorder := httptest.NewRecorder()

		var gotClaims models.UserClaims
		handler := Authenticate(gormDB, authTestJWTSecret)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotClaims, _ = r.Context().Value(models.UserClaimKey{}).(models.UserClaims)
				w.WriteHeader(http.StatusOK)
			}),
		)
		handler.ServeHTTP(recorder, req)

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, userID, gotClaims.UserID)
		assert.Equal(t, "analyst@loanpilot.test", gotClaims.Email)
		assert.Equal(t, configuration.AudienceSession, gotClaims.Aud)
		assert.True(t, gotClaims.MFA)
		assert.Equal(t, helpers.HashSessionToken(token), gotClaims.SessionTokenHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should carry the pending state of an unverified session", func(t *testing.T) {
		gormDB, mock := newMockDB(t)

		token := "pending-session-token"
		expectSessionLookup(mock, helpers.HashSessionToken(token), uuid.New(), false, time.Now().Add(time.Hour))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		recorder := httptest.NewRecorder()

		var gotClaims models.UserClaims
		handler := Authenticate(gormDB, authTestJWTSecret)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotClaims, _ = r.Context().Value(models.UserClaimKey{}).(models.UserClaims)
				w.WriteHeader(http.StatusOK)
			}),
		)
		handler.ServeHTTP(recorder, req)

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.False(t, gotClaims.MFA, "Pending sessions must surface MFA=false")
	})

	t.Run("should reject an unknown token", func(t *testing.T) {
		gormDB, mock := newMockDB(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "login_sessions" WHERE token_hash = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/2fa/status", nil)
		req.Header.Set("Authorization", "Bearer unknown-token")
		recorder := httptest.NewRecorder()

		handler := Authenticate(gormDB, authTestJWTSecret)(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)
		handler.ServeHTTP(recorder, req)

		expected := models.Error{
			Errors:  []string{apierrors.ErrSessionNotFound},
			Message: apierrors.MessageFor(apierrors.ErrSessionNotFound),
		}
		tests.AssertJSONResponse(t, recorder, 401, expected)
	})

	t.Run("should reject an expired session", func(t *testing.T) {
		gormDB, mock := newMockDB(t)

		token := "stale-session-token"
		expectSessionLookup(mock, helpers.HashSessionToken(token), uuid.New(), true, time.Now().Add(-time.Minute))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/2fa/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		recorder := httptest.NewRecorder()

		handler := Authenticate(gormDB, authTestJWTSecret)(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)
		handler.ServeHTTP(recorder, req)

		expected := models.Error{
			Errors:  []string{apierrors.ErrSessionExpired},
			Message: apierrors.MessageFor(apierrors.ErrSessionExpired),
		}
		tests.AssertJSONResponse(t, recorder, 401, expected)
	})

	t.Run("should reject requests without a bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/2fa/status", nil)
		recorder := httptest.NewRecorder()

		handler := Authenticate(nil, authTestJWTSecret)(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)
		handler.ServeHTTP(recorder, req)

		assert.Equal(t, 401, recorder.Code)
	})
}

func TestAuthenticate_RestrictedTokens(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "analyst@loanpilot.test",
		Role:         models.RoleUser,
		ProviderType: models.LocalProviderType,
	}

	t.Run("should resolve a restricted reset token by its shape", func(t *testing.T) {
		token, err := helpers.NewRestrictedAccessToken(
			authTestJWTSecret, user, configuration.AudienceMFAReset, true, nil, 5,
		)
		require.NoError(t, err)

		path := "/api/v1/auth/reset-password/550e8400-e29b-41d4-a716-446655440000/complete"
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		recorder := httptest.NewRecorder()

		var gotClaims models.UserClaims
		handler := Authenticate(nil, authTestJWTSecret)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotClaims, _ = r.Context().Value(models.UserClaimKey{}).(models.UserClaims)
				w.WriteHeader(http.StatusOK)
			}),
		)
		handler.ServeHTTP(recorder, req)

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, user.ID, gotClaims.UserID)
		assert.Equal(t, configuration.AudienceMFAReset, gotClaims.Aud)
		assert.Empty(t, gotClaims.SessionTokenHash)
	})

	t.Run("should reject a forged restricted token", func(t *testing.T) {
		token, err := helpers.NewRestrictedAccessToken(
			"some-other-secret", user, configuration.AudienceMFAReset, true, nil, 5,
		)
		require.NoError(t, err)

		path := "/api/v1/auth/reset-password/550e8400-e29b-41d4-a716-446655440000/complete"
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		recorder := httptest.NewRecorder()

		handler := Authenticate(nil, authTestJWTSecret)(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)
		handler.ServeHTTP(recorder, req)

		assert.Equal(t, 401, recorder.Code)
	})
}
