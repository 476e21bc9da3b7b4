package services

import (
	"regexp"
	"testing"
	"time"

	"api/internal/activity"
	"api/internal/configuration"
	apierrors "api/internal/errors"
	"api/internal/helpers"
	"api/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthTestService(t *testing.T) (AuthService, sqlmock.Sqlmock, *MockActivityLogger) {
	t.Helper()

	gormDB, mock := newServiceMockDB(t)
	activityLogger := &MockActivityLogger{}

	service := AuthService{
		DB:         gormDB,
		Cache:      &MockCache{},
		AuthConfig: serviceTestConfig(),
		Providers: configuration.Providers{
			"local": {Name: "Local", Type: models.LocalProviderType, Domains: []string{}},
		},
		Publisher:      &MockPublisher{},
		ActivityLogger: activityLogger,
	}
	return service, mock, activityLogger
}

func expectLoginLookup(mock sqlmock.Sqlmock, user *models.User, credential *models.TwoFactorCredential) {
	userRows := sqlmock.NewRows(
		[]string{"id", "email", "hashed_password", "role", "provider_type", "provider_key"}).
		AddRow(user.ID, user.Email, user.HashedPassword, user.Role, user.ProviderType, user.ProviderKey)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE (email = $1 AND provider_type = $2)`)).
		WillReturnRows(userRows)

	credentialRows := sqlmock.NewRows(
		[]string{"id", "subject_id", "secret", "enabled", "backup_codes", "last_used_at"})
	if credential != nil {
		credentialRows.AddRow(
			credential.ID, credential.SubjectID, credential.Secret,
			credential.Enabled, backupCodesLiteral(credential.BackupCodes), credential.LastUsedAt)
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "two_factor_credentials"`)).
		WillReturnRows(credentialRows)
}

func expectSessionInsert(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "login_sessions"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestLogin(t *testing.T) {
	t.Run("should issue a full session without a second factor", func(t *testing.T) {
		service, mock, activityLogger := newAuthTestService(t)

		user := localTestUser(t, "correct-password")
		expectLoginLookup(mock, user, nil)
		expectSessionInsert(mock)

		response, err := service.Login(
			zap.NewNop(),
			models.UserClaims{ClientIP: testClientIP},
			uuid.UUIDs{},
			models.AuthLoginBody{Email: user.Email, Password: "correct-password"},
		)

		require.NoError(t, err)
		assert.NotEmpty(t, response.Token)
		assert.False(t, response.TwoFactorRequired)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), response.ExpiresAt, 5*time.Second)
		assertActivityLogged(t, activityLogger, activity.UserLoggedIn)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should issue a pending session when a second factor is enabled", func(t *testing.T) {
		service, mock, activityLogger := newAuthTestService(t)

		user := localTestUser(t, "correct-password")
		expectLoginLookup(mock, user, enabledTestCredential(t, user.ID))
		expectSessionInsert(mock)

		response, err := service.Login(
			zap.NewNop(),
			models.UserClaims{ClientIP: testClientIP},
			uuid.UUIDs{},
			models.AuthLoginBody{Email: user.Email, Password: "correct-password"},
		)

		require.NoError(t, err)
		assert.NotEmpty(t, response.Token)
		assert.True(t, response.TwoFactorRequired)
		assert.WithinDuration(t, time.Now().Add(10*time.Minute), response.ExpiresAt, 5*time.Second,
			"pending sessions expire on the short clock")
		assert.Empty(t, activityLogger.sent,
			"login is logged only once the second factor clears")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should answer unknown address and wrong password identically", func(t *testing.T) {
		service, mock, _ := newAuthTestService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE (email = $1 AND provider_type = $2)`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, unknownErr := service.Login(
			zap.NewNop(),
			models.UserClaims{},
			uuid.UUIDs{},
			models.AuthLoginBody{Email: "nobody@loanpilot.test", Password: "whatever"},
		)

		user := localTestUser(t, "correct-password")
		expectLoginLookup(mock, user, nil)

		_, wrongErr := service.Login(
			zap.NewNop(),
			models.UserClaims{},
			uuid.UUIDs{},
			models.AuthLoginBody{Email: user.Email, Password: "wrong-password"},
		)

		var unknownAPIErr, wrongAPIErr *apierrors.APIError
		require.ErrorAs(t, unknownErr, &unknownAPIErr)
		require.ErrorAs(t, wrongErr, &wrongAPIErr)
		assert.Equal(t, unknownAPIErr.Status, wrongAPIErr.Status)
		assert.Equal(t, unknownAPIErr.Code, wrongAPIErr.Code)
		assert.Equal(t, 401, wrongAPIErr.Status)
		assert.Equal(t, apierrors.ErrInvalidCredentials, wrongAPIErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should refuse an address outside the allowed domains", func(t *testing.T) {
		service, mock, _ := newAuthTestService(t)
		service.Providers = configuration.Providers{
			"local": {Name: "Local", Type: models.LocalProviderType, Domains: []string{"loanpilot.test"}},
		}

		_, err := service.Login(
			zap.NewNop(),
			models.UserClaims{},
			uuid.UUIDs{},
			models.AuthLoginBody{Email: "analyst@elsewhere.test", Password: "correct-password"},
		)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 403, apiErr.Status)
		assert.Equal(t, apierrors.ErrForbidden, apiErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLogout(t *testing.T) {
	t.Run("should revoke the session", func(t *testing.T) {
		service, mock, activityLogger := newAuthTestService(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "login_sessions"`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.Logout(
			zap.NewNop(),
			models.UserClaims{UserID: uuid.New(), SessionTokenHash: helpers.HashSessionToken("some-token")},
			uuid.UUIDs{},
		)

		require.NoError(t, err)
		assertActivityLogged(t, activityLogger, activity.UserLoggedOut)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should succeed when the session is already gone", func(t *testing.T) {
		service, mock, activityLogger := newAuthTestService(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "login_sessions"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := service.Logout(
			zap.NewNop(),
			models.UserClaims{UserID: uuid.New(), SessionTokenHash: helpers.HashSessionToken("gone")},
			uuid.UUIDs{},
		)

		require.NoError(t, err)
		assert.Empty(t, activityLogger.sent, "a no-op logout leaves no trace")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should ignore callers without a session", func(t *testing.T) {
		service, mock, _ := newAuthTestService(t)

		err := service.Logout(zap.NewNop(), models.UserClaims{UserID: uuid.New()}, uuid.UUIDs{})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetProviderList(t *testing.T) {
	service, _, _ := newAuthTestService(t)
	service.Providers = configuration.Providers{
		"local":     {Name: "Local", Type: models.LocalProviderType, Domains: []string{}},
		"corporate": {Name: "Corporate SSO", Type: models.OIDCProviderType, Domains: []string{"loanpilot.test"}},
		"partner":   {Name: "Partner IdP", Type: models.OIDCProviderType},
	}

	providers := service.GetProviderList(zap.NewNop(), models.UserClaims{}, uuid.UUIDs{})

	require.Len(t, providers, 3)
	assert.Equal(t, "corporate", providers[0].ID)
	assert.Equal(t, "local", providers[1].ID)
	assert.Equal(t, "partner", providers[2].ID)
	assert.Equal(t, []string{"loanpilot.test"}, providers[0].Domains)
	assert.NotNil(t, providers[2].Domains, "an unset domain list serializes as an empty array")
	assert.Empty(t, providers[2].Domains)
}
