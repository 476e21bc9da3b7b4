package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestInitDBSqlite(t *testing.T) {
	db := InitDB(models.DatabaseConfiguration{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "loanpilot.db"),
	})

	user := models.User{
		Email:        "sqlite@loanpilot.test",
		ProviderType: models.LocalProviderType,
		ProviderKey:  string(models.LocalProviderType),
		Role:         models.RoleUser,
	}
	require.NoError(t, db.Create(&user).Error)

	session := models.LoginSession{
		SubjectID:         user.ID,
		TokenHash:         "deadbeef",
		TwoFactorComplete: true,
		ExpiresAt:         time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(&session).Error)

	var loaded models.LoginSession
	require.NoError(t, db.Where("token_hash = ?", "deadbeef").First(&loaded).Error)
	assert.Equal(t, user.ID, loaded.SubjectID)
	assert.True(t, loaded.TwoFactorComplete)
}

func TestInitDBPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("loanpilot"),
		postgres.WithUsername("loanpilot"),
		postgres.WithPassword("loanpilot"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db := InitDB(models.DatabaseConfiguration{
		Type:     "postgres",
		Host:     host,
		Port:     int32(port.Int()),
		User:     "loanpilot",
		Password: "loanpilot",
		Name:     "loanpilot",
		SSLMode:  "disable",
	})

	user := models.User{
		Email:        "postgres@loanpilot.test",
		ProviderType: models.LocalProviderType,
		ProviderKey:  string(models.LocalProviderType),
		Role:         models.RoleUser,
	}
	require.NoError(t, db.Create(&user).Error)

	credential := models.TwoFactorCredential{
		SubjectID:   user.ID,
		Secret:      "sealed",
		Enabled:     true,
		BackupCodes: []string{"A1B2C3D4", "E5F6A7B8"},
	}
	require.NoError(t, db.Create(&credential).Error)

	var loaded models.TwoFactorCredential
	require.NoError(t, db.Where("subject_id = ?", user.ID).First(&loaded).Error)
	assert.Len(t, loaded.BackupCodes, 2)
	assert.Contains(t, loaded.BackupCodes, "A1B2C3D4")
}
