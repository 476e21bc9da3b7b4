package database

import (
	"fmt"

	"api/internal/database/migrations"
	"api/internal/models"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func InitDB(config models.DatabaseConfiguration) *gorm.DB {
	var db *gorm.DB
	var err error

	switch config.Type {
	case "postgres":
		sslMode := config.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
			config.Host, config.User, config.Password, config.Name, config.Port, sslMode,
		)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(config.Path), &gorm.Config{})
	default:
		zap.L().Fatal("Unsupported database type", zap.String("type", config.Type))
	}
	if err != nil {
		zap.L().Fatal("Failed to connect to database", zap.Error(err))
	}

	runMigrations(db, config.Type)

	return db
}

// runMigrations applies the embedded goose migrations for the active dialect.
func runMigrations(db *gorm.DB, databaseType string) {
	sqlDB, err := db.DB()
	if err != nil {
		zap.L().Fatal("Failed to get database handle", zap.Error(err))
	}

	dialect := databaseType
	if databaseType == "sqlite" {
		dialect = "sqlite3"
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	if err = goose.SetDialect(dialect); err != nil {
		zap.L().Fatal("Failed to set migration dialect", zap.Error(err))
	}

	if err = goose.Up(sqlDB, databaseType); err != nil {
		zap.L().Fatal("Failed to run migrations", zap.Error(err))
	}

	zap.L().Info("Database migrations applied", zap.String("dialect", dialect))
}
