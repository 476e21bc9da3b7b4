package main

import (
	"context"

	"api/internal/configuration"
	"api/internal/core"
	"api/internal/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	zap.ReplaceGlobals(zap.Must(zap.NewProduction()))

	config := configuration.Read()
	core.NewLogger(config.App.LogLevel)

	shutdownTelemetry := core.InitTelemetry(config.Telemetry)
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			zap.L().Error("Failed to flush telemetry", zap.Error(err))
		}
	}()

	profile := configuration.GetProfile(config.App.Profile)

	db := database.InitDB(config.Database)
	cache := core.NewCache(config.Cache)
	notify := core.NewNotifier(config.Notifier)
	activityLogger := core.NewActivityLogger(config.Activity)

	var eventsManager *core.EventsManager
	if profile.NeedsEvents() {
		eventsManager = core.NewEventsManager(config.Events)
	}

	if profile.HTTPServer {
		core.CreateAdminUser(db, config)
	}

	appIdentity := uuid.New().String()

	if cache != nil {
		go cache.StartIdentityTicker(appIdentity)
		zap.L().Info("Cache identity ticker started")
	}

	if profile.Workers.AnyEnabled() {
		core.StartWorkers(
			profile,
			eventsManager,
			db,
			activityLogger,
			notify,
			config,
			cache,
			appIdentity,
		)
	}

	if profile.HTTPServer {
		core.StartHTTPServer(
			config,
			db,
			cache,
			activityLogger,
			eventsManager.GetPublisher(configuration.EventsNotifications),
		)
	} else if profile.Workers.AnyEnabled() {
		zap.L().Info("Running in worker-only mode")
		select {} // Block forever
	}
}
