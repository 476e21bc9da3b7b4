package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"api/internal/activity"
	c "api/internal/cache"
	"api/internal/configuration"
	"api/internal/events"
	h "api/internal/helpers"
	"api/internal/messaging"
	m "api/internal/middlewares"
	"api/internal/models"
	"api/internal/notifier"
	"api/internal/services"
	"api/internal/workers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateAdminUser seeds the bootstrap admin account. Reruns against an
// existing account only refresh the password hash.
func CreateAdminUser(db *gorm.DB, config models.Configuration) {
	adminUser := models.User{
		FirstName:    "admin",
		LastName:     "admin",
		Email:        config.App.AdminEmail,
		ProviderType: models.LocalProviderType,
		ProviderKey:  string(models.LocalProviderType),
		Role:         models.RoleAdmin,
	}

	hash, err := h.CreateHash(config.App.AdminPassword)
	if err != nil {
		zap.L().Fatal("Failed to hash admin password", zap.Error(err))
	}
	adminUser.HashedPassword = hash

	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}, {Name: "provider_key"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: "deleted_at", Value: nil},
		}},
		DoUpdates: clause.AssignmentColumns([]string{"hashed_password"}),
	}).Create(&adminUser).Error
	if err != nil {
		zap.L().Error("Failed to seed admin user", zap.Error(err))
	}
}

func StartWorkers(
	profile models.Profile,
	eventsManager *EventsManager,
	db *gorm.DB,
	activityLogger activity.IActivityLogger,
	notify notifier.INotifier,
	config models.Configuration,
	cache c.ICache,
	appIdentity string,
) {
	startWorker(profile.Workers.Notifications, "notifications", cache, appIdentity, func(_ context.Context) {
		eventParams := &events.EventParams{Notifier: notify}
		notifications := eventsManager.GetSubscriber(configuration.EventsNotifications).Subscribe()
		events.HandleEvents(eventParams, notifications)
	})

	startWorker(profile.Workers.SessionSweeper, "session_sweeper", cache, appIdentity, func(ctx context.Context) {
		worker := &workers.SessionSweeperWorker{
			DB:                   db,
			ActivityLogger:       activityLogger,
			AttemptRetentionDays: config.App.AttemptRetentionDays,
			RunInterval:          configuration.SessionSweepIntervalMinutes * time.Minute,
		}
		worker.Start(ctx)
	})
}

func startWorker(
	mode models.WorkerMode,
	workerName string,
	cache c.ICache,
	appIdentity string,
	runWorker func(context.Context),
) {
	if mode == models.WorkerModeDisabled {
		return
	}

	if mode == models.WorkerModeSingleton {
		go startSingletonWorker(cache, appIdentity, workerName, runWorker)
	} else {
		go runWorker(context.Background())
		zap.L().Info("Started worker", zap.String("worker", workerName))
	}
}

func startSingletonWorker(cache c.ICache, instanceID string, workerName string, runWorker func(context.Context)) {
	lockKey := fmt.Sprintf(configuration.CacheAppWorkerLockKey, workerName)
	ticker := time.NewTicker(time.Duration(configuration.CacheAppWorkerLockRefresh) * time.Second)
	defer ticker.Stop()

	var workerStarted bool
	var cancelWorker context.CancelFunc

	for {
		if !workerStarted {
			acquired, err := cache.TryAcquireLock(lockKey, instanceID, configuration.CacheAppWorkerLockTTL)
			if err != nil {
				zap.L().Error("Failed to acquire worker lock", zap.String("worker", workerName), zap.Error(err))
			}

			if acquired {
				zap.L().Info("Acquired worker lock, starting worker", zap.String("worker", workerName))
				workerStarted = true
				var ctx context.Context
				ctx, cancelWorker = context.WithCancel(context.Background())
				go runWorker(ctx)
			}
		} else {
			refreshed, err := cache.RefreshLock(lockKey, instanceID, configuration.CacheAppWorkerLockTTL)
			if err != nil || !refreshed {
				zap.L().Warn("Lost worker lock, stopping worker", zap.String("worker", workerName))
				workerStarted = false
				if cancelWorker != nil {
					cancelWorker()
					cancelWorker = nil
				}
			}
		}

		<-ticker.C
	}
}

func StartHTTPServer(
	config models.Configuration,
	db *gorm.DB,
	cache c.ICache,
	activityLogger activity.IActivityLogger,
	publisher messaging.IPublisher,
) {
	m.InitValidator()

	r := chi.NewRouter()

	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(m.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.App.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	providers := configuration.LoadProviders(
		context.Background(),
		config.App.APIURL,
		config.Auth.Providers,
	)

	authConfig := config.App.GetAuthConfig()

	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Use(m.Authenticate(db, authConfig.JWTSecret))
		apiRouter.Use(m.AudienceValidate)
		apiRouter.Use(m.TwoFactorValidate)
		apiRouter.Use(m.RateLimit(cache, config.App.TrustedProxies))

		// Login, logout and password reset face unauthenticated callers, so
		// they carry an extra per-IP throttle.
		apiRouter.Group(func(public chi.Router) {
			public.Use(m.PublicThrottle(configuration.RateLimitPublicRequestsPerMinute))

			public.Mount("/v1/auth", services.AuthService{
				DB:             db,
				Cache:          cache,
				AuthConfig:     authConfig,
				Providers:      providers,
				Publisher:      publisher,
				ActivityLogger: activityLogger,
			}.Routes())
		})

		apiRouter.Mount("/v1/2fa", services.TwoFactorService{
			DB:             db,
			Cache:          cache,
			AuthConfig:     authConfig,
			Publisher:      publisher,
			ActivityLogger: activityLogger,
		}.Routes())

		apiRouter.Mount("/v1/users", services.UserService{
			DB:             db,
			Cache:          cache,
			AuthConfig:     authConfig,
			Publisher:      publisher,
			ActivityLogger: activityLogger,
		}.Routes())

		apiRouter.Mount("/v1/admin", services.AdminService{
			DB:             db,
			ActivityLogger: activityLogger,
		}.Routes())
	})

	zap.L().Info("HTTP server starting", zap.Int("port", config.App.Port))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.App.Port),
		Handler:      otelhttp.NewHandler(r, "http.server"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  5 * time.Second,
	}

	err := server.ListenAndServe()
	if err != nil {
		zap.L().Error("Failed to start the app", zap.Error(err))
	}
}
