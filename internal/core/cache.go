package core

import (
	"api/internal/cache"
	"api/internal/models"

	"go.uber.org/zap"
)

func NewCache(config models.CacheConfiguration) cache.ICache {
	var (
		store *cache.RueidisCache
		err   error
	)

	switch config.Type {
	case "redis":
		store, err = cache.NewRueidisCache(
			config.Redis.Hosts,
			config.Redis.Password,
			config.Redis.TLSEnabled,
			config.Redis.TLSServerName,
			"redis",
		)
	case "valkey":
		store, err = cache.NewRueidisCache(
			config.Valkey.Hosts,
			config.Valkey.Password,
			config.Valkey.TLSEnabled,
			config.Valkey.TLSServerName,
			"valkey",
		)
	default:
		return nil
	}

	if err != nil {
		zap.L().Fatal("Failed to initialize cache",
			zap.String("type", config.Type),
			zap.Error(err))
	}

	return store
}
