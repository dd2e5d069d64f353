package geocode

import (
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"

	"mapposter/internal/config"
	"mapposter/internal/infra/logging"
)

// NewCacheStorage picks the geocode cache backend. Redis when configured,
// in-memory otherwise. A bad Redis config must not take the service down, so
// the driver's panic is caught and the memory store stays in place.
func NewCacheStorage(cfg config.Config) Storage {
	var store Storage = memoryStorage.New() // safe default

	if cfg.Cache.RedisHost == "" {
		return store
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("Redis geocode cache init panicked, falling back to memory", "panic", r)
			}
		}()
		store = redisStorage.New(redisStorage.Config{
			Addrs:    []string{cfg.Cache.RedisHost},
			Database: cfg.Cache.GeocodeCacheDB,
		})
		logging.Info("Using Redis for geocode cache", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.GeocodeCacheDB)
	}()

	return store
}
