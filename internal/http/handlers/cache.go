package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"mapposter/internal/domain"
	"mapposter/internal/infra/logging"
)

// computePosterCacheKey creates a SHA256-based cache key over every
// poster-affecting parameter.
func computePosterCacheKey(spec *domain.PosterSpec) string {
	h := sha256.New()
	h.Write([]byte(spec.City))
	h.Write([]byte(spec.Country))
	h.Write([]byte(spec.ThemeName))
	h.Write([]byte(strconv.Itoa(spec.DistanceMeters)))
	h.Write([]byte(strconv.Itoa(spec.WidthInches)))
	h.Write([]byte(strconv.Itoa(spec.HeightInches)))
	h.Write([]byte(spec.DisplayCity))
	h.Write([]byte(spec.DisplayCountry))
	return "postercache:" + hex.EncodeToString(h.Sum(nil))
}

// getCachedPoster attempts to retrieve a cached poster from Redis. A slow or
// unreachable Redis only logs; the request falls through to rendering.
func getCachedPoster(c *fiber.Ctx, rdb *redis.Client, key, filename string) ([]byte, error) {
	ctxRedis, cancel := context.WithTimeout(c.Context(), 1*time.Second)
	defer cancel()

	cached, err := rdb.Get(ctxRedis, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil, err
	}

	logging.Info("Poster cache hit", "key", key)
	c.Set("Content-Type", "image/png")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return cached, nil
}

// setCachedPoster stores a poster in Redis.
func setCachedPoster(c *fiber.Ctx, rdb *redis.Client, key string, data []byte, ttl time.Duration) {
	ctxRedis, cancel := context.WithTimeout(c.Context(), 1*time.Second)
	defer cancel()

	if ttl <= 0 {
		ttl = 1 * time.Minute
	}

	if err := rdb.Set(ctxRedis, key, data, ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}
