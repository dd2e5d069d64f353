// Package handlers carries the HTTP boundary of the poster service: query
// parameter validation, the generate/preview pipelines and the mapping of
// collaborator failures onto status codes.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"mapposter/internal/config"
	"mapposter/internal/domain"
	"mapposter/internal/infra/logging"
	"mapposter/internal/render"
)

// Parameter bounds enforced before any collaborator call.
const (
	minDistanceMeters = 1000
	maxDistanceMeters = 20000
	minWidthInches    = 6
	maxWidthInches    = 24
	minHeightInches   = 8
	maxHeightInches   = 32
)

// ThemeStore is the read-only theme catalog the handlers consult.
type ThemeStore interface {
	List() []string
	Get(name string) (domain.Theme, error)
}

// Geocoder resolves a place name to coordinates.
type Geocoder interface {
	Lookup(ctx context.Context, city, country string) (domain.Coordinates, error)
}

// Renderer produces the poster bytes for an already-resolved request.
type Renderer interface {
	Generate(ctx context.Context, spec domain.PosterSpec, center domain.Coordinates, theme domain.Theme) ([]byte, error)
	Stats() render.PoolStats
}

// PosterService bundles configuration and collaborators for poster requests.
type PosterService struct {
	Config   *config.Config
	Themes   ThemeStore
	Geocoder Geocoder
	Renderer Renderer
	Redis    *redis.Client
}

// NewPosterService creates a new PosterService instance.
func NewPosterService(cfg config.Config, themes ThemeStore, geocoder Geocoder, renderer Renderer, rdb *redis.Client) *PosterService {
	return &PosterService{
		Config:   &cfg,
		Themes:   themes,
		Geocoder: geocoder,
		Renderer: renderer,
		Redis:    rdb,
	}
}

// HandleRoot reports liveness.
func (svc *PosterService) HandleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"message": "Map Poster API is running",
	})
}

// HandleThemes lists the theme catalog.
func (svc *PosterService) HandleThemes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"themes": svc.Themes.List()})
}

// HandleGenerate runs the full pipeline: validate, theme lookup, geocode,
// render, respond with PNG bytes.
func (svc *PosterService) HandleGenerate(c *fiber.Ctx) error {
	spec, err := validateAndExtractPosterParams(c, *svc.Config)
	if err != nil {
		return err
	}

	theme, coords, err := svc.resolve(c, spec)
	if err != nil {
		return err
	}

	filename := posterFilename(spec)
	cacheKey := computePosterCacheKey(spec)

	// Try to serve from Redis cache
	if svc.Redis != nil && svc.Config.Cache.PosterCacheEnabled {
		if cached, err := getCachedPoster(c, svc.Redis, cacheKey, filename); err == nil && cached != nil {
			return c.Send(cached)
		}
	}

	pngBuf, err := svc.Renderer.Generate(c.Context(), *spec, coords, theme)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logging.Error("Poster rendering timeout", "timeout_secs", svc.Config.Render.TimeoutSecs, "error", err.Error())
			return fiber.NewError(fiber.StatusRequestTimeout, "Poster rendering took too long")
		}
		logging.Error("Poster generation failed", "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Poster generation failed: "+err.Error())
	}

	// Cache poster
	if svc.Redis != nil && svc.Config.Cache.PosterCacheEnabled {
		setCachedPoster(c, svc.Redis, cacheKey, pngBuf, svc.Config.Cache.PosterCacheTTL.Std())
	}

	requestID := c.Get("X-Request-ID")
	logging.Info("Poster generated", "filename", filename, "request_id", requestID)

	c.Set("Content-Type", "image/png")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(pngBuf)
}

// HandlePreview resolves theme and coordinates without rendering anything.
func (svc *PosterService) HandlePreview(c *fiber.Ctx) error {
	spec, err := validateAndExtractPosterParams(c, *svc.Config)
	if err != nil {
		return err
	}

	theme, coords, err := svc.resolve(c, spec)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"city":        spec.City,
		"country":     spec.Country,
		"coordinates": coords,
		"theme": fiber.Map{
			"name":        theme.Name,
			"description": theme.Description,
		},
	})
}

// HandleRenderStats exposes basic observability for the render pool
// (capacity / idle / in_use).
func (svc *PosterService) HandleRenderStats(c *fiber.Ctx) error {
	s := svc.Renderer.Stats()
	return c.JSON(fiber.Map{
		"enabled":        s.Enabled,
		"capacity":       s.Capacity,
		"idle":           s.Idle,
		"in_use":         s.InUse,
		"pool_size_conf": svc.Config.Render.PoolSize,
		"timeout_secs":   svc.Config.Render.TimeoutSecs,
	})
}

// resolve performs the shared generate/preview steps: theme lookup first,
// then geocoding. Both "not found" cases surface as client errors.
func (svc *PosterService) resolve(c *fiber.Ctx, spec *domain.PosterSpec) (domain.Theme, domain.Coordinates, error) {
	theme, err := svc.Themes.Get(spec.ThemeName)
	if err != nil {
		if domain.IsThemeNotFound(err) {
			return domain.Theme{}, domain.Coordinates{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		logging.Error("Theme lookup failed", "theme", spec.ThemeName, "error", err.Error())
		return domain.Theme{}, domain.Coordinates{}, fiber.NewError(fiber.StatusInternalServerError, "Poster generation failed: "+err.Error())
	}

	coords, err := svc.Geocoder.Lookup(c.Context(), spec.City, spec.Country)
	if err != nil {
		if errors.Is(err, domain.ErrPlaceNotFound) {
			return domain.Theme{}, domain.Coordinates{}, fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("Could not find coordinates for '%s, %s'", spec.City, spec.Country))
		}
		logging.Error("Geocoding failed", "city", spec.City, "country", spec.Country, "error", err.Error())
		return domain.Theme{}, domain.Coordinates{}, fiber.NewError(fiber.StatusInternalServerError, "Poster generation failed: "+err.Error())
	}

	return theme, coords, nil
}

// validateAndExtractPosterParams validates and parses input parameters from
// the HTTP request. Out-of-range values are rejected here, before any
// collaborator is touched, and identical invalid requests always reject
// identically.
func validateAndExtractPosterParams(c *fiber.Ctx, cfg config.Config) (*domain.PosterSpec, error) {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Missing required parameter: city")
	}

	country := strings.TrimSpace(c.Query("country"))
	if country == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Missing required parameter: country")
	}

	theme := strings.TrimSpace(c.Query("theme"))
	if theme == "" {
		theme = cfg.Poster.DefaultTheme
	}

	distance, err := intQuery(c, "distance", 5000)
	if err != nil || distance < minDistanceMeters || distance > maxDistanceMeters {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("Invalid distance: must be an integer between %d and %d", minDistanceMeters, maxDistanceMeters))
	}

	width, err := intQuery(c, "width", 12)
	if err != nil || width < minWidthInches || width > maxWidthInches {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("Invalid width: must be an integer between %d and %d", minWidthInches, maxWidthInches))
	}

	height, err := intQuery(c, "height", 16)
	if err != nil || height < minHeightInches || height > maxHeightInches {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("Invalid height: must be an integer between %d and %d", minHeightInches, maxHeightInches))
	}

	return &domain.PosterSpec{
		City:           city,
		Country:        country,
		ThemeName:      theme,
		DistanceMeters: distance,
		WidthInches:    width,
		HeightInches:   height,
		DisplayCity:    strings.TrimSpace(c.Query("display_city")),
		DisplayCountry: strings.TrimSpace(c.Query("display_country")),
	}, nil
}

func intQuery(c *fiber.Ctx, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// posterFilename derives the download name from lowercased city and theme.
func posterFilename(spec *domain.PosterSpec) string {
	return strings.ToLower(spec.City) + "_" + spec.ThemeName + "_poster.png"
}
