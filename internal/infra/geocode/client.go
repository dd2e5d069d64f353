// Package geocode resolves place names to coordinates via a Nominatim-style
// provider. Lookups are cached: the provider's usage policy requires it, and
// poster requests for the same city repeat constantly.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mapposter/internal/config"
	"mapposter/internal/domain"
	"mapposter/internal/infra/logging"
)

// Storage is the cache contract, satisfied by the gofiber storage drivers.
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
}

// Client queries the geocoding provider over HTTP.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	cache     Storage
	cacheTTL  time.Duration
}

// New builds a geocoding client from the config. cache may be nil to disable
// caching entirely (tests mostly).
func New(cfg config.Config, cache Storage) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.Geocode.BaseURL, "/"),
		userAgent: cfg.Geocode.UserAgent,
		http: &http.Client{
			Timeout: time.Duration(cfg.Geocode.TimeoutSecs) * time.Second,
		},
		cache:    cache,
		cacheTTL: cfg.Cache.GeocodeCacheTTL.Std(),
	}
}

// nominatimResult mirrors the provider's JSON; lat/lon arrive as strings.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Lookup resolves (city, country) to coordinates. A place the provider does
// not know yields an error wrapping domain.ErrPlaceNotFound; everything else
// (network, HTTP status, malformed payload) is a plain failure.
func (c *Client) Lookup(ctx context.Context, city, country string) (domain.Coordinates, error) {
	key := cacheKey(city, country)

	if c.cache != nil {
		if raw, err := c.cache.Get(key); err == nil && len(raw) > 0 {
			var coords domain.Coordinates
			if err := json.Unmarshal(raw, &coords); err == nil {
				return coords, nil
			}
		}
	}

	coords, err := c.query(ctx, city, country)
	if err != nil {
		return domain.Coordinates{}, err
	}

	if c.cache != nil {
		if raw, err := json.Marshal(coords); err == nil {
			if err := c.cache.Set(key, raw, c.cacheTTL); err != nil {
				logging.Warn("Geocode cache write failed", "error", err)
			}
		}
	}

	return coords, nil
}

func (c *Client) query(ctx context.Context, city, country string) (domain.Coordinates, error) {
	params := url.Values{}
	params.Set("q", city+", "+country)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("build geocoding request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Coordinates{}, fmt.Errorf("geocoding provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode geocoding response: %w", err)
	}
	if len(results) == 0 {
		return domain.Coordinates{}, fmt.Errorf("no geocoding result for %q, %q: %w", city, country, domain.ErrPlaceNotFound)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocoding returned malformed latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocoding returned malformed longitude %q: %w", results[0].Lon, err)
	}

	return domain.Coordinates{Latitude: lat, Longitude: lon}, nil
}

func cacheKey(city, country string) string {
	return "geocode:" + strings.ToLower(strings.TrimSpace(city)) + "," + strings.ToLower(strings.TrimSpace(country))
}
