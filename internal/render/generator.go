// Package render turns validated poster requests into PNG images. Map
// geometry comes from a MapSource, rasterization runs on a bounded pool.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"

	"mapposter/internal/config"
	"mapposter/internal/domain"
	"mapposter/internal/infra/logging"
)

// poolAcquireTimeout caps how long a request may queue for a render slot.
const poolAcquireTimeout = 5 * time.Second

// MapSource provides way geometry around a point.
type MapSource interface {
	Fetch(ctx context.Context, center domain.Coordinates, radiusMeters int) (domain.MapData, error)
}

// Generator turns a poster spec into PNG bytes.
type Generator struct {
	cfg  config.Config
	maps MapSource
	pool *Pool
}

// NewGenerator wires a generator. With Render.PoolSize 0 the concurrency
// bound is disabled and every request renders immediately.
func NewGenerator(cfg config.Config, maps MapSource) (*Generator, error) {
	g := &Generator{cfg: cfg, maps: maps}
	if cfg.Render.PoolSize > 0 {
		pool, err := NewPool(cfg.Render.PoolSize)
		if err != nil {
			return nil, err
		}
		g.pool = pool
	}
	return g, nil
}

// Generate fetches map data and rasterizes the poster under the configured
// render timeout. ctx is the request context: a client disconnect or an
// expired deadline aborts the work.
func (g *Generator) Generate(ctx context.Context, spec domain.PosterSpec, center domain.Coordinates, theme domain.Theme) ([]byte, error) {
	if g.pool != nil {
		acquireCtx, cancel := context.WithTimeout(ctx, poolAcquireTimeout)
		err := g.pool.Acquire(acquireCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("acquire render slot: %w", err)
		}
		defer g.pool.Release()
	}

	renderCtx, cancel := context.WithTimeout(ctx, time.Duration(g.cfg.Render.TimeoutSecs)*time.Second)
	defer cancel()

	start := time.Now()

	data, err := g.maps.Fetch(renderCtx, center, spec.DistanceMeters)
	if err != nil {
		return nil, fmt.Errorf("fetch map data: %w", err)
	}
	if data.Empty() {
		logging.Warn("No map features around location", "city", spec.City, "country", spec.Country, "distance_m", spec.DistanceMeters)
	}

	img, err := drawPoster(renderCtx, spec, center, theme, data, g.cfg.Poster.DPI)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode poster: %w", err)
	}

	logging.Info("Poster rendered",
		"city", spec.City,
		"theme", theme.Name,
		"roads", len(data.Roads),
		"bytes", buf.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if g.cfg.Poster.KeepArtifacts {
		g.keepArtifact(spec, buf.Bytes())
	}

	return buf.Bytes(), nil
}

// keepArtifact writes the poster to the artifacts dir. Failures only log;
// the response already has its bytes.
func (g *Generator) keepArtifact(spec domain.PosterSpec, data []byte) {
	name := fmt.Sprintf("%s_%s_%s.png", strings.ToLower(spec.City), spec.ThemeName, xid.New().String())
	path := filepath.Join(g.cfg.Poster.PostersDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logging.Warn("Keeping poster artifact failed", "path", path, "error", err)
		return
	}
	logging.Info("Poster artifact kept", "path", path)
}

// Stats reports render pool occupancy; zero value when the pool is disabled.
func (g *Generator) Stats() PoolStats {
	if g.pool == nil {
		return PoolStats{}
	}
	return g.pool.Stats()
}

// Close releases the render pool.
func (g *Generator) Close() {
	if g.pool != nil {
		g.pool.Close()
	}
}
