// Package overpass fetches OpenStreetMap way geometry around a point through
// the Overpass API.
package overpass

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
)

// Client talks to a single Overpass endpoint.
type Client struct {
	url          string
	queryTimeout int
	http         *http.Client
}

// New builds an Overpass client from the config. Payloads for a dense city
// run into tens of megabytes, so the transport keeps connections warm.
func New(cfg config.Config) *Client {
	return &Client{
		url:          cfg.Overpass.URL,
		queryTimeout: cfg.Overpass.TimeoutSecs,
		http: &http.Client{
			// Give the HTTP layer headroom beyond the server-side query timeout.
			Timeout: time.Duration(cfg.Overpass.TimeoutSecs+5) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   32,
				MaxConnsPerHost:       32,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags"`
	Geometry []overpassPoint   `json:"geometry"`
}

type overpassPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Fetch pulls roads, water and parks within radiusMeters of center. A region
// with no mapped features is not an error; the returned MapData is empty.
func (c *Client) Fetch(ctx context.Context, center domain.Coordinates, radiusMeters int) (domain.MapData, error) {
	form := url.Values{}
	form.Set("data", buildQuery(center, radiusMeters, c.queryTimeout))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.MapData{}, fmt.Errorf("build map data request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.MapData{}, fmt.Errorf("map data request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.MapData{}, fmt.Errorf("map data provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.MapData{}, fmt.Errorf("decode map data response: %w", err)
	}

	return assemble(payload.Elements), nil
}

func buildQuery(center domain.Coordinates, radiusMeters, timeoutSecs int) string {
	around := fmt.Sprintf("around:%d,%s,%s",
		radiusMeters,
		strconv.FormatFloat(center.Latitude, 'f', 7, 64),
		strconv.FormatFloat(center.Longitude, 'f', 7, 64),
	)

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", timeoutSecs)
	fmt.Fprintf(&b, "  way[\"highway\"](%s);\n", around)
	fmt.Fprintf(&b, "  way[\"natural\"=\"water\"](%s);\n", around)
	fmt.Fprintf(&b, "  way[\"waterway\"~\"^(river|riverbank|canal|stream)$\"](%s);\n", around)
	fmt.Fprintf(&b, "  way[\"leisure\"~\"^(park|garden|nature_reserve)$\"](%s);\n", around)
	b.WriteString(");\nout geom;")
	return b.String()
}

func assemble(elements []overpassElement) domain.MapData {
	var data domain.MapData
	for _, el := range elements {
		if el.Type != "way" || len(el.Geometry) < 2 {
			continue
		}

		way := domain.Way{Points: make([]domain.Coordinates, 0, len(el.Geometry))}
		for _, p := range el.Geometry {
			way.Points = append(way.Points, domain.Coordinates{Latitude: p.Lat, Longitude: p.Lon})
		}
		way.Closed = len(way.Points) >= 3 && way.Points[0] == way.Points[len(way.Points)-1]

		switch {
		case el.Tags["highway"] != "":
			way.Class = roadClass(el.Tags["highway"])
			data.Roads = append(data.Roads, way)
		case el.Tags["natural"] == "water" || el.Tags["waterway"] != "":
			data.Water = append(data.Water, way)
		case isPark(el.Tags["leisure"]):
			data.Parks = append(data.Parks, way)
		}
	}
	return data
}

// roadClass folds OSM highway values into the classes themes know about.
func roadClass(highway string) string {
	switch highway {
	case "motorway", "motorway_link", "trunk", "trunk_link":
		return "motorway"
	case "primary", "primary_link":
		return "primary"
	case "secondary", "secondary_link":
		return "secondary"
	case "tertiary", "tertiary_link":
		return "tertiary"
	case "residential", "unclassified", "living_street":
		return "residential"
	case "service":
		return "service"
	case "footway", "path", "cycleway", "pedestrian", "track", "steps":
		return "path"
	default:
		return "default"
	}
}

func isPark(leisure string) bool {
	switch leisure {
	case "park", "garden", "nature_reserve":
		return true
	}
	return false
}
