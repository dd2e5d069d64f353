package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"mapposter/internal/config"
	"mapposter/internal/domain"
	"mapposter/internal/render"
)

type stubStore struct {
	themes map[string]domain.Theme
	calls  int
}

func (s *stubStore) List() []string {
	names := make([]string, 0, len(s.themes))
	for name := range s.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *stubStore) Get(name string) (domain.Theme, error) {
	s.calls++
	theme, ok := s.themes[name]
	if !ok {
		return domain.Theme{}, domain.ThemeNotFoundError{Name: name}
	}
	return theme, nil
}

type stubGeocoder struct {
	coords domain.Coordinates
	err    error
	calls  int
}

func (g *stubGeocoder) Lookup(ctx context.Context, city, country string) (domain.Coordinates, error) {
	g.calls++
	if g.err != nil {
		return domain.Coordinates{}, g.err
	}
	return g.coords, nil
}

type stubRenderer struct {
	data  []byte
	err   error
	calls int
	stats render.PoolStats
}

func (r *stubRenderer) Generate(ctx context.Context, spec domain.PosterSpec, center domain.Coordinates, theme domain.Theme) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.data, nil
}

func (r *stubRenderer) Stats() render.PoolStats { return r.stats }

var errTest = errors.New("overpass exploded")

func testStore() *stubStore {
	return &stubStore{themes: map[string]domain.Theme{
		"noir":     {Name: "noir", Description: "High-contrast black and white"},
		"midnight": {Name: "midnight", Description: "Dark blue night map"},
	}}
}

func testApp(svc *PosterService) *fiber.App {
	app := fiber.New()
	app.Get("/", svc.HandleRoot)
	app.Get("/themes", svc.HandleThemes)
	app.Get("/generate", svc.HandleGenerate)
	app.Get("/preview", svc.HandlePreview)
	app.Get("/render/stats", svc.HandleRenderStats)
	return app
}

func newTestService() (*PosterService, *stubGeocoder, *stubRenderer) {
	geocoder := &stubGeocoder{coords: domain.Coordinates{Latitude: 25.033, Longitude: 121.5654}}
	renderer := &stubRenderer{data: []byte("\x89PNG fake poster bytes")}
	svc := NewPosterService(config.Default(), testStore(), geocoder, renderer, nil)
	return svc, geocoder, renderer
}

func TestValidation_RejectsBeforeCollaborators(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "missing city", url: "/generate?country=Taiwan", want: "city"},
		{name: "missing country", url: "/generate?city=Taipei", want: "country"},
		{name: "distance too small", url: "/generate?city=Taipei&country=Taiwan&distance=999", want: "distance"},
		{name: "distance too large", url: "/generate?city=Taipei&country=Taiwan&distance=20001", want: "distance"},
		{name: "distance not a number", url: "/generate?city=Taipei&country=Taiwan&distance=far", want: "distance"},
		{name: "width too small", url: "/generate?city=Taipei&country=Taiwan&width=5", want: "width"},
		{name: "width too large", url: "/generate?city=Taipei&country=Taiwan&width=25", want: "width"},
		{name: "height too small", url: "/generate?city=Taipei&country=Taiwan&height=7", want: "height"},
		{name: "height too large", url: "/generate?city=Taipei&country=Taiwan&height=33", want: "height"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, geocoder, renderer := newTestService()
			app := testApp(svc)

			// Repeated identical invalid requests must reject identically.
			var firstBody string
			for i := 0; i < 2; i++ {
				resp, err := app.Test(httptest.NewRequest("GET", tc.url, nil))
				if err != nil {
					t.Fatalf("request failed: %v", err)
				}
				if resp.StatusCode != fiber.StatusBadRequest {
					t.Fatalf("expected 400, got %d", resp.StatusCode)
				}
				raw, _ := io.ReadAll(resp.Body)
				body := string(raw)
				if !strings.Contains(strings.ToLower(body), tc.want) {
					t.Fatalf("expected message naming %q, got %q", tc.want, body)
				}
				if i == 0 {
					firstBody = body
				} else if body != firstBody {
					t.Fatalf("rejection not idempotent: %q vs %q", firstBody, body)
				}
			}

			if geocoder.calls != 0 || renderer.calls != 0 {
				t.Fatalf("collaborators must not run for invalid input: geocode=%d render=%d", geocoder.calls, renderer.calls)
			}
		})
	}
}

func TestHandleGenerate_Success(t *testing.T) {
	svc, geocoder, renderer := newTestService()
	app := testApp(svc)

	resp, err := app.Test(httptest.NewRequest("GET",
		"/generate?city=Taipei&country=Taiwan&theme=noir&distance=5000&width=12&height=16", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/png" {
		t.Fatalf("expected image/png, got %q", got)
	}
	if got, want := resp.Header.Get("Content-Disposition"), "attachment; filename=taipei_noir_poster.png"; got != want {
		t.Fatalf("unexpected disposition: got %q want %q", got, want)
	}

	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 || string(body) != string(renderer.data) {
		t.Fatalf("expected poster bytes in response body")
	}
	if geocoder.calls != 1 || renderer.calls != 1 {
		t.Fatalf("expected one geocode and one render, got %d/%d", geocoder.calls, renderer.calls)
	}
}

func TestHandleGenerate_DefaultsApplied(t *testing.T) {
	svc, _, _ := newTestService()
	app := testApp(svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/generate?city=Taipei&country=Taiwan", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 with defaults, got %d", resp.StatusCode)
	}
	if got, want := resp.Header.Get("Content-Disposition"), "attachment; filename=taipei_noir_poster.png"; got != want {
		t.Fatalf("expected default theme in filename: got %q want %q", got, want)
	}
}

func TestHandleGenerate_ThemeNotFound(t *testing.T) {
	svc, geocoder, renderer := newTestService()
	app := testApp(svc)

	resp, err := app.Test(httptest.NewRequest("GET",
		"/generate?city=Taipei&country=Taiwan&theme=doesnotexist", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Theme 'doesnotexist' not found") {
		t.Fatalf("expected theme-not-found message, got %q", string(body))
	}
	if geocoder.calls != 0 || renderer.calls != 0 {
		t.Fatalf("unknown theme must stop the pipeline before geocoding")
	}
}

func TestHandleGenerate_PlaceNotFound(t *testing.T) {
	svc, _, renderer := newTestService()
	svc.Geocoder = &stubGeocoder{err: domain.ErrPlaceNotFound}
	app := testApp(svc)

	resp, err := app.Test(httptest.NewRequest("GET",
		"/generate?city=Nowhere123&country=Nowhere&theme=noir", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected client error for unknown place, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Could not find coordinates for 'Nowhere123, Nowhere'") {
		t.Fatalf("expected place-not-found message, got %q", string(body))
	}
	if renderer.calls != 0 {
		t.Fatalf("renderer must not run for an unresolvable place")
	}
}

func TestHandleGenerate_RenderFailure(t *testing.T) {
	svc, _, _ := newTestService()
	svc.Renderer = &stubRenderer{err: errTest}
	app := testApp(svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/generate?city=Taipei&country=Taiwan", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Poster generation failed: overpass exploded") {
		t.Fatalf("expected underlying message, got %q", string(body))
	}
}

func TestHandleGenerate_TimeoutMapsTo408(t *testing.T) {
	svc, _, _ := newTestService()
	svc.Renderer = &stubRenderer{err: context.DeadlineExceeded}
	app := testApp(svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/generate?city=Taipei&country=Taiwan", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusRequestTimeout {
		t.Fatalf("expected 408 for render timeout, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Poster rendering took too long") {
		t.Fatalf("expected timeout message, got %q", string(body))
	}
}

func TestHandlePreview_ReturnsCoordinatesAndTheme(t *testing.T) {
	svc, _, renderer := newTestService()
	app := testApp(svc)

	resp, err := app.Test(httptest.NewRequest("GET",
		"/preview?city=Taipei&country=Taiwan&theme=midnight", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload struct {
		City        string             `json:"city"`
		Country     string             `json:"country"`
		Coordinates domain.Coordinates `json:"coordinates"`
		Theme       struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"theme"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode preview payload: %v", err)
	}
	if payload.City != "Taipei" || payload.Country != "Taiwan" {
		t.Fatalf("unexpected place in payload: %+v", payload)
	}
	if payload.Coordinates.Latitude != 25.033 || payload.Coordinates.Longitude != 121.5654 {
		t.Fatalf("unexpected coordinates: %+v", payload.Coordinates)
	}
	if payload.Theme.Name != "midnight" || payload.Theme.Description == "" {
		t.Fatalf("unexpected theme payload: %+v", payload.Theme)
	}
	if renderer.calls != 0 {
		t.Fatalf("preview must not render")
	}
}

func TestHandlePreview_ErrorPaths(t *testing.T) {
	svc, _, _ := newTestService()
	svc.Geocoder = &stubGeocoder{err: domain.ErrPlaceNotFound}
	app := testApp(svc)

	resp, _ := app.Test(httptest.NewRequest("GET", "/preview?city=Nowhere123&country=Nowhere", nil))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for unknown place, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/preview?city=Taipei&country=Taiwan&theme=doesnotexist", nil))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for unknown theme, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "doesnotexist") {
		t.Fatalf("expected message naming the theme, got %q", string(body))
	}
}

func TestHandleThemes_ListsCatalog(t *testing.T) {
	svc, _, _ := newTestService()
	app := testApp(svc)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/themes", nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var payload struct {
			Themes []string `json:"themes"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			t.Fatalf("decode themes payload: %v", err)
		}
		if len(payload.Themes) != 2 || payload.Themes[0] != "midnight" || payload.Themes[1] != "noir" {
			t.Fatalf("unexpected theme list: %v", payload.Themes)
		}
	}
}

func TestHandleRoot_Liveness(t *testing.T) {
	svc, _, _ := newTestService()
	app := testApp(svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode liveness payload: %v", err)
	}
	if payload.Status != "ok" || payload.Message == "" {
		t.Fatalf("unexpected liveness payload: %+v", payload)
	}
}

func TestHandleRenderStats(t *testing.T) {
	svc, _, _ := newTestService()
	svc.Renderer = &stubRenderer{stats: render.PoolStats{Enabled: true, Capacity: 2, Idle: 1, InUse: 1}}
	app := testApp(svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/render/stats", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload struct {
		Enabled      bool `json:"enabled"`
		Capacity     int  `json:"capacity"`
		Idle         int  `json:"idle"`
		InUse        int  `json:"in_use"`
		PoolSizeConf int  `json:"pool_size_conf"`
		TimeoutSecs  int  `json:"timeout_secs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode stats payload: %v", err)
	}
	if !payload.Enabled || payload.Capacity != 2 || payload.InUse != 1 {
		t.Fatalf("unexpected stats payload: %+v", payload)
	}
	if payload.PoolSizeConf != svc.Config.Render.PoolSize || payload.TimeoutSecs != svc.Config.Render.TimeoutSecs {
		t.Fatalf("stats must echo configured pool settings: %+v", payload)
	}
}
