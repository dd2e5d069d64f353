package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/fogleman/gg"

	"mapposter/internal/domain"
)

// metersPerDegree is the length of one degree of latitude. Longitude degrees
// shrink with cos(latitude); over a few kilometres the flat approximation
// stays below a pixel of error.
const metersPerDegree = 111320.0

type projector struct {
	width  float64
	height float64
	scale  float64 // pixels per meter
	center domain.Coordinates
	cosLat float64
}

// newProjector fits a circle of radiusMeters around center into the shorter
// canvas axis; the longer axis shows proportionally more of the city.
func newProjector(center domain.Coordinates, radiusMeters, widthPx, heightPx int) projector {
	w, h := float64(widthPx), float64(heightPx)
	return projector{
		width:  w,
		height: h,
		scale:  math.Min(w, h) / (2 * float64(radiusMeters)),
		center: center,
		cosLat: math.Cos(center.Latitude * math.Pi / 180),
	}
}

func (p projector) point(c domain.Coordinates) (x, y float64) {
	dx := (c.Longitude - p.center.Longitude) * metersPerDegree * p.cosLat
	dy := (c.Latitude - p.center.Latitude) * metersPerDegree
	return p.width/2 + dx*p.scale, p.height/2 - dy*p.scale
}

// Broad roads paint over narrow ones, so draw narrow classes first.
var roadDrawOrder = []string{
	"default", "path", "service", "residential",
	"tertiary", "secondary", "primary", "motorway",
}

// drawPoster rasterizes one poster onto a fresh canvas. ctx is checked
// between layers so an expired render deadline stops the work mid-canvas.
func drawPoster(ctx context.Context, spec domain.PosterSpec, center domain.Coordinates, theme domain.Theme, data domain.MapData, dpi int) (image.Image, error) {
	widthPx := spec.WidthInches * dpi
	heightPx := spec.HeightInches * dpi

	dc := gg.NewContext(widthPx, heightPx)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	dc.SetHexColor(theme.Background)
	dc.Clear()

	proj := newProjector(center, spec.DistanceMeters, widthPx, heightPx)
	strokeScale := float64(dpi) / 100

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	drawAreas(dc, proj, data.Water, theme.Water, strokeScale)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	drawAreas(dc, proj, data.Parks, theme.Parks, strokeScale)

	if err := drawRoads(ctx, dc, proj, data.Roads, theme, strokeScale); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := drawLabels(dc, spec, center, theme, dpi); err != nil {
		return nil, err
	}

	return dc.Image(), nil
}

// drawAreas fills closed ways as polygons and strokes open ones (rivers,
// canals) as wide lines. An empty color disables the layer.
func drawAreas(dc *gg.Context, proj projector, ways []domain.Way, hex string, strokeScale float64) {
	if hex == "" {
		return
	}
	dc.SetHexColor(hex)
	for _, way := range ways {
		tracePath(dc, proj, way)
		if way.Closed {
			dc.Fill()
		} else {
			dc.SetLineWidth(3 * strokeScale)
			dc.Stroke()
		}
	}
}

func drawRoads(ctx context.Context, dc *gg.Context, proj projector, ways []domain.Way, theme domain.Theme, strokeScale float64) error {
	byClass := make(map[string][]domain.Way, len(roadDrawOrder))
	for _, way := range ways {
		byClass[way.Class] = append(byClass[way.Class], way)
	}

	for _, class := range roadDrawOrder {
		group := byClass[class]
		if len(group) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		dc.SetHexColor(theme.RoadColor(class))
		dc.SetLineWidth(theme.RoadWidth(class) * strokeScale)
		for _, way := range group {
			tracePath(dc, proj, way)
		}
		dc.Stroke()
	}
	return nil
}

func tracePath(dc *gg.Context, proj projector, way domain.Way) {
	x, y := proj.point(way.Points[0])
	dc.MoveTo(x, y)
	for _, pt := range way.Points[1:] {
		x, y = proj.point(pt)
		dc.LineTo(x, y)
	}
	if way.Closed {
		dc.ClosePath()
	}
}

// drawLabels fades the lower band into the background and sets the city
// name, country and coordinates in the classic print-poster arrangement.
func drawLabels(dc *gg.Context, spec domain.PosterSpec, center domain.Coordinates, theme domain.Theme, dpi int) error {
	w := float64(dc.Width())
	h := float64(dc.Height())

	bg, err := parseHexColor(theme.Background)
	if err != nil {
		return err
	}
	grad := gg.NewLinearGradient(0, h*0.68, 0, h)
	grad.AddColorStop(0, color.NRGBA{R: bg.R, G: bg.G, B: bg.B, A: 0})
	grad.AddColorStop(0.55, color.NRGBA{R: bg.R, G: bg.G, B: bg.B, A: 0xd9})
	grad.AddColorStop(1, bg)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, h*0.68, w, h*0.32)
	dc.Fill()

	titleFace, err := newFace(true, h*0.038)
	if err != nil {
		return fmt.Errorf("load title font: %w", err)
	}
	detailFace, err := newFace(false, h*0.016)
	if err != nil {
		return fmt.Errorf("load detail font: %w", err)
	}

	dc.SetHexColor(theme.Text)

	dc.SetFontFace(titleFace)
	dc.DrawStringAnchored(letterSpaced(spec.Label()), w/2, h*0.84, 0.5, 0.5)

	dc.SetLineWidth(math.Max(1, float64(dpi)/150))
	dc.DrawLine(w*0.38, h*0.875, w*0.62, h*0.875)
	dc.Stroke()

	dc.SetFontFace(detailFace)
	dc.DrawStringAnchored(strings.ToUpper(spec.CountryLabel()), w/2, h*0.90, 0.5, 0.5)
	dc.DrawStringAnchored(coordsLabel(center), w/2, h*0.925, 0.5, 0.5)

	return nil
}

func parseHexColor(s string) (color.NRGBA, error) {
	trimmed := strings.TrimPrefix(s, "#")
	if len(trimmed) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// letterSpaced spreads the title the way print posters set city names.
func letterSpaced(s string) string {
	var b strings.Builder
	for i, r := range []rune(strings.ToUpper(s)) {
		if i > 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func coordsLabel(c domain.Coordinates) string {
	ns := "N"
	if c.Latitude < 0 {
		ns = "S"
	}
	ew := "E"
	if c.Longitude < 0 {
		ew = "W"
	}
	return fmt.Sprintf("%.4f°%s / %.4f°%s", math.Abs(c.Latitude), ns, math.Abs(c.Longitude), ew)
}
