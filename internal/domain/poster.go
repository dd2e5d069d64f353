package domain

// Coordinates represents a geographic point (WGS 84).
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PosterSpec holds the validated parameters for one poster request. It is
// constructed once per request and never mutated afterwards.
type PosterSpec struct {
	City           string
	Country        string
	ThemeName      string
	DistanceMeters int
	WidthInches    int
	HeightInches   int
	DisplayCity    string
	DisplayCountry string
}

// Label returns the city text to print on the poster. DisplayCity exists for
// places whose native spelling is not Latin script.
func (s PosterSpec) Label() string {
	if s.DisplayCity != "" {
		return s.DisplayCity
	}
	return s.City
}

// CountryLabel returns the country text to print on the poster.
func (s PosterSpec) CountryLabel() string {
	if s.DisplayCountry != "" {
		return s.DisplayCountry
	}
	return s.Country
}

// Theme is a named set of visual styling parameters applied when rendering a
// map poster. Themes are read-only once loaded and may be shared across
// requests without synchronization.
type Theme struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Background  string             `json:"background"`
	Text        string             `json:"text"`
	Water       string             `json:"water"`
	Parks       string             `json:"parks"`
	RoadColors  map[string]string  `json:"road_colors"`
	RoadWidths  map[string]float64 `json:"road_widths"`
}

// RoadColor returns the stroke color for a road class, falling back to the
// "default" entry and finally to the text color.
func (t Theme) RoadColor(class string) string {
	if c, ok := t.RoadColors[class]; ok {
		return c
	}
	if c, ok := t.RoadColors["default"]; ok {
		return c
	}
	return t.Text
}

// RoadWidth returns the stroke width for a road class in canvas points,
// falling back to the "default" entry.
func (t Theme) RoadWidth(class string) float64 {
	if w, ok := t.RoadWidths[class]; ok {
		return w
	}
	if w, ok := t.RoadWidths["default"]; ok {
		return w
	}
	return 1
}

// Way is an ordered sequence of coordinates from the map-data provider,
// classified for drawing. Closed ways describe areas (water bodies, parks).
type Way struct {
	Class  string
	Closed bool
	Points []Coordinates
}

// MapData bundles everything the renderer draws for one poster.
type MapData struct {
	Roads []Way
	Water []Way
	Parks []Way
}

// Empty reports whether the provider returned no drawable geometry at all.
func (m MapData) Empty() bool {
	return len(m.Roads) == 0 && len(m.Water) == 0 && len(m.Parks) == 0
}
