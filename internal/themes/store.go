// Package themes loads and serves the poster style catalog. Built-in themes
// are compiled into the binary; an optional directory of JSON descriptors can
// extend or override them at startup. After Load the store is immutable, so
// concurrent readers need no locking.
package themes

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mapposter/internal/domain"
)

//go:embed themes/*.json
var builtinFS embed.FS

// Store is the read-only theme catalog.
type Store struct {
	themes map[string]domain.Theme
	names  []string
}

// Load builds the catalog from the embedded themes, then from *.json files in
// dir when dir is non-empty. A file whose name matches a built-in replaces it.
// Malformed descriptors fail loudly: a poster service with a broken theme
// catalog should not come up.
func Load(dir string) (*Store, error) {
	themes := make(map[string]domain.Theme)

	entries, err := builtinFS.ReadDir("themes")
	if err != nil {
		return nil, fmt.Errorf("read embedded themes: %w", err)
	}
	for _, entry := range entries {
		raw, err := builtinFS.ReadFile("themes/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded theme %s: %w", entry.Name(), err)
		}
		theme, err := parseTheme(entry.Name(), raw)
		if err != nil {
			return nil, err
		}
		themes[theme.Name] = theme
	}

	if dir != "" {
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read themes dir %s: %w", dir, err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(dir, f.Name()))
			if err != nil {
				return nil, fmt.Errorf("read theme %s: %w", f.Name(), err)
			}
			theme, err := parseTheme(f.Name(), raw)
			if err != nil {
				return nil, err
			}
			themes[theme.Name] = theme
		}
	}

	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Store{themes: themes, names: names}, nil
}

func parseTheme(source string, raw []byte) (domain.Theme, error) {
	var theme domain.Theme
	if err := json.Unmarshal(raw, &theme); err != nil {
		return domain.Theme{}, fmt.Errorf("parse theme %s: %w", source, err)
	}
	if theme.Name == "" {
		return domain.Theme{}, fmt.Errorf("theme %s: missing name", source)
	}
	if theme.Background == "" || theme.Text == "" {
		return domain.Theme{}, fmt.Errorf("theme %s: background and text colors are required", source)
	}
	return theme, nil
}

// List returns the theme names in sorted order. The returned slice is a copy.
func (s *Store) List() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Get returns the theme with the given name or a domain.ThemeNotFoundError.
func (s *Store) Get(name string) (domain.Theme, error) {
	theme, ok := s.themes[name]
	if !ok {
		return domain.Theme{}, domain.ThemeNotFoundError{Name: name}
	}
	return theme, nil
}

// Len reports the catalog size.
func (s *Store) Len() int {
	return len(s.names)
}
