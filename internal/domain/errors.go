package domain

import (
	"errors"
	"fmt"
)

// ErrPlaceNotFound signals that the geocoding provider returned no match for
// the requested place. Callers map it to a client error, never a server one.
var ErrPlaceNotFound = errors.New("place not found")

// ThemeNotFoundError is returned when a request names a theme the store does
// not know. The message format is part of the API contract.
type ThemeNotFoundError struct {
	Name string
}

func (e ThemeNotFoundError) Error() string {
	return fmt.Sprintf("Theme '%s' not found", e.Name)
}

// IsThemeNotFound reports whether err is a ThemeNotFoundError anywhere in its
// chain.
func IsThemeNotFound(err error) bool {
	var tnf ThemeNotFoundError
	return errors.As(err, &tnf)
}
