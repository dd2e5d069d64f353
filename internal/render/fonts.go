package render

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var parsedFonts struct {
	once    sync.Once
	err     error
	regular *opentype.Font
	bold    *opentype.Font
}

func loadFonts() error {
	parsedFonts.once.Do(func() {
		parsedFonts.regular, parsedFonts.err = opentype.Parse(goregular.TTF)
		if parsedFonts.err != nil {
			return
		}
		parsedFonts.bold, parsedFonts.err = opentype.Parse(gobold.TTF)
	})
	return parsedFonts.err
}

// newFace builds a fresh face at the given pixel size. Faces carry glyph
// buffer state and must not be shared between concurrent renders, so each
// drawing pass gets its own.
func newFace(bold bool, sizePx float64) (font.Face, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}
	src := parsedFonts.regular
	if bold {
		src = parsedFonts.bold
	}
	return opentype.NewFace(src, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
