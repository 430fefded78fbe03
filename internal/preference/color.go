package preference

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ParseColor decodes a color preference. Both "#rrggbb" and the
// "r,g,b" form with 0-255 components are accepted.
func ParseColor(s string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		return colorful.Hex(s)
	}

	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return colorful.Color{}, fmt.Errorf("invalid color %q", s)
	}
	var rgb [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return colorful.Color{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		rgb[i] = uint8(n)
	}
	return colorful.Color{
		R: float64(rgb[0]) / 255,
		G: float64(rgb[1]) / 255,
		B: float64(rgb[2]) / 255,
	}, nil
}

// Color returns a color preference. ok is false when the preference is
// missing or malformed.
func Color(s Store, name string) (c colorful.Color, ok bool) {
	if !s.Contains(name) {
		return colorful.Color{}, false
	}
	c, err := ParseColor(s.String(name))
	if err != nil {
		return colorful.Color{}, false
	}
	return c, true
}

// DefaultColor returns the default of a color preference.
func DefaultColor(s Store, name string) (colorful.Color, bool) {
	c, err := ParseColor(s.DefaultString(name))
	if err != nil {
		return colorful.Color{}, false
	}
	return c, true
}

// SetColor stores a color as "#rrggbb".
func SetColor(s Store, name string, c colorful.Color) {
	s.SetValue(name, c.Clamped().Hex())
}

// SetDefaultColor sets the default of a color preference.
func SetDefaultColor(s Store, name string, c colorful.Color) {
	s.SetDefault(name, c.Clamped().Hex())
}
