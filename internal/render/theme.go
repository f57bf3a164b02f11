package render

import (
	"strconv"
	"strings"

	"invoice-service/internal/models"
)

// RGB is a color with components in [0, 1]
type RGB struct {
	R, G, B float64
}

// Bytes returns the 0-255 component values expected by the PDF layer
func (c RGB) Bytes() (int, int, int) {
	return int(c.R*255 + 0.5), int(c.G*255 + 0.5), int(c.B*255 + 0.5)
}

// Default palette anchors used when settings omit or mangle a color
var (
	defaultAccent = RGB{R: 0x1a / 255.0, G: 0x73 / 255.0, B: 0xe8 / 255.0} // #1a73e8
	defaultText   = RGB{R: 0x20 / 255.0, G: 0x21 / 255.0, B: 0x24 / 255.0} // #202124
)

// FontFamily is a resolved typeface with its four style variants expressed
// as PDF style codes
type FontFamily struct {
	Name       string
	Regular    string
	Bold       string
	Italic     string
	BoldItalic string
}

var fontFamilies = map[models.FontFamilyKey]FontFamily{
	models.FontFamilyHelvetica: {Name: "Helvetica", Regular: "", Bold: "B", Italic: "I", BoldItalic: "BI"},
	models.FontFamilyTimes:     {Name: "Times", Regular: "", Bold: "B", Italic: "I", BoldItalic: "BI"},
	models.FontFamilyCourier:   {Name: "Courier", Regular: "", Bold: "B", Italic: "I", BoldItalic: "BI"},
}

// Theme is the complete resolved palette for one render. Created fresh per
// render from sparse PrintSettings; never mutated afterwards.
type Theme struct {
	Accent          RGB
	Text            RGB
	Muted           RGB
	Border          RGB
	HeaderLine      RGB
	TableHeaderBG   RGB
	TableAltBG      RGB
	TotalsHighlight RGB
	Font            FontFamily
}

// ParseHex converts a 6-digit hex color (leading '#' optional) into an RGB.
// Anything else — empty, malformed, wrong length — yields the fallback.
func ParseHex(s string, fallback RGB) RGB {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallback
	}
	return RGB{
		R: float64(v>>16&0xff) / 255.0,
		G: float64(v>>8&0xff) / 255.0,
		B: float64(v&0xff) / 255.0,
	}
}

// Lighten blends c toward white by weight w, clamped component-wise
func Lighten(c RGB, w float64) RGB {
	return RGB{
		R: clamp01(c.R + (1-c.R)*clamp01(w)),
		G: clamp01(c.G + (1-c.G)*clamp01(w)),
		B: clamp01(c.B + (1-c.B)*clamp01(w)),
	}
}

// Darken blends c toward black by weight w, clamped component-wise
func Darken(c RGB, w float64) RGB {
	k := 1 - clamp01(w)
	return RGB{R: clamp01(c.R * k), G: clamp01(c.G * k), B: clamp01(c.B * k)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Derivation weights. The chrome colors all lighten the same secondary base
// with strictly increasing weights, which guarantees the lightness ordering
// border < header-line < table-header-bg < table-alt-bg.
const (
	secondaryFromTextWeight = 0.4
	borderWeight            = 0.45
	headerLineWeight        = 0.55
	tableHeaderWeight       = 0.65
	tableAltWeight          = 0.75
	totalsHighlightWeight   = 0.85
)

// ResolveTheme converts sparse print settings into a complete theme.
// Missing or malformed inputs degrade to defaults; this never fails.
func ResolveTheme(settings *models.PrintSettings) Theme {
	var (
		primary   string
		secondary string
		textColor string
		familyKey models.FontFamilyKey
	)
	if settings != nil {
		primary = settings.PrimaryColor
		secondary = settings.SecondaryColor
		textColor = settings.TextColor
		familyKey = settings.FontFamily
	}

	accent := ParseHex(primary, defaultAccent)
	text := ParseHex(textColor, defaultText)
	sec := ParseHex(secondary, Lighten(text, secondaryFromTextWeight))

	family, ok := fontFamilies[models.FontFamilyKey(strings.ToLower(strings.TrimSpace(string(familyKey))))]
	if !ok {
		family = fontFamilies[models.FontFamilyHelvetica]
	}

	return Theme{
		Accent:          accent,
		Text:            text,
		Muted:           Lighten(text, secondaryFromTextWeight),
		Border:          Lighten(sec, borderWeight),
		HeaderLine:      Lighten(sec, headerLineWeight),
		TableHeaderBG:   Lighten(sec, tableHeaderWeight),
		TableAltBG:      Lighten(sec, tableAltWeight),
		TotalsHighlight: Lighten(accent, totalsHighlightWeight),
		Font:            family,
	}
}
