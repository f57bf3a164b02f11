package render

// ellipsis is appended when text is truncated to fit a column
const ellipsis = "..."

// Clip fits text into maxWidth using the supplied glyph-width function
// (typically the PDF library's string measurer for the active font).
//
// If the full string already fits it is returned unchanged. Otherwise
// characters are accumulated greedily while the prefix plus the ellipsis
// still fits; the last fitting prefix wins. If even the ellipsis alone does
// not fit, the ellipsis alone is returned. The result never measures wider
// than maxWidth, though the greedy scan may stop one character earlier than
// an exhaustive search would.
func Clip(text string, maxWidth float64, width func(string) float64) string {
	if text == "" || width(text) <= maxWidth {
		return text
	}
	if width(ellipsis) > maxWidth {
		return ellipsis
	}

	runes := []rune(text)
	fit := ""
	for i := 1; i <= len(runes); i++ {
		prefix := string(runes[:i])
		if width(prefix+ellipsis) > maxWidth {
			break
		}
		fit = prefix
	}
	return fit + ellipsis
}
