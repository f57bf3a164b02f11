package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// runeWidth gives every rune a width of 1 so budgets read as rune counts
func runeWidth(s string) float64 {
	return float64(len([]rune(s)))
}

func TestClipFitsUnchanged(t *testing.T) {
	assert.Equal(t, "hello", Clip("hello", 5, runeWidth))
	assert.Equal(t, "hello", Clip("hello", 100, runeWidth))
	assert.Equal(t, "", Clip("", 0, runeWidth))
}

func TestClipTruncatesWithEllipsis(t *testing.T) {
	// budget 8 leaves room for 5 characters plus the 3-dot ellipsis
	assert.Equal(t, "hello...", Clip("hello world", 8, runeWidth))
	assert.Equal(t, "h...", Clip("hello world", 4, runeWidth))
}

func TestClipEllipsisOnlyWhenNothingFits(t *testing.T) {
	assert.Equal(t, "...", Clip("hello world", 3, runeWidth))
	assert.Equal(t, "...", Clip("hello world", 1, runeWidth))
}

func TestClipHandlesMultibyteRunes(t *testing.T) {
	got := Clip("héllo wörld", 7, runeWidth)
	assert.Equal(t, "héll...", got)
	// truncation never splits a rune
	assert.True(t, strings.HasSuffix(got, ellipsis))
}

func TestClipNeverExceedsBudget(t *testing.T) {
	texts := []string{
		"a",
		"short",
		"a considerably longer description that will not fit anywhere",
		strings.Repeat("x", 500),
	}
	for _, text := range texts {
		for budget := 3.0; budget <= 40; budget++ {
			got := Clip(text, budget, runeWidth)
			if got == text || got == ellipsis {
				continue
			}
			assert.LessOrEqual(t, runeWidth(got), budget,
				"clip of %q at budget %v produced %q", text, budget, got)
		}
	}
}
