package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// charWidth measures one unit per character, which makes expectations easy
// to read: maxWidth is simply a character budget.
func charWidth(s string) float64 { return float64(len(s)) }

func TestWrapText(t *testing.T) {
	t.Run("short text stays on one line", func(t *testing.T) {
		lines := wrapText("hello world", 20, 3, charWidth)
		assert.Equal(t, []string{"hello world"}, lines)
	})

	t.Run("words wrap greedily", func(t *testing.T) {
		lines := wrapText("one two three four", 9, 5, charWidth)
		assert.Equal(t, []string{"one two", "three", "four"}, lines)
	})

	t.Run("exhausted line budget truncates with ellipsis", func(t *testing.T) {
		lines := wrapText("alpha beta gamma delta epsilon", 11, 2, charWidth)
		assert.Len(t, lines, 2)
		assert.Contains(t, lines[1], "...")
		assert.LessOrEqual(t, charWidth(lines[1]), 11.0)
	})

	t.Run("oversized single word is split hard", func(t *testing.T) {
		lines := wrapText("abcdefghijklmnop", 5, 3, charWidth)
		assert.LessOrEqual(t, charWidth(lines[0]), 5.0)
	})

	t.Run("oversized word continues on the next line", func(t *testing.T) {
		lines := wrapText("abcdefghij", 5, 3, charWidth)
		assert.Equal(t, []string{"abcde", "fghij"}, lines)
	})

	t.Run("oversized word remainder joins following words", func(t *testing.T) {
		lines := wrapText("abcdefg hi", 5, 3, charWidth)
		assert.Equal(t, []string{"abcde", "fg hi"}, lines)
	})

	t.Run("empty text yields no lines", func(t *testing.T) {
		assert.Nil(t, wrapText("   ", 10, 2, charWidth))
	})
}

func TestEllipsize(t *testing.T) {
	assert.Equal(t, "short", ellipsize("short", 10, charWidth))
	out := ellipsize("a very long piece of text", 10, charWidth)
	assert.LessOrEqual(t, charWidth(out), 10.0)
	assert.Contains(t, out, "...")
}

func TestSafeText(t *testing.T) {
	t.Run("ascii passes through", func(t *testing.T) {
		assert.Equal(t, "Invoice #42 (final)", safeText("Invoice #42 (final)"))
	})

	t.Run("accents are substituted", func(t *testing.T) {
		assert.Equal(t, "Cafe Francais", safeText("Café Français"))
	})

	t.Run("smart punctuation becomes ascii", func(t *testing.T) {
		assert.Equal(t, `"quoted" - done...`, safeText("“quoted” – done…"))
	})

	t.Run("unknown glyphs are stripped", func(t *testing.T) {
		assert.Equal(t, "x  y", safeText("x 世界 y"))
	})

	t.Run("idempotent", func(t *testing.T) {
		in := "Café — 42 EUR"
		assert.Equal(t, safeText(in), safeText(safeText(in)))
	})
}
