package render

import "strings"

// substitutions maps characters outside the safe subset to ASCII-safe
// equivalents. The core fonts are cp1252; an unsupported glyph would throw
// off width measurement and silently corrupt the fixed layout, so anything
// not covered here is stripped before measuring or drawing.
var substitutions = map[rune]string{
	'é': "e", 'è': "e", 'ê': "e", 'ë': "e",
	'á': "a", 'à': "a", 'â': "a", 'ä': "a", 'ã': "a",
	'í': "i", 'ì': "i", 'î': "i", 'ï': "i",
	'ó': "o", 'ò': "o", 'ô': "o", 'ö': "o", 'õ': "o",
	'ú': "u", 'ù': "u", 'û': "u", 'ü': "u",
	'ç': "c", 'ñ': "n",
	'É': "E", 'È': "E", 'Á': "A", 'À': "A",
	'Ó': "O", 'Ú': "U", 'Ç': "C", 'Ñ': "N",
	'‘': "'", '’': "'", '“': `"`, '”': `"`,
	'–': "-", '—': "-", '…': "...",
	' ': " ",
	'€': "EUR", '£': "GBP", '¥': "JPY",
}

// safeText restricts s to printable ASCII, substituting known lookalikes
// and dropping everything else. Idempotent: safeText(safeText(s)) == safeText(s).
func safeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 0x20 && r <= 0x7e:
			b.WriteRune(r)
		case r == '\n' || r == '\t':
			b.WriteByte(' ')
		default:
			if sub, ok := substitutions[r]; ok {
				b.WriteString(sub)
			}
		}
	}
	return b.String()
}
