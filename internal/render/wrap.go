package render

import "strings"

// wrapText greedily packs words into lines no wider than maxWidth, measured
// by the caller's width function. Once maxLines is reached the remaining
// text is hard-truncated with an ellipsis so adjacent fixed boxes never
// overlap. A single word wider than the box is split character-wise and
// continues on the next line.
func wrapText(text string, maxWidth float64, maxLines int, width func(string) float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	current := ""
	for i := 0; i < len(words); i++ {
		word := words[i]
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if width(candidate) <= maxWidth {
			current = candidate
			continue
		}
		if current == "" {
			// Oversized word: take the widest prefix that fits and push
			// the remainder back so the next line picks it up.
			current = shrink(word, maxWidth, width)
			if rest := word[len(current):]; rest != "" {
				words[i] = rest
				i--
			}
		} else {
			i-- // word starts the next line
		}
		lines = append(lines, current)
		if len(lines) == maxLines {
			if rest := strings.Join(words[i+1:], " "); rest != "" {
				lines[maxLines-1] = ellipsize(lines[maxLines-1]+" "+rest, maxWidth, width)
			}
			return lines
		}
		current = ""
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// ellipsize trims s until it fits maxWidth with a trailing ellipsis.
func ellipsize(s string, maxWidth float64, width func(string) float64) string {
	const ellipsis = "..."
	if width(s) <= maxWidth {
		return s
	}
	for len(s) > 0 {
		s = s[:len(s)-1]
		if width(strings.TrimRight(s, " ")+ellipsis) <= maxWidth {
			return strings.TrimRight(s, " ") + ellipsis
		}
	}
	return ellipsis
}

func shrink(s string, maxWidth float64, width func(string) float64) string {
	for len(s) > 1 && width(s) > maxWidth {
		s = s[:len(s)-1]
	}
	return s
}
