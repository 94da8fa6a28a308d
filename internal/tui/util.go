package tui

import (
	"strings"
	"unicode/utf8"
)

// wrapLine breaks s at spaces so that no line is wider than width runes. Words longer than
// width are split.
func wrapLine(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	var lines []string
	var line []rune
	for _, word := range strings.Split(s, " ") {
		runes := []rune(word)
		if len(line) > 0 && len(line)+1+len(runes) <= width {
			line = append(line, ' ')
			line = append(line, runes...)
			continue
		}
		if len(line) > 0 {
			lines = append(lines, string(line))
			line = nil
		}
		for len(runes) > width {
			lines = append(lines, string(runes[:width]))
			runes = runes[width:]
		}
		line = runes
	}
	return append(lines, string(line))
}

func wrapWithPrefix(s string, prefix string, width int) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		wrapped := wrapLine(line, width-utf8.RuneCountInString(prefix))
		for j, w := range wrapped {
			wrapped[j] = prefix + w
		}
		lines[i] = strings.Join(wrapped, "\n")
	}
	return strings.Join(lines, "\n")
}
