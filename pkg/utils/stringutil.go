package utils

import (
	"strings"
	"unicode/utf8"
)

// Coalesce returns the first non-empty string among candidates.
func Coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Truncate returns a string not exceeding maxRunes runes. Adds ellipsis if truncated and addEllipsis is true.
func Truncate(s string, maxRunes int, addEllipsis bool) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	var b strings.Builder
	count := 0
	for _, r := range s {
		if count == maxRunes {
			break
		}
		b.WriteRune(r)
		count++
	}
	out := b.String()
	if addEllipsis {
		out += "…"
	}
	return out
}

// SplitAndTrim splits by sep and trims each part, dropping empty parts.
func SplitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
