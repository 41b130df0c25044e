package util

import "unicode/utf8"

// Truncate returns at most n runes of s, appending "..." when it cut anything.
// n <= 0 returns s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// LastLines returns the final n lines of s without a trailing empty line.
func LastLines(s string, n int) []string {
	if n <= 0 || s == "" {
		return nil
	}

	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
