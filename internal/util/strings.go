// Package util provides shared text helpers for terminal output.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Truncate cuts s to maxWidth visual columns, adding "..." if truncated.
// ANSI escape codes and wide characters are measured correctly.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate counts the tail toward the width
	return ansi.Truncate(s, maxWidth, "...")
}

// ShortenPath fits a slash-separated path into maxWidth columns by replacing
// leading directories with ".../", so the file name stays visible. A path
// whose last element alone does not fit is truncated from the right.
func ShortenPath(p string, maxWidth int) string {
	if lipgloss.Width(p) <= maxWidth {
		return p
	}
	parts := strings.Split(p, "/")
	for i := 1; i < len(parts); i++ {
		short := ".../" + strings.Join(parts[i:], "/")
		if lipgloss.Width(short) <= maxWidth {
			return short
		}
	}
	return Truncate(p, maxWidth)
}
