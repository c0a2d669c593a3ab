// Package textutil measures and reshapes terminal text. Widths are cell
// widths, so ANSI styling and wide runes are accounted for.
package textutil

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

// ClipBytes returns at most n bytes of s without splitting a rune.
func ClipBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// TailBytes returns at most the last n bytes of s, starting on a rune.
func TailBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

func WrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wordwrap.String(text, width)
}

// WrapIndent wraps text to width and indents every line by n cells.
func WrapIndent(text string, width int, n uint) string {
	if width > int(n) {
		text = WrapText(text, width-int(n))
	}
	return indent.String(text, n)
}

func TruncateWithEllipsis(line string, width int) string {
	lineWidth := ansi.StringWidth(line)
	if lineWidth <= width {
		return line
	}
	if width <= 3 {
		return strings.Repeat(".", max(width, 0))
	}
	return ansi.Cut(line, 0, width-3) + "..."
}

func StringWidth(s string) int {
	return ansi.StringWidth(s)
}

// Excerpt keeps the first maxLines lines of s, each cut to width, and
// notes how many lines were dropped.
func Excerpt(s string, maxLines, width int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	dropped := 0
	if maxLines > 0 && len(lines) > maxLines {
		dropped = len(lines) - maxLines
		lines = lines[:maxLines]
	}
	for i, line := range lines {
		if width > 0 {
			lines[i] = TruncateWithEllipsis(line, width)
		}
	}
	out := strings.Join(lines, "\n")
	if dropped > 0 {
		out += fmt.Sprintf("\n… %d more line(s)", dropped)
	}
	return out
}

// MaxLineWidth is the widest line in display cells.
func MaxLineWidth(lines []string) int {
	maxWidth := 0
	for _, line := range lines {
		w := StringWidth(line)
		if w > maxWidth {
			maxWidth = w
		}
	}
	return maxWidth
}

// PadRight pads s with spaces to width cells.
func PadRight(s string, width int) string {
	if w := StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
