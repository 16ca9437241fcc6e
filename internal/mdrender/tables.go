package mdrender

import (
	"regexp"
	"strings"
)

// Markdown tables only line up in a monospace cell-for-cell layout, which
// the inline renderer's glyph wrapping would destroy. PrepareTables
// rewrites each table into a fenced code block before the text reaches
// the renderer, so the dim code path preserves its alignment.

var (
	tableRowRe       = regexp.MustCompile(`^\s*\|(.+)\|\s*$`)
	tableSeparatorRe = regexp.MustCompile(`^\s*\|[\s\-:|]+\|\s*$`)
)

// PrepareTables returns text with every well-formed markdown table
// wrapped in a code fence. Malformed or header-only tables pass through
// untouched.
func PrepareTables(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for i := 0; i < len(lines); {
		end := tableEnd(lines, i)
		if end < 0 {
			out = append(out, lines[i])
			i++
			continue
		}
		out = append(out, "```")
		out = append(out, lines[i:end]...)
		out = append(out, "```")
		i = end
	}
	return strings.Join(out, "\n")
}

// tableEnd reports the line index just past a table starting at i, or -1
// when lines[i] does not begin a table (header row, separator row, and at
// least one data row).
func tableEnd(lines []string, i int) int {
	if !tableRowRe.MatchString(lines[i]) {
		return -1
	}
	if i+1 >= len(lines) || !tableSeparatorRe.MatchString(lines[i+1]) {
		return -1
	}
	end := i + 2
	for end < len(lines) && tableRowRe.MatchString(lines[end]) {
		end++
	}
	if end == i+2 {
		return -1
	}
	return end
}
