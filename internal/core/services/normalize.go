package services

import (
	"strings"
	"unicode"
)

// NormalizeText cleans extracted text before chunking: line endings become
// "\n", control and format characters are dropped, runs of horizontal
// whitespace become one space, lines are trimmed, runs of blank lines
// become a single blank line, and the result is trimmed.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))

	blankRun := 0
	for _, line := range strings.Split(text, "\n") {
		line = collapseLine(line)
		if line == "" {
			blankRun++
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
			if blankRun > 0 {
				b.WriteByte('\n')
			}
		}
		blankRun = 0
		b.WriteString(line)
	}

	return b.String()
}

// collapseLine drops disallowed characters, squeezes whitespace and trims.
func collapseLine(line string) string {
	var b strings.Builder
	b.Grow(len(line))

	pendingSpace := false
	for _, r := range line {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r), r == unicode.ReplacementChar:
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// nonSpaceCount returns the number of non-whitespace characters in s.
func nonSpaceCount(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
