package dashboard

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

const ellipsis = "…"

// RuneWidth returns the number of terminal cells taken by r
func RuneWidth(r rune) int {
	if r == 0x200d || unicode.Is(unicode.Mn, r) || unicode.IsControl(r) {
		return 0
	}

	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}

	return 1
}

// StringWidth returns the number of terminal cells taken by s
func StringWidth(s string) int {
	n := 0
	for _, r := range s {
		n += RuneWidth(r)
	}
	return n
}

// Fit clips s to w cells, marking the cut with an ellipsis, and pads it with spaces
func Fit(s string, w int) string {
	if w <= 0 {
		return ""
	}

	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return ' '
		}
		return r
	}, s)

	sw := StringWidth(s)
	if sw <= w {
		return s + strings.Repeat(" ", w-sw)
	}

	var b strings.Builder
	used := 0
	for _, r := range s {
		rw := RuneWidth(r)
		if used+rw+1 > w {
			break
		}
		b.WriteRune(r)
		used += rw
	}
	b.WriteString(ellipsis)
	used++

	return b.String() + strings.Repeat(" ", w-used)
}
