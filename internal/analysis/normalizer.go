package analysis

import (
	"regexp"
	"sort"
	"strings"
)

// PageBreak separates pages in normalized text.
const PageBreak = "\n\n--- Page Break ---\n\n"

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	disallowed    = regexp.MustCompile(`[^A-Za-z0-9_ .,()%/:;-]`)
)

// CleanText collapses whitespace, drops characters outside the allow-list and trims.
// Whitespace is collapsed first so that newlines and tabs become spaces rather
// than being stripped.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = disallowed.ReplaceAllString(text, "")
	// stripping can leave adjacent spaces behind ("a © b")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Normalize cleans every page and joins them in page order with PageBreak.
func Normalize(pages []PageText) string {
	if len(pages) == 0 {
		return ""
	}
	ordered := make([]PageText, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Page < ordered[j].Page })

	parts := make([]string, len(ordered))
	for i, p := range ordered {
		parts[i] = CleanText(p.Text)
	}
	return strings.Join(parts, PageBreak)
}

// IsBlank reports whether normalized text carries no content besides page breaks.
func IsBlank(normalized string) bool {
	return strings.TrimSpace(strings.ReplaceAll(normalized, strings.TrimSpace(PageBreak), "")) == ""
}

// SplitPages undoes the PageBreak join.
func SplitPages(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, PageBreak)
}
