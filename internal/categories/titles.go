package categories

import "strings"

// Space2Underscore converts a display title into the storage form used by
// page_title and cl_to
func Space2Underscore(s string) string {
	return strings.ReplaceAll(s, " ", "_")
}

// Underscore2Space converts a storage title back into its display form
func Underscore2Space(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// normalizeTitle trims surrounding whitespace and converts to storage form
func normalizeTitle(s string) string {
	return Space2Underscore(strings.TrimSpace(s))
}
