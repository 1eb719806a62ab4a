package storage

import "strings"

// NormalizeColumn converts a column name to its canonical comparison form.
//
// Backends report existing columns with their own casing; target stores
// treat identifiers case-insensitively (or fold them). Comparing normalized
// names keeps the additive schema diff consistent across backends.
func NormalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MissingColumns returns the desired columns not present in existing,
// compared under NormalizeColumn, preserving desired order.
func MissingColumns(desired, existing []string) []string {
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[NormalizeColumn(c)] = true
	}

	var out []string
	for _, c := range desired {
		if !have[NormalizeColumn(c)] {
			out = append(out, c)
		}
	}
	return out
}
