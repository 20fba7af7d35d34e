package services

import (
	"strings"
)

// likeEscaper escapes the LIKE wildcards so user text matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a lower-cased "%term%" pattern for a
// case-insensitive LIKE ... ESCAPE '\' match.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

// optionalString maps the empty string to nil, for nullable actor columns.
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// normalizeList trims each comma-separated entry, drops empties and
// case-insensitive duplicates (keeping the first spelling), and caps the
// result at max entries when max > 0.
func normalizeList(raw string, max int) string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
		if max > 0 && len(out) == max {
			break
		}
	}
	return strings.Join(out, ", ")
}

// splitList splits a normalized comma-separated list.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
