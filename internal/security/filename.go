// Package security holds helpers for turning untrusted identifiers, such as
// building codes echoed back by the particle service, into safe file names.
package security

import (
	"strconv"
	"strings"
)

// maxFilenameLen bounds every name produced here.
const maxFilenameLen = 128

// SanitizeFilename makes a safe filename from an arbitrary string. Anything
// that is not an ASCII letter, digit, dot, underscore or dash becomes a
// single underscore; leading and trailing dots and underscores are dropped.
// An empty result is "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// ExportFilename names a rendering of the given buildings, for example
// "surfaces_101036327-101036328_scene.html". Duplicate IDs are listed once.
// Past three buildings the list is shortened to the first one and a count.
func ExportFilename(buildingIDs []string, kind, ext string) string {
	seen := make(map[string]bool, len(buildingIDs))
	var ids []string
	for _, id := range buildingIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, SanitizeFilename(id))
	}

	var label string
	switch {
	case len(ids) == 0:
		label = "empty"
	case len(ids) > 3:
		label = ids[0] + "-and-" + strconv.Itoa(len(ids)-1) + "-more"
	default:
		label = strings.Join(ids, "-")
	}

	name := "surfaces_" + label + "_" + SanitizeFilename(kind)
	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + SanitizeFilename(ext)
	}
	return name
}
