package utils

import (
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeName turns a human-readable key (invoice number, customer name)
// into a safe file or folder name. Returns empty string when nothing
// usable remains, in which case callers fall back to id-based naming.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._-")
	if len(name) > 120 {
		name = name[:120]
	}
	return name
}
