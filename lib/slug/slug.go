package slug

import (
	"strings"

	"github.com/google/uuid"
)

// Make derives a URL-safe slug from a free-form name: lowercase, runs of
// non-alphanumeric characters collapsed into single dashes.
func Make(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Disambiguate appends a short random suffix for slug collisions.
func Disambiguate(s string) string {
	suffix := uuid.New().String()[:6]
	if s == "" {
		return suffix
	}
	return s + "-" + suffix
}
