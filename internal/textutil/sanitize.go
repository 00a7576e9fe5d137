package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxComponentLength caps a single path component in bytes.
const MaxComponentLength = 200

// UnknownComponent replaces names that sanitize to nothing.
const UnknownComponent = "Unknown"

var (
	unsafePathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	spaceRun        = regexp.MustCompile(`\s+`)
)

// CleanComponent makes name safe as a single directory or file name. Unsafe
// characters are dropped, surrounding dots and spaces are trimmed, whitespace
// runs collapse and the result is capped at MaxComponentLength.
func CleanComponent(name string) string {
	name = unsafePathChars.ReplaceAllString(name, "")
	name = strings.Trim(name, ". ")
	name = spaceRun.ReplaceAllString(name, " ")
	name = truncateBytes(name, MaxComponentLength)
	name = strings.Trim(name, ". ")
	if name == "" {
		return UnknownComponent
	}
	return name
}

// NormalizeTag removes NUL bytes and collapses whitespace in a metadata value.
func NormalizeTag(value string) string {
	value = strings.ReplaceAll(value, "\x00", "")
	return strings.TrimSpace(spaceRun.ReplaceAllString(value, " "))
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// truncateBytes shortens value to at most limit bytes without splitting a rune.
func truncateBytes(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
