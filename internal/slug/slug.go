// Package slug turns human titles into canonical path-safe identifiers.
package slug

import "strings"

// Normalize lower-cases s, strips everything outside [a-z0-9], the Arabic
// block (U+0600–U+06FF), spaces, and hyphens, converts spaces to hyphens,
// and collapses hyphen runs. It is total and idempotent; all-stripped input
// yields "" and the caller must supply its own fallback.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 0x0600 && r <= 0x06FF: // Arabic letters stay intact
			b.WriteRune(r)
		case r == ' ', r == '-':
			b.WriteByte('-')
		}
	}

	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return out
}

// CurriculumID resolves the bundle identifier: explicit value wins, then the
// environment-provided value, then the "<source>-to-<target>" convention.
// The result is always normalized.
func CurriculumID(explicit, env, sourceLang, targetLang string) string {
	if explicit != "" {
		return Normalize(explicit)
	}
	if env != "" {
		return Normalize(env)
	}
	return Normalize(sourceLang + "-to-" + targetLang)
}
