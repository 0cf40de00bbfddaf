package discovery

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

const maxSlugLen = 15

// Code derives a stable identifier from a unit's name and URL. The slug keeps
// the code readable; the hash suffix keeps renamed or same-named units from
// colliding, since the URL is part of the input.
func Code(prefix, name, url string) string {
	sum := sha256.Sum256([]byte(name + "|" + url))
	suffix := fmt.Sprintf("%x", sum[:3])
	parts := []string{}
	if prefix != "" {
		parts = append(parts, slugify(prefix))
	}
	if s := slugify(name); s != "" {
		parts = append(parts, s)
	}
	parts = append(parts, suffix)
	return strings.Join(parts, "-")
}

// slugify lowercases, replaces non-alphanumeric runs with a hyphen, and
// truncates. Non-ASCII names (Korean department names, for instance) may slug
// to nothing; the hash suffix still identifies them.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
