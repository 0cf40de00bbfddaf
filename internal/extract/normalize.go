package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// collapseWhitespace trims and squeezes all runs of whitespace to one space.
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

// resolveLink makes href absolute against the page URL.
func resolveLink(page *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("empty link")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", href, err)
	}
	return page.ResolveReference(ref).String(), nil
}

// Date formats tried in priority order: ISO variants first, then date-only
// locale variants seen on notice boards.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006.01.02",
	"2006. 01. 02",
	"2006/01/02",
	"02.01.2006",
}

var looseDateRE = regexp.MustCompile(`(20\d{2})[./-]\s?(\d{1,2})[./-]\s?(\d{1,2})`)

// parseDate tries the fixed format list, then falls back to locating a
// date-like fragment inside the string (boards often append "hits" or writer
// names to the date cell).
func parseDate(s string) (time.Time, error) {
	s = collapseWhitespace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if m := looseDateRE.FindStringSubmatch(s); m != nil {
		normalized := fmt.Sprintf("%s-%s-%s", m[1], pad2(m[2]), pad2(m[3]))
		if t, err := time.Parse("2006-01-02", normalized); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// Query parameters boards commonly use for the post identifier.
var idParamNames = []string{"no", "seq", "idx", "id", "articleNo", "nttId", "wr_id", "num"}

var trailingDigitsRE = regexp.MustCompile(`(\d+)/?$`)

// recoverID extracts a post identifier from a link when the listing does not
// expose one directly: a known numeric query parameter first, then a trailing
// numeric path segment.
func recoverID(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	q := u.Query()
	for _, name := range idParamNames {
		if v := q.Get(name); v != "" && isDigits(v) {
			return v, true
		}
	}
	if m := trailingDigitsRE.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	return "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
