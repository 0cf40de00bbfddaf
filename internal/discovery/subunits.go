package discovery

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/campushub/notice-harvester/internal/harvest"
)

// Selector cascade for sub-unit links on an institution's page, tried in
// order of structural specificity.
var subUnitSelectors = []string{
	"ul.dept_list li a",
	"div.department-list a",
	"ul.snb li a",
	"nav.lnb a",
	"div.content ul li a",
	"ul li a",
}

// Plausible sub-unit counts for one institution. A selector matching outside
// these bounds is assumed to have caught navigation chrome or nothing real.
const (
	minSubUnits = 2
	maxSubUnits = 80
)

const (
	minNameLen = 2
	maxNameLen = 40
)

// At least one of these must appear in a candidate name.
var departmentTokens = []string{
	"학과", "학부", "전공", "대학원", "교육과",
	"department", "dept", "school of", "division", "engineering",
	"science", "studies", "program",
}

// None of these may appear in a candidate name.
var nonDepartmentTokens = []string{
	"입학", "취업", "캠퍼스",
	"admission", "campus life", "sitemap", "login", "contact",
	"privacy", "directions", "news", "event",
}

type subUnitCandidate struct {
	name string
	url  string
}

// subUnitCandidates runs the selector cascade over the institution page and
// returns the accepted candidate set plus whether any cascade entry produced
// a count inside the plausible bounds. When none does, the largest filtered
// set is returned as a last resort and the caller should log it.
func subUnitCandidates(doc *goquery.Document, pageURL *url.URL) ([]subUnitCandidate, bool) {
	var largest []subUnitCandidate
	for _, selector := range subUnitSelectors {
		candidates := collectCandidates(doc, pageURL, selector)
		if len(candidates) >= minSubUnits && len(candidates) <= maxSubUnits {
			return candidates, true
		}
		if len(candidates) > len(largest) {
			largest = candidates
		}
	}
	return largest, false
}

func collectCandidates(doc *goquery.Document, pageURL *url.URL, selector string) []subUnitCandidate {
	var out []subUnitCandidate
	seen := map[string]struct{}{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		name := strings.Join(strings.Fields(s.Text()), " ")
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !plausibleName(name) || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := pageURL.ResolveReference(ref)
		if abs.Host != pageURL.Host {
			return
		}
		link := abs.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		out = append(out, subUnitCandidate{name: name, url: link})
	})
	return out
}

func plausibleName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < minNameLen || n > maxNameLen {
		return false
	}
	lower := strings.ToLower(name)
	for _, token := range nonDepartmentTokens {
		if strings.Contains(lower, token) {
			return false
		}
	}
	for _, token := range departmentTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// subUnitsFromCandidates binds candidates to the institution, deriving stable
// codes from name and URL.
func subUnitsFromCandidates(inst harvest.Institution, candidates []subUnitCandidate) []harvest.SubUnit {
	out := make([]harvest.SubUnit, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, harvest.SubUnit{
			InstitutionID: inst.ID,
			Code:          Code("", c.name, c.url),
			Name:          c.name,
			URL:           c.url,
			Kind:          "department",
		})
	}
	return out
}
