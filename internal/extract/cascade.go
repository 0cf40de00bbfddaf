package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SelectorGroup is one structural guess for a notice listing: four field
// selectors producing parallel arrays. ID and Date may be empty, in which
// case the id is recovered from the link and the date from surrounding text.
type SelectorGroup struct {
	Name  string
	ID    string
	Title string
	Link  string
	Date  string
}

// DefaultCascade lists the structural guesses in priority order, from the
// classic board table down to card-style lists.
var DefaultCascade = []SelectorGroup{
	{Name: "board-table", ID: "td.no", Title: "td.title a", Link: "td.title a", Date: "td.date"},
	{Name: "board-list", ID: "div.board_list td.num", Title: "div.board_list td.subject a", Link: "div.board_list td.subject a", Date: "div.board_list td.date"},
	{Name: "generic-table", Title: "table tbody tr td a", Link: "table tbody tr td a", Date: "table tbody tr td.date"},
	{Name: "list-items", Title: "ul li a", Link: "ul li a", Date: "ul li span.date"},
	{Name: "cards", Title: "div.card a", Link: "div.card a", Date: "div.card span.date"},
}

// fieldArrays holds the parallel arrays one selector group produced.
type fieldArrays struct {
	ids    []string
	titles []string
	links  []string
	dates  []string
}

// collect runs the group's selectors over the document.
func (g SelectorGroup) collect(doc *goquery.Document) fieldArrays {
	var out fieldArrays
	if g.ID != "" {
		doc.Find(g.ID).Each(func(_ int, s *goquery.Selection) {
			out.ids = append(out.ids, collapseWhitespace(s.Text()))
		})
	}
	doc.Find(g.Title).Each(func(_ int, s *goquery.Selection) {
		out.titles = append(out.titles, collapseWhitespace(s.Text()))
	})
	doc.Find(g.Link).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		out.links = append(out.links, strings.TrimSpace(href))
	})
	if g.Date != "" {
		doc.Find(g.Date).Each(func(_ int, s *goquery.Selection) {
			out.dates = append(out.dates, collapseWhitespace(s.Text()))
		})
	}
	return out
}

// usable reports whether the arrays describe at least one candidate record.
func (a fieldArrays) usable() bool {
	return len(a.titles) > 0 && len(a.links) > 0
}

// rowCount returns the consistent length across non-empty arrays, and whether
// any truncation was needed to get there.
func (a fieldArrays) rowCount() (int, bool) {
	n := len(a.titles)
	truncated := false
	clamp := func(l int) {
		if l == 0 {
			return
		}
		if l < n {
			n = l
			truncated = true
		} else if l > n {
			truncated = true
		}
	}
	clamp(len(a.links))
	clamp(len(a.ids))
	clamp(len(a.dates))
	return n, truncated
}

// row assembles the i-th raw record from the arrays.
func (a fieldArrays) row(i int) rawRecord {
	rec := rawRecord{
		title: a.titles[i],
		link:  a.links[i],
	}
	if i < len(a.ids) {
		rec.id = a.ids[i]
	}
	if i < len(a.dates) {
		rec.date = a.dates[i]
	}
	return rec
}
