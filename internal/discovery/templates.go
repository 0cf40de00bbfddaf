package discovery

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/campushub/notice-harvester/internal/harvest"
)

// Anchor text tokens that identify a board link, per board type, most
// specific first. Matching is case-insensitive substring.
var boardAnchorTokens = map[harvest.BoardType][]string{
	harvest.BoardAcademic:      {"학사공지", "학사", "academic notice", "academic"},
	harvest.BoardUndergraduate: {"공지사항", "공지", "notice board", "notice"},
	harvest.BoardGraduate:      {"대학원공지", "대학원 공지", "graduate notice"},
}

// Tokens for the keyword-discovered graduate board: a generic notice link
// whose text also mentions the graduate school.
var (
	graduateTokens = []string{"대학원", "graduate"}
	noticeTokens   = []string{"공지", "notice", "board"}
)

type anchor struct {
	text string
	href string
}

// ResolveBoardTemplates reads the sub-unit's page and fills in any unset
// board URL templates from keyword-matched anchors. Templates already present
// on the sub-unit (from a manual override, typically) are left untouched. A
// page with no matching anchors is not an error; unresolved boards are simply
// never harvested.
func ResolveBoardTemplates(ctx context.Context, fetcher Fetcher, su *harvest.SubUnit) error {
	doc, base, err := fetchDocument(ctx, fetcher, su.URL)
	if err != nil {
		return err
	}

	var anchors []anchor
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		text := strings.ToLower(strings.Join(strings.Fields(s.Text()), " "))
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if text == "" || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := base.Parse(href)
		if err != nil {
			return
		}
		anchors = append(anchors, anchor{text: text, href: ref.String()})
	})

	// Graduate goes before undergraduate: its anchor texts are supersets of
	// the generic notice tokens and must be claimed first.
	for _, board := range []harvest.BoardType{harvest.BoardAcademic, harvest.BoardGraduate, harvest.BoardUndergraduate} {
		if _, ok := su.Template(board); ok {
			continue
		}
		exclude := []string(nil)
		if board == harvest.BoardUndergraduate {
			exclude = graduateTokens
		}
		if link, found := firstAnchorMatching(anchors, boardAnchorTokens[board], exclude); found {
			if tpl, err := harvest.TemplateFromURL(link); err == nil {
				su.SetTemplate(board, tpl)
			}
		}
	}

	// Keyword fallback: a department with no dedicated graduate board often
	// links its graduate notices through a generically named anchor.
	if _, ok := su.Template(harvest.BoardGraduate); !ok {
		if _, ok := su.Template(harvest.BoardKeywordGraduate); !ok {
			if link, found := firstAnchorMatchingBoth(anchors, graduateTokens, noticeTokens); found {
				if tpl, err := harvest.TemplateFromURL(link); err == nil {
					su.SetTemplate(harvest.BoardKeywordGraduate, tpl)
				}
			}
		}
	}
	return nil
}

func firstAnchorMatching(anchors []anchor, tokens, exclude []string) (string, bool) {
	for _, token := range tokens {
		for _, a := range anchors {
			if strings.Contains(a.text, token) && !containsAny(a.text, exclude) {
				return a.href, true
			}
		}
	}
	return "", false
}

func firstAnchorMatchingBoth(anchors []anchor, first, second []string) (string, bool) {
	for _, a := range anchors {
		if containsAny(a.text, first) && containsAny(a.text, second) {
			return a.href, true
		}
	}
	return "", false
}

func containsAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}
