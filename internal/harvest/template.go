package harvest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PagePlaceholder marks where the page number goes in a listing URL template.
const PagePlaceholder = "{page}"

// Query parameter names that boards commonly use for pagination. Any of these
// found on a listing URL is stripped before templating.
var pageParamNames = []string{"page", "p", "pageNo", "pageNum", "pg", "start", "currentPage"}

// TemplateFromURL converts a concrete listing URL into a pagination template:
// known pagination parameters are removed and a page placeholder is appended.
//
//	https://law.x/notice?page=3&cat=a -> https://law.x/notice?cat=a&page={page}
//	https://law.x/notice              -> https://law.x/notice?page={page}
func TemplateFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}
	q := u.Query()
	for _, name := range pageParamNames {
		q.Del(name)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""

	s := u.String()
	if strings.Contains(s, "?") {
		return s + "&page=" + PagePlaceholder, nil
	}
	return s + "?page=" + PagePlaceholder, nil
}

// MaterializePage substitutes a concrete page number into a template.
func MaterializePage(tpl string, page int) string {
	return strings.ReplaceAll(tpl, PagePlaceholder, strconv.Itoa(page))
}
