package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/campushub/notice-harvester/internal/harvest"
)

// Field aliases used by menu-backing APIs for institution entries.
var (
	menuNameKeys = []string{"name", "collegeNm", "college_name", "orgNm", "title"}
	menuURLKeys  = []string{"url", "link", "homepage", "hpUrl"}
	menuListKeys = []string{"list", "collegeList", "data", "items", "result"}
)

// renderedMenuAdapter discovers institutions from portals whose menu only
// exists after JavaScript runs. It watches the page's own network traffic for
// the menu's backing API call and reads that API directly; when no such call
// is seen it falls back to parsing anchors out of the rendered DOM.
type renderedMenuAdapter struct {
	fetcher  Fetcher
	renderer Renderer
}

func (a *renderedMenuAdapter) Kind() harvest.InstitutionKind {
	return harvest.KindRenderedMenu
}

func (a *renderedMenuAdapter) DiscoverInstitutions(ctx context.Context, target harvest.Target) ([]harvest.Institution, error) {
	if target.MenuKeyword != "" {
		apiURLs, err := a.renderer.CaptureRequests(ctx, target.URL, target.MenuKeyword)
		if err != nil {
			return nil, fmt.Errorf("capture menu requests from %s: %w", target.URL, err)
		}
		for _, apiURL := range apiURLs {
			insts, err := a.institutionsFromAPI(ctx, target, apiURL)
			if err != nil {
				continue
			}
			return insts, nil
		}
	}
	return a.institutionsFromDOM(ctx, target)
}

// institutionsFromAPI reads one captured API URL; the first URL whose
// response parses into named entries wins.
func (a *renderedMenuAdapter) institutionsFromAPI(ctx context.Context, target harvest.Target, apiURL string) ([]harvest.Institution, error) {
	v, err := a.fetcher.FetchJSON(ctx, apiURL)
	if err != nil {
		return nil, err
	}
	entries, ok := menuEntries(v)
	if !ok {
		return nil, fmt.Errorf("menu api %s: unrecognized shape", apiURL)
	}
	base, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("parse target url: %w", err)
	}
	var out []harvest.Institution
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name := firstString(m, menuNameKeys)
		link := firstString(m, menuURLKeys)
		if name == "" || link == "" {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(link))
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref).String()
		out = append(out, harvest.Institution{
			Code: Code(target.Name, name, abs),
			Name: name,
			URL:  abs,
			Kind: harvest.KindRenderedMenu,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("menu api %s: no usable entries", apiURL)
	}
	return out, nil
}

func (a *renderedMenuAdapter) institutionsFromDOM(ctx context.Context, target harvest.Target) ([]harvest.Institution, error) {
	html, err := a.renderer.HTML(ctx, target.URL)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", target.URL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered dom: %w", err)
	}
	base, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("parse target url: %w", err)
	}
	candidates, _ := subUnitCandidates(doc, base)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("rendered menu %s: no institution links found", target.URL)
	}
	out := make([]harvest.Institution, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, harvest.Institution{
			Code: Code(target.Name, c.name, c.url),
			Name: c.name,
			URL:  c.url,
			Kind: harvest.KindRenderedMenu,
		})
	}
	return out, nil
}

func (a *renderedMenuAdapter) DiscoverSubUnits(ctx context.Context, inst harvest.Institution) ([]harvest.SubUnit, error) {
	return discoverSubUnitsByCascade(ctx, a.fetcher, inst)
}

func menuEntries(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case map[string]any:
		for _, key := range menuListKeys {
			if nested, ok := val[key].([]any); ok {
				return nested, true
			}
		}
	}
	return nil, false
}

func firstString(m map[string]any, keys []string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
