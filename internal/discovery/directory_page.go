package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/campushub/notice-harvester/internal/harvest"
)

// directoryPageAdapter discovers institutions from a static directory page;
// no browser engine involved.
type directoryPageAdapter struct {
	fetcher Fetcher
}

func (a *directoryPageAdapter) Kind() harvest.InstitutionKind {
	return harvest.KindDirectoryPage
}

func (a *directoryPageAdapter) DiscoverInstitutions(ctx context.Context, target harvest.Target) ([]harvest.Institution, error) {
	doc, base, err := fetchDocument(ctx, a.fetcher, target.URL)
	if err != nil {
		return nil, err
	}
	candidates, _ := subUnitCandidates(doc, base)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("directory page %s: no institution links found", target.URL)
	}
	out := make([]harvest.Institution, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, harvest.Institution{
			Code: Code(target.Name, c.name, c.url),
			Name: c.name,
			URL:  c.url,
			Kind: harvest.KindDirectoryPage,
		})
	}
	return out, nil
}

func (a *directoryPageAdapter) DiscoverSubUnits(ctx context.Context, inst harvest.Institution) ([]harvest.SubUnit, error) {
	return discoverSubUnitsByCascade(ctx, a.fetcher, inst)
}

// discoverSubUnitsByCascade applies the shared selector cascade to the
// institution's own page. Used by the menu and directory strategies.
func discoverSubUnitsByCascade(ctx context.Context, fetcher Fetcher, inst harvest.Institution) ([]harvest.SubUnit, error) {
	doc, base, err := fetchDocument(ctx, fetcher, inst.URL)
	if err != nil {
		return nil, err
	}
	candidates, bounded := subUnitCandidates(doc, base)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no sub-unit links found on %s", inst.URL)
	}
	units := subUnitsFromCandidates(inst, candidates)
	if !bounded {
		return units, errUnboundedCandidates
	}
	return units, nil
}

// errUnboundedCandidates accompanies a non-empty result whose selector never
// hit the plausible count window; the caller logs it and proceeds with the
// largest set found.
var errUnboundedCandidates = fmt.Errorf("no selector matched within plausible bounds, using largest candidate set")

func fetchDocument(ctx context.Context, fetcher Fetcher, pageURL string) (*goquery.Document, *url.URL, error) {
	html, err := fetcher.FetchText(ctx, pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse url %s: %w", pageURL, err)
	}
	return doc, base, nil
}
