package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/campushub/notice-harvester/internal/harvest"
)

const umbrellaHeadings = "h2, h3"

// graduateUmbrellaAdapter handles a single shared page that enumerates
// several graduate schools as heading-delimited sections. Each heading
// becomes an institution; the links between one heading and the next are its
// sub-units.
type graduateUmbrellaAdapter struct {
	fetcher Fetcher
}

func (a *graduateUmbrellaAdapter) Kind() harvest.InstitutionKind {
	return harvest.KindGraduateUmbrella
}

func (a *graduateUmbrellaAdapter) DiscoverInstitutions(ctx context.Context, target harvest.Target) ([]harvest.Institution, error) {
	doc, _, err := fetchDocument(ctx, a.fetcher, target.URL)
	if err != nil {
		return nil, err
	}
	var out []harvest.Institution
	doc.Find(umbrellaHeadings).Each(func(_ int, s *goquery.Selection) {
		name := strings.Join(strings.Fields(s.Text()), " ")
		if name == "" {
			return
		}
		// Section links live on the shared page; the institution URL is the
		// umbrella page itself and DiscoverSubUnits re-reads its section.
		out = append(out, harvest.Institution{
			Code: Code(target.Name, name, target.URL),
			Name: name,
			URL:  target.URL,
			Kind: harvest.KindGraduateUmbrella,
		})
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("umbrella page %s: no section headings found", target.URL)
	}
	return out, nil
}

func (a *graduateUmbrellaAdapter) DiscoverSubUnits(ctx context.Context, inst harvest.Institution) ([]harvest.SubUnit, error) {
	doc, base, err := fetchDocument(ctx, a.fetcher, inst.URL)
	if err != nil {
		return nil, err
	}

	var section *goquery.Selection
	doc.Find(umbrellaHeadings).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name := strings.Join(strings.Fields(s.Text()), " ")
		if name != inst.Name {
			return true
		}
		section = s.NextUntil(umbrellaHeadings)
		return false
	})
	if section == nil {
		return nil, fmt.Errorf("umbrella section %q not found on %s", inst.Name, inst.URL)
	}

	var candidates []subUnitCandidate
	seen := map[string]struct{}{}
	section.Find("a").Each(func(_ int, s *goquery.Selection) {
		name := strings.Join(strings.Fields(s.Text()), " ")
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if name == "" || href == "" {
			return
		}
		ref, err := base.Parse(href)
		if err != nil {
			return
		}
		link := ref.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		candidates = append(candidates, subUnitCandidate{name: name, url: link})
	})
	if len(candidates) == 0 {
		return nil, fmt.Errorf("umbrella section %q on %s lists no departments", inst.Name, inst.URL)
	}
	units := subUnitsFromCandidates(inst, candidates)
	// Umbrella sections list graduate programs; their notices live on the
	// graduate board by definition.
	for i := range units {
		units[i].Kind = "graduate-program"
	}
	return units, nil
}
