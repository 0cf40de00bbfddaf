// Package discovery finds institutions and their sub-units from configured
// portal pages, resolves each sub-unit's notice board templates, and
// reconciles everything into the store.
package discovery

import (
	"context"
	"fmt"

	"github.com/campushub/notice-harvester/internal/harvest"
)

// Fetcher is the subset of the resilient fetch client discovery uses.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	FetchJSON(ctx context.Context, url string) (any, error)
}

// Renderer drives a headless browser for portals whose menus only exist
// after JavaScript runs.
type Renderer interface {
	HTML(ctx context.Context, pageURL string) (string, error)
	CaptureRequests(ctx context.Context, pageURL, keyword string) ([]string, error)
}

// SiteAdapter implements one discovery strategy. Adapters are stateless; all
// page context travels through the arguments.
type SiteAdapter interface {
	Kind() harvest.InstitutionKind
	// DiscoverInstitutions finds the institutions reachable from the target's
	// portal page.
	DiscoverInstitutions(ctx context.Context, target harvest.Target) ([]harvest.Institution, error)
	// DiscoverSubUnits finds the sub-units listed on the institution's page.
	DiscoverSubUnits(ctx context.Context, inst harvest.Institution) ([]harvest.SubUnit, error)
}

// Registry maps institution kinds to their adapters.
type Registry map[harvest.InstitutionKind]SiteAdapter

// NewRegistry wires the three built-in strategies.
func NewRegistry(fetcher Fetcher, renderer Renderer) Registry {
	return Registry{
		harvest.KindRenderedMenu:     &renderedMenuAdapter{fetcher: fetcher, renderer: renderer},
		harvest.KindDirectoryPage:    &directoryPageAdapter{fetcher: fetcher},
		harvest.KindGraduateUmbrella: &graduateUmbrellaAdapter{fetcher: fetcher},
	}
}

// Adapter returns the adapter for the kind.
func (r Registry) Adapter(kind harvest.InstitutionKind) (SiteAdapter, error) {
	adapter, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("no discovery adapter for kind %q", kind)
	}
	return adapter, nil
}
