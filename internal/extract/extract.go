// Package extract implements dual-source page extraction: a structured
// (API-shaped) read first, falling back to a markup read driven by a selector
// cascade. Both paths normalize into the same record shape.
package extract

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/campushub/notice-harvester/internal/fetch"
	"github.com/campushub/notice-harvester/internal/harvest"
	"github.com/campushub/notice-harvester/internal/metrics"
)

// ErrNoRows reports that every selector group came up empty on the markup
// path; the page could not be extracted at all.
var ErrNoRows = errors.New("no selector group matched the page")

// Fetcher is the subset of the resilient fetch client the extractor uses.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	FetchJSON(ctx context.Context, url string) (any, error)
}

// Extractor extracts notice records from listing pages.
type Extractor struct {
	fetcher  Fetcher
	cascade  []SelectorGroup
	snapshot harvest.BlobStore
	clock    harvest.Clock
	logger   *zap.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithCascade replaces the default selector cascade.
func WithCascade(groups []SelectorGroup) Option {
	return func(e *Extractor) { e.cascade = groups }
}

// WithSnapshots archives the raw HTML of pages that defeat the whole cascade,
// for offline selector debugging.
func WithSnapshots(store harvest.BlobStore) Option {
	return func(e *Extractor) { e.snapshot = store }
}

// WithClock overrides the time source.
func WithClock(clock harvest.Clock) Option {
	return func(e *Extractor) { e.clock = clock }
}

// New builds an Extractor around a fetcher.
func New(fetcher Fetcher, logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		fetcher: fetcher,
		cascade: DefaultCascade,
		clock:   systemClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractPage attempts a structured read of the page, falls back to markup on
// any transport, decode, or shape failure, and returns normalized records
// plus which source produced them.
func (e *Extractor) ExtractPage(ctx context.Context, pageURL string) ([]harvest.Record, harvest.Source, error) {
	if records, ok := e.tryStructured(ctx, pageURL); ok {
		metrics.ObservePage(string(harvest.SourceStructured), "ok")
		return records, harvest.SourceStructured, nil
	}
	metrics.ObserveFallback()
	records, err := e.tryMarkup(ctx, pageURL)
	if err != nil {
		metrics.ObservePage(string(harvest.SourceMarkup), "failed")
		return nil, harvest.SourceMarkup, err
	}
	metrics.ObservePage(string(harvest.SourceMarkup), "ok")
	return records, harvest.SourceMarkup, nil
}

func (e *Extractor) tryStructured(ctx context.Context, pageURL string) ([]harvest.Record, bool) {
	v, err := e.fetcher.FetchJSON(ctx, pageURL)
	if err != nil {
		e.logger.Debug("structured fetch failed, falling back to markup",
			zap.String("url", pageURL), zap.Error(err))
		return nil, false
	}
	raw, err := recordsFromStructured(v)
	if err != nil {
		e.logger.Debug("structured response rejected, falling back to markup",
			zap.String("url", pageURL), zap.Error(err))
		return nil, false
	}
	if len(raw) == 0 {
		// An empty listing ends the page walk; it is not a shape failure, so
		// the markup fallback would only misread the page.
		return []harvest.Record{}, true
	}
	records := e.normalizeAll(pageURL, raw)
	if len(records) == 0 {
		return nil, false
	}
	return records, true
}

func (e *Extractor) tryMarkup(ctx context.Context, pageURL string) ([]harvest.Record, error) {
	html, err := e.fetchListingHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html from %s: %w", pageURL, err)
	}

	for _, group := range e.cascade {
		arrays := group.collect(doc)
		if !arrays.usable() {
			continue
		}
		n, truncated := arrays.rowCount()
		if truncated {
			e.logger.Warn("selector group arrays disagree in length, truncating",
				zap.String("url", pageURL),
				zap.String("group", group.Name),
				zap.Int("rows", n))
		}
		raw := make([]rawRecord, 0, n)
		for i := range n {
			raw = append(raw, arrays.row(i))
		}
		records := e.normalizeAll(pageURL, raw)
		if len(records) == 0 {
			continue
		}
		e.logger.Debug("selector group matched",
			zap.String("url", pageURL),
			zap.String("group", group.Name),
			zap.Int("records", len(records)))
		return records, nil
	}

	e.archiveFailure(ctx, pageURL, html)
	return nil, fmt.Errorf("%w: %s", ErrNoRows, pageURL)
}

// fetchListingHTML fetches the page, retrying once with mode=list appended
// when a board 404s without it.
func (e *Extractor) fetchListingHTML(ctx context.Context, pageURL string) (string, error) {
	html, err := e.fetcher.FetchText(ctx, pageURL)
	if err == nil {
		return html, nil
	}
	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) &&
		statusErr.StatusCode == http.StatusNotFound &&
		!strings.Contains(pageURL, "mode=list") {
		sep := "?"
		if strings.Contains(pageURL, "?") {
			sep = "&"
		}
		if html, retryErr := e.fetcher.FetchText(ctx, pageURL+sep+"mode=list"); retryErr == nil {
			return html, nil
		}
	}
	return "", err
}

// normalizeAll normalizes raw records, dropping (with a warning) any record
// still missing a required field. A dropped record is never fatal to the
// rest of the page.
func (e *Extractor) normalizeAll(pageURL string, raw []rawRecord) []harvest.Record {
	base, err := url.Parse(pageURL)
	if err != nil {
		e.logger.Warn("unparseable page url", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	records := make([]harvest.Record, 0, len(raw))
	for i, rec := range raw {
		normalized, err := e.normalize(base, rec)
		if err != nil {
			e.logger.Warn("dropping malformed record",
				zap.String("url", pageURL),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		records = append(records, normalized)
	}
	return records
}

func (e *Extractor) normalize(base *url.URL, rec rawRecord) (harvest.Record, error) {
	title := collapseWhitespace(rec.title)
	if title == "" {
		return harvest.Record{}, fmt.Errorf("missing title")
	}
	link, err := resolveLink(base, rec.link)
	if err != nil {
		return harvest.Record{}, err
	}
	postedAt, err := parseDate(rec.date)
	if err != nil {
		return harvest.Record{}, err
	}
	id := collapseWhitespace(rec.id)
	if id == "" || !isPlausibleID(id) {
		recovered, ok := recoverID(link)
		if !ok {
			if id == "" {
				return harvest.Record{}, fmt.Errorf("missing id and none recoverable from %s", link)
			}
			// Keep the opaque id (e.g. a pinned "notice" marker) as-is.
		} else {
			id = recovered
		}
	}
	return harvest.Record{
		ID:       id,
		Title:    title,
		URL:      link,
		PostedAt: postedAt,
	}, nil
}

// isPlausibleID filters obvious non-identifiers like full sentences out of
// id cells while keeping short opaque tokens.
func isPlausibleID(id string) bool {
	return len(id) <= 32 && !strings.Contains(id, " ")
}

func (e *Extractor) archiveFailure(ctx context.Context, pageURL, html string) {
	if e.snapshot == nil || html == "" {
		return
	}
	name := fmt.Sprintf("extract-failures/%s/%x.html",
		e.clock.Now().UTC().Format("2006-01-02"), fnvHash(pageURL))
	uri, err := e.snapshot.PutObject(ctx, name, "text/html; charset=utf-8", []byte(html))
	if err != nil {
		e.logger.Warn("failed to archive extraction failure",
			zap.String("url", pageURL), zap.Error(err))
		return
	}
	e.logger.Info("archived unextractable page",
		zap.String("url", pageURL), zap.String("blob_uri", uri))
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
