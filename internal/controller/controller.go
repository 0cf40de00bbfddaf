// Package controller walks paginated notice listings incrementally, one
// (sub-unit, board) pair at a time, persisting only records newer than the
// pair's stored high-water mark.
package controller

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campushub/notice-harvester/internal/harvest"
	"github.com/campushub/notice-harvester/internal/metrics"
)

// Config controls pagination and fan-out.
type Config struct {
	// PageCap bounds how deep one pair's page walk may go.
	PageCap int
	// MaxConcurrent bounds how many pairs are harvested at once.
	MaxConcurrent int
	// Topic names the destination for harvested-batch events.
	Topic string
}

// Controller runs incremental harvests.
type Controller struct {
	cfg       Config
	extractor harvest.Extractor
	notices   harvest.NoticeStore
	publisher harvest.Publisher
	clock     harvest.Clock
	logger    *zap.Logger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithPublisher emits a batch event after every harvest that inserted rows.
func WithPublisher(p harvest.Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithClock overrides the time source.
func WithClock(clock harvest.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// New builds a Controller.
func New(cfg Config, extractor harvest.Extractor, notices harvest.NoticeStore, logger *zap.Logger, opts ...Option) *Controller {
	if cfg.PageCap <= 0 {
		cfg.PageCap = 10
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		cfg:       cfg,
		extractor: extractor,
		notices:   notices,
		clock:     systemClock{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PairResult summarizes one pair harvest.
type PairResult struct {
	SubUnitID int64
	Board     harvest.BoardType
	Pages     int
	Scanned   int
	Inserted  int
	// Skipped is set when the pair has no URL template; not an error.
	Skipped bool
}

// batchEvent is the payload published after a harvest that inserted rows.
type batchEvent struct {
	SubUnitID   int64     `json:"sub_unit_id"`
	SubUnitCode string    `json:"sub_unit_code"`
	Board       string    `json:"board"`
	Inserted    int       `json:"inserted"`
	Scanned     int       `json:"scanned"`
	Cursor      string    `json:"cursor"`
	CompletedAt time.Time `json:"completed_at"`
}

// HarvestBoard walks the pair's listing pages newest-first, stops at the
// stored cursor, and persists everything scanned before the stop point.
// Extraction failures mid-walk do not discard records accumulated from
// earlier pages.
func (c *Controller) HarvestBoard(ctx context.Context, su harvest.SubUnit, board harvest.BoardType) (PairResult, error) {
	result := PairResult{SubUnitID: su.ID, Board: board}
	tpl, ok := su.Template(board)
	if !ok {
		result.Skipped = true
		return result, nil
	}

	metrics.IncActiveHarvesters()
	defer metrics.DecActiveHarvesters()
	start := c.clock.Now()

	cursorRaw, err := c.notices.MaxPostID(ctx, su.ID, board)
	if err != nil {
		metrics.ObservePair(string(board), "failed", c.clock.Now().Sub(start))
		return result, err
	}
	cursor := harvest.NewCursor(cursorRaw)
	display := su.Name + " - " + board.Label()

	var (
		batch      []harvest.NoticeRecord
		stopped    bool
		extractErr error
	)
	for page := 1; page <= c.cfg.PageCap && !stopped; page++ {
		pageURL := harvest.MaterializePage(tpl, page)
		records, source, err := c.extractor.ExtractPage(ctx, pageURL)
		if err != nil {
			extractErr = err
			break
		}
		result.Pages++
		if len(records) == 0 {
			// End of the listing.
			break
		}
		for _, rec := range records {
			result.Scanned++
			if cursor.Reached(rec.ID) {
				stopped = true
				break
			}
			batch = append(batch, harvest.NoticeRecord{
				SubUnitID:         su.ID,
				BoardType:         board,
				PostID:            rec.ID,
				Title:             rec.Title,
				URL:               rec.URL,
				PostedAt:          rec.PostedAt,
				CrawledAt:         c.clock.Now(),
				SourceDisplayName: display,
			})
		}
		c.logger.Debug("page scanned",
			zap.String("sub_unit", su.Code),
			zap.String("board", string(board)),
			zap.Int("page", page),
			zap.String("source", string(source)),
			zap.Int("records", len(records)),
			zap.Bool("stopped", stopped))
	}

	// Records scanned before a mid-walk failure are still new; persist them.
	inserted, err := c.notices.InsertBatch(ctx, batch)
	result.Inserted = inserted
	if err != nil {
		metrics.ObservePair(string(board), "failed", c.clock.Now().Sub(start))
		return result, err
	}
	metrics.ObserveInserted(string(board), inserted)

	if extractErr != nil {
		if len(batch) == 0 {
			metrics.ObservePair(string(board), "failed", c.clock.Now().Sub(start))
			return result, extractErr
		}
		c.logger.Warn("page walk ended early, partial batch persisted",
			zap.String("sub_unit", su.Code),
			zap.String("board", string(board)),
			zap.Int("inserted", inserted),
			zap.Error(extractErr))
		metrics.ObservePair(string(board), "partial", c.clock.Now().Sub(start))
	} else {
		metrics.ObservePair(string(board), "ok", c.clock.Now().Sub(start))
	}

	c.publishBatch(ctx, su, board, result, cursor)

	// Zero inserts is the normal steady state for an unchanged listing.
	c.logger.Info("pair harvested",
		zap.String("sub_unit", su.Code),
		zap.String("board", string(board)),
		zap.Int("pages", result.Pages),
		zap.Int("scanned", result.Scanned),
		zap.Int("inserted", inserted))
	return result, nil
}

func (c *Controller) publishBatch(ctx context.Context, su harvest.SubUnit, board harvest.BoardType, result PairResult, cursor harvest.Cursor) {
	if c.publisher == nil || result.Inserted == 0 {
		return
	}
	event := batchEvent{
		SubUnitID:   su.ID,
		SubUnitCode: su.Code,
		Board:       string(board),
		Inserted:    result.Inserted,
		Scanned:     result.Scanned,
		Cursor:      cursor.String(),
		CompletedAt: c.clock.Now(),
	}
	if _, err := c.publisher.Publish(ctx, c.cfg.Topic, event); err != nil {
		// Events are advisory; a publish failure never fails the harvest.
		c.logger.Warn("batch event publish failed",
			zap.String("sub_unit", su.Code),
			zap.String("board", string(board)),
			zap.Error(err))
	}
}

// HarvestAll fans out over every (sub-unit, board) pair with a bounded worker
// pool. A failing pair is logged and never aborts its siblings; the returned
// count is the total rows inserted across all pairs.
func (c *Controller) HarvestAll(ctx context.Context, units []harvest.SubUnit) (int, error) {
	var total atomic.Int64

	g := &errgroup.Group{}
	g.SetLimit(c.cfg.MaxConcurrent)
	for _, su := range units {
		for _, board := range harvest.AllBoardTypes() {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				result, err := c.HarvestBoard(ctx, su, board)
				if err != nil {
					c.logger.Error("pair harvest failed",
						zap.String("sub_unit", su.Code),
						zap.String("board", string(board)),
						zap.Error(err))
					return nil
				}
				total.Add(int64(result.Inserted))
				return nil
			})
		}
	}
	_ = g.Wait()
	return int(total.Load()), ctx.Err()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
