// Package pipeline assembles the harvester from its parts and runs full
// discovery-then-harvest cycles.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/campushub/notice-harvester/internal/config"
	"github.com/campushub/notice-harvester/internal/controller"
	"github.com/campushub/notice-harvester/internal/discovery"
	"github.com/campushub/notice-harvester/internal/extract"
	"github.com/campushub/notice-harvester/internal/fetch"
	"github.com/campushub/notice-harvester/internal/harvest"
	memorypublisher "github.com/campushub/notice-harvester/internal/publisher/memory"
	pubpublisher "github.com/campushub/notice-harvester/internal/publisher/pubsub"
	"github.com/campushub/notice-harvester/internal/render"
	"github.com/campushub/notice-harvester/internal/snapshot/gcs"
	"github.com/campushub/notice-harvester/internal/snapshot/local"
	"github.com/campushub/notice-harvester/internal/store"
)

// Pipeline owns every long-lived component of the harvester. Build it once
// with New and release it with Close.
type Pipeline struct {
	cfg    config.Config
	logger *zap.Logger

	pool    *pgxpool.Pool
	insts   *store.InstitutionStore
	subs    *store.SubUnitStore
	notices *store.NoticeStore

	fetcher  *fetch.Client
	renderer *render.Renderer

	resolver   *discovery.Resolver
	controller *controller.Controller

	publisher    harvest.Publisher
	pubsubClient *pubsub.Client
	gcsClient    *storage.Client
}

// New connects to Postgres, applies pending migrations, and wires the
// discovery and harvest components per the configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := store.Migrate(cfg.DB.DSN); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	pool, err := store.NewPool(ctx, store.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetime) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	p := &Pipeline{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		insts:   store.NewInstitutionStore(pool),
		subs:    store.NewSubUnitStore(pool),
		notices: store.NewNoticeStore(pool),
	}

	p.fetcher = fetch.New(fetch.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.FetchTimeout(),
		MaxAttempts: cfg.HTTP.MaxRetries,
		BackoffBase: time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:  time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
	}, logger)

	p.renderer, err = render.New(render.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.HTTP.UserAgent,
		NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("start renderer: %w", err)
	}

	snapshots, err := p.buildSnapshotStore(ctx)
	if err != nil {
		p.Close()
		return nil, err
	}
	extractOpts := []extract.Option{}
	if snapshots != nil {
		extractOpts = append(extractOpts, extract.WithSnapshots(snapshots))
	}
	extractor := extract.New(p.fetcher, logger, extractOpts...)

	resolverOpts := []discovery.ResolverOption{
		discovery.WithPolitenessDelay(time.Duration(cfg.Discovery.PolitenessMs) * time.Millisecond),
	}
	if cfg.Discovery.OverridesFile != "" {
		overrides, err := loadOverrides(cfg.Discovery.OverridesFile)
		if err != nil {
			p.Close()
			return nil, err
		}
		resolverOpts = append(resolverOpts, discovery.WithOverrides(overrides))
	}
	registry := discovery.NewRegistry(p.fetcher, p.renderer)
	p.resolver = discovery.NewResolver(registry, p.fetcher, p.insts, p.subs, logger, resolverOpts...)

	p.publisher, p.pubsubClient, err = newPublisher(ctx, cfg.PubSub)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.controller = controller.New(controller.Config{
		PageCap:       cfg.Harvest.PageCap,
		MaxConcurrent: cfg.Harvest.MaxConcurrent,
		Topic:         cfg.PubSub.Topic,
	}, extractor, p.notices, logger, controller.WithPublisher(p.publisher))

	return p, nil
}

// newPublisher selects the batch-event publisher: Pub/Sub when a project is
// configured, an in-process publisher otherwise so the event path is always
// exercised.
func newPublisher(ctx context.Context, cfg config.PubSubConfig) (harvest.Publisher, *pubsub.Client, error) {
	if cfg.ProjectID == "" {
		return memorypublisher.New(), nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub, err := pubpublisher.New(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return pub, client, nil
}

func (p *Pipeline) buildSnapshotStore(ctx context.Context) (harvest.BlobStore, error) {
	switch p.cfg.Snapshot.Backend {
	case "", "none":
		return nil, nil
	case "local":
		blob, err := local.New(local.Config{BaseDir: p.cfg.Snapshot.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local snapshot store: %w", err)
		}
		return blob, nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		p.gcsClient = client
		blob, err := gcs.New(client, gcs.Config{Bucket: p.cfg.Snapshot.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs snapshot store: %w", err)
		}
		return blob, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", p.cfg.Snapshot.Backend)
	}
}

func loadOverrides(path string) ([]discovery.Override, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open overrides file: %w", err)
	}
	defer f.Close()
	overrides, err := discovery.ParseOverrides(f)
	if err != nil {
		return nil, fmt.Errorf("parse overrides file %s: %w", path, err)
	}
	return overrides, nil
}

// Stores exposes the read-side stores for the HTTP API.
func (p *Pipeline) Stores() (*store.InstitutionStore, *store.SubUnitStore, *store.NoticeStore) {
	return p.insts, p.subs, p.notices
}

// RunDiscovery refreshes the institution and sub-unit hierarchy from the
// configured targets.
func (p *Pipeline) RunDiscovery(ctx context.Context) error {
	return p.resolver.Resolve(ctx, p.cfg.HarvestTargets())
}

// RunCycle runs one full cycle: discovery first, then an incremental harvest
// of every known (sub-unit, board) pair. It returns the number of notices
// inserted.
func (p *Pipeline) RunCycle(ctx context.Context) (int, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))
	started := time.Now()

	logger.Info("cycle started", zap.Int("targets", len(p.cfg.Targets)))
	if err := p.RunDiscovery(ctx); err != nil {
		return 0, fmt.Errorf("discovery: %w", err)
	}

	units, err := p.subs.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sub-units: %w", err)
	}
	inserted, err := p.controller.HarvestAll(ctx, units)
	if err != nil {
		return inserted, fmt.Errorf("harvest: %w", err)
	}

	logger.Info("cycle completed",
		zap.Int("sub_units", len(units)),
		zap.Int("inserted", inserted),
		zap.Duration("elapsed", time.Since(started)),
	)
	return inserted, nil
}

// Close releases every resource the pipeline holds. Safe to call on a
// partially constructed pipeline.
func (p *Pipeline) Close() {
	if closer, ok := p.publisher.(interface{ Close() }); ok {
		closer.Close()
	}
	if p.pubsubClient != nil {
		if err := p.pubsubClient.Close(); err != nil {
			p.logger.Warn("close pubsub client", zap.Error(err))
		}
	}
	if p.gcsClient != nil {
		if err := p.gcsClient.Close(); err != nil {
			p.logger.Warn("close storage client", zap.Error(err))
		}
	}
	if p.renderer != nil {
		p.renderer.Close()
	}
	if p.fetcher != nil {
		p.fetcher.Close()
	}
	if p.pool != nil {
		p.pool.Close()
	}
}
