package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/notice-harvester/internal/harvest"
	"github.com/campushub/notice-harvester/internal/metrics"
)

// Resolver runs the three discovery stages (institutions, sub-units, board
// templates) against configured targets and reconciles the results into the
// store. Failures are contained per institution and per sub-unit; one broken
// site never blocks the rest of the cycle.
type Resolver struct {
	registry  Registry
	fetcher   Fetcher
	insts     harvest.InstitutionStore
	subs      harvest.SubUnitStore
	overrides []Override
	delay     time.Duration
	logger    *zap.Logger
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithOverrides supplies the manual override table.
func WithOverrides(overrides []Override) ResolverOption {
	return func(r *Resolver) { r.overrides = overrides }
}

// WithPolitenessDelay sets the pause between consecutive page loads against
// the same discovery run.
func WithPolitenessDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.delay = d }
}

// NewResolver builds a Resolver over the adapter registry and stores.
func NewResolver(registry Registry, fetcher Fetcher, insts harvest.InstitutionStore, subs harvest.SubUnitStore, logger *zap.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		registry: registry,
		fetcher:  fetcher,
		insts:    insts,
		subs:     subs,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs discovery for every target, then applies manual overrides.
// It returns an error only when the context is canceled; per-site failures
// are logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, targets []harvest.Target) error {
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.resolveTarget(ctx, target); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.logger.Error("target discovery failed",
				zap.String("target", target.Name), zap.Error(err))
		}
	}
	return r.applyOverrides(ctx)
}

func (r *Resolver) resolveTarget(ctx context.Context, target harvest.Target) error {
	adapter, err := r.registry.Adapter(target.Kind)
	if err != nil {
		return err
	}
	insts, err := adapter.DiscoverInstitutions(ctx, target)
	if err != nil {
		return fmt.Errorf("discover institutions: %w", err)
	}
	r.logger.Info("discovered institutions",
		zap.String("target", target.Name), zap.Int("count", len(insts)))

	for _, inst := range insts {
		stored, err := r.insts.Upsert(ctx, inst)
		if err != nil {
			r.logger.Error("institution upsert failed",
				zap.String("code", inst.Code), zap.Error(err))
			continue
		}
		metrics.ObserveUpsert("institution")
		if err := r.resolveSubUnits(ctx, adapter, stored); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.logger.Warn("sub-unit discovery failed",
				zap.String("institution", stored.Code), zap.Error(err))
		}
		if err := r.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) resolveSubUnits(ctx context.Context, adapter SiteAdapter, inst harvest.Institution) error {
	units, err := adapter.DiscoverSubUnits(ctx, inst)
	if errors.Is(err, errUnboundedCandidates) {
		r.logger.Warn("sub-unit selector cascade fell back to largest candidate set",
			zap.String("institution", inst.Code), zap.Int("count", len(units)))
	} else if err != nil {
		return err
	}

	for _, su := range units {
		su.InstitutionID = inst.ID
		if err := ResolveBoardTemplates(ctx, r.fetcher, &su); err != nil {
			// The unit is still worth keeping; templates can arrive via
			// overrides or a later run.
			r.logger.Warn("board template resolution failed",
				zap.String("sub_unit", su.Code), zap.Error(err))
		}
		if _, err := r.subs.Upsert(ctx, su); err != nil {
			r.logger.Error("sub-unit upsert failed",
				zap.String("sub_unit", su.Code), zap.Error(err))
		} else {
			metrics.ObserveUpsert("sub_unit")
		}
		if err := r.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

// applyOverrides folds the manual override table in after discovery, so its
// templates win over anything the keyword search produced.
func (r *Resolver) applyOverrides(ctx context.Context) error {
	for _, ovr := range r.overrides {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.applyOverride(ctx, ovr); err != nil {
			r.logger.Warn("manual override skipped",
				zap.String("institution", ovr.Institution),
				zap.String("sub_unit", ovr.SubUnit),
				zap.Error(err))
		}
	}
	return nil
}

func (r *Resolver) applyOverride(ctx context.Context, ovr Override) error {
	inst, found, err := r.insts.GetByName(ctx, ovr.Institution)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("institution %q not discovered yet", ovr.Institution)
	}

	tpl, err := harvest.TemplateFromURL(ovr.URL)
	if err != nil {
		return err
	}

	name := ovr.SubUnit
	representative := name == ""
	if representative {
		name = representativeName(inst)
	}
	su, found, err := r.findSubUnitByName(ctx, inst.ID, name)
	if err != nil {
		return err
	}
	if !found {
		su = harvest.SubUnit{
			InstitutionID: inst.ID,
			Code:          Code("ovr", name, ovr.URL),
			Name:          name,
			URL:           ovr.URL,
			Kind:          "override",
		}
	}

	board := classifyOverrideBoard(ovr.URL)
	su.SetTemplate(board, tpl)
	// A representative listing with no stronger hint serves both the academic
	// and undergraduate feeds.
	if representative && board == harvest.BoardUndergraduate {
		su.SetTemplate(harvest.BoardAcademic, tpl)
	}

	_, err = r.subs.Upsert(ctx, su)
	return err
}

func (r *Resolver) findSubUnitByName(ctx context.Context, institutionID int64, name string) (harvest.SubUnit, bool, error) {
	units, err := r.subs.ListByInstitution(ctx, institutionID)
	if err != nil {
		return harvest.SubUnit{}, false, err
	}
	for _, su := range units {
		if su.Name == name {
			return su, true, nil
		}
	}
	return harvest.SubUnit{}, false, nil
}

func (r *Resolver) pause(ctx context.Context) error {
	if r.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
