// Package partition resolves month keys to prepared ledger partitions.
// Resolving checks the worksheet structure and, for a partition nobody has
// configured yet, carries settings forward from the previous month.
package partition

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
)

type Resolver struct {
	store  sheets.Store
	logger *log.Logger

	mu       sync.Mutex
	prepared map[core.MonthKey]bool
}

func NewResolver(store sheets.Store, logger *log.Logger) *Resolver {
	return &Resolver{
		store:    store,
		logger:   logger,
		prepared: make(map[core.MonthKey]bool),
	}
}

// Resolve returns a ready-to-use partition for the key. The spreadsheet
// itself must already exist; core.ErrPartitionNotFound passes through so
// callers can tell the household to provision the month.
func (r *Resolver) Resolve(ctx context.Context, key core.MonthKey) (sheets.Partition, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	part, err := r.store.Partition(ctx, key)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	done := r.prepared[key]
	r.mu.Unlock()
	if done {
		return part, nil
	}

	if err := part.EnsureStructure(ctx); err != nil {
		return nil, fmt.Errorf("prepare partition %s: %w", key, err)
	}

	cfg, err := part.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("read config of %s: %w", key, err)
	}
	if cfg.AtDefaults() {
		// Best effort: a failed carry-forward leaves the partition at factory
		// settings, which is still usable.
		if err := r.carryForward(ctx, part, key); err != nil {
			r.logger.Warn("carry-forward from previous month failed",
				log.FieldPartition, key.String(),
				log.FieldError, err.Error(),
			)
		}
	}

	r.mu.Lock()
	r.prepared[key] = true
	r.mu.Unlock()
	return part, nil
}

func (r *Resolver) carryForward(ctx context.Context, part sheets.Partition, key core.MonthKey) error {
	prev, err := r.store.Partition(ctx, key.Previous())
	if errors.Is(err, core.ErrPartitionNotFound) {
		return nil // first month ever, nothing to inherit
	}
	if err != nil {
		return err
	}

	prevCfg, err := prev.Config(ctx)
	if err != nil {
		return err
	}
	if !prevCfg.AtDefaults() {
		if err := part.SetRate(ctx, prevCfg.Rate, prevCfg.RateSource, prevCfg.RateBCV, prevCfg.RateParallel); err != nil {
			return err
		}
	}

	cats, err := prev.Categories(ctx)
	if err != nil {
		return err
	}
	if len(cats) > 0 {
		if err := part.SetCategories(ctx, cats); err != nil {
			return err
		}
	}

	budgets, err := prev.Budgets(ctx)
	if err != nil {
		return err
	}
	for _, b := range budgets {
		if err := part.SetBudget(ctx, b); err != nil {
			return err
		}
	}

	r.logger.Info("carried configuration forward",
		log.FieldPartition, key.String(),
		log.FieldRate, prevCfg.Rate,
	)
	return nil
}
