package services

import (
	"context"
	"fmt"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
)

// BudgetTracker keeps per-category monthly limits and evaluates spending
// against them. Spent totals are always computed from the ledger, never
// stored.
type BudgetTracker struct {
	resolver ledger.Resolver
	locks    *PartitionLocks
	ledger   *ledger.Ledger
	logger   *log.Logger
}

func NewBudgetTracker(resolver ledger.Resolver, locks *PartitionLocks, l *ledger.Ledger, logger *log.Logger) *BudgetTracker {
	if locks == nil {
		locks = NewPartitionLocks()
	}
	return &BudgetTracker{resolver: resolver, locks: locks, ledger: l, logger: logger}
}

func (t *BudgetTracker) SetLimit(ctx context.Context, key core.MonthKey, category string, limit core.Money) error {
	if strings.TrimSpace(category) == "" {
		return fmt.Errorf("empty budget category")
	}
	if limit.Cents <= 0 {
		return fmt.Errorf("%w: budget limit must be positive", core.ErrInvalidAmount)
	}
	lock := t.locks.Get(key)
	lock.Lock()
	defer lock.Unlock()
	part, err := t.resolver.Resolve(ctx, key)
	if err != nil {
		return err
	}
	if err := part.SetBudget(ctx, core.Budget{Category: category, Limit: limit}); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	t.logger.Info("budget limit set",
		log.FieldPartition, key.String(),
		log.FieldCategory, category,
		log.FieldAmount, limit.String(),
	)
	return nil
}

// Check evaluates one category. Returns nil with no error when the category
// has no configured limit.
func (t *BudgetTracker) Check(ctx context.Context, key core.MonthKey, category string) (*core.BudgetStatus, error) {
	part, err := t.resolver.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	budgets, err := part.Budgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	for _, b := range budgets {
		if strings.EqualFold(b.Category, category) {
			return t.status(ctx, key, b)
		}
	}
	return nil, nil
}

// CheckAll evaluates every configured budget of the month.
func (t *BudgetTracker) CheckAll(ctx context.Context, key core.MonthKey) ([]core.BudgetStatus, error) {
	part, err := t.resolver.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	budgets, err := part.Budgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		st, err := t.status(ctx, key, b)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}

func (t *BudgetTracker) status(ctx context.Context, key core.MonthKey, b core.Budget) (*core.BudgetStatus, error) {
	spent, err := t.ledger.SpentInCategory(ctx, key, b.Category)
	if err != nil {
		return nil, err
	}
	pct := 0.0
	if b.Limit.Cents > 0 {
		pct = float64(spent.Cents) / float64(b.Limit.Cents) * 100
	}
	return &core.BudgetStatus{
		Category: b.Category,
		Spent:    spent,
		Limit:    b.Limit,
		Pct:      pct,
		Alert:    core.AlertFor(pct),
	}, nil
}
