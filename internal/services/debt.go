package services

import (
	"context"
	"fmt"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
)

// DebtTracker records informal loans to people and their settlement.
type DebtTracker struct {
	resolver ledger.Resolver
	locks    *PartitionLocks
	clock    core.Clock
	logger   *log.Logger
}

func NewDebtTracker(resolver ledger.Resolver, locks *PartitionLocks, clock core.Clock, logger *log.Logger) *DebtTracker {
	if locks == nil {
		locks = NewPartitionLocks()
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &DebtTracker{resolver: resolver, locks: locks, clock: clock, logger: logger}
}

func (t *DebtTracker) Register(ctx context.Context, key core.MonthKey, d core.Debt) error {
	if strings.TrimSpace(d.Person) == "" {
		return fmt.Errorf("empty debtor name")
	}
	if d.Amount.Cents <= 0 {
		return fmt.Errorf("%w: debt amount must be positive", core.ErrInvalidAmount)
	}
	lock := t.locks.Get(key)
	lock.Lock()
	defer lock.Unlock()
	part, err := t.resolver.Resolve(ctx, key)
	if err != nil {
		return err
	}
	d.Status = core.DebtPending
	if d.LoanDate.IsZero() {
		d.LoanDate = core.DateOf(t.clock.Now())
	}
	if err := part.AppendDebt(ctx, d); err != nil {
		return fmt.Errorf("register debt: %w", err)
	}
	t.logger.Info("debt registered",
		log.FieldPartition, key.String(),
		log.FieldPerson, d.Person,
		log.FieldAmount, d.Amount.String(),
	)
	return nil
}

// ListPending returns only debts still waiting on payment.
func (t *DebtTracker) ListPending(ctx context.Context, key core.MonthKey) ([]core.Debt, error) {
	part, err := t.resolver.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	debts, err := part.Debts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load debts: %w", err)
	}
	var out []core.Debt
	for _, d := range debts {
		if d.Status == core.DebtPending {
			out = append(out, d)
		}
	}
	return out, nil
}

// MarkPaid settles the person's debt, matched case-insensitively against the
// first record carrying the name. When that record is already paid the call
// is an idempotent no-op: it never reaches past the first match to settle a
// later debt under the same name.
func (t *DebtTracker) MarkPaid(ctx context.Context, key core.MonthKey, person string) (core.Debt, error) {
	lock := t.locks.Get(key)
	lock.Lock()
	defer lock.Unlock()
	part, err := t.resolver.Resolve(ctx, key)
	if err != nil {
		return core.Debt{}, err
	}
	debts, err := part.Debts(ctx)
	if err != nil {
		return core.Debt{}, fmt.Errorf("load debts: %w", err)
	}

	for i, d := range debts {
		if !strings.EqualFold(strings.TrimSpace(d.Person), strings.TrimSpace(person)) {
			continue
		}
		if d.Status == core.DebtPaid {
			return d, nil
		}
		d.Status = core.DebtPaid
		d.PaidDate = core.DateOf(t.clock.Now())
		if err := part.UpdateDebt(ctx, i, d); err != nil {
			return core.Debt{}, fmt.Errorf("mark debt paid: %w", err)
		}
		t.logger.Info("debt settled",
			log.FieldPartition, key.String(),
			log.FieldPerson, d.Person,
			log.FieldAmount, d.Amount.String(),
		)
		return d, nil
	}
	return core.Debt{}, fmt.Errorf("%w: %s", core.ErrDebtNotFound, person)
}
