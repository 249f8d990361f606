// Package ledger records transactions into month partitions and aggregates
// them. All amounts are normalized to the base currency before they are
// written, and every write runs through the duplicate guard.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"finanzas/internal/core"
	"finanzas/internal/currency"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
)

// Resolver locates (and prepares) the partition a date belongs to.
type Resolver interface {
	Resolve(ctx context.Context, key core.MonthKey) (sheets.Partition, error)
}

type Ledger struct {
	resolver Resolver
	clock    core.Clock
	logger   *log.Logger
}

func New(resolver Resolver, clock core.Clock, logger *log.Logger) *Ledger {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Ledger{resolver: resolver, clock: clock, logger: logger}
}

// Append normalizes, guards and records a candidate, returning the stamped
// transaction. The partition is chosen by the transaction's own date, not by
// the current month.
func (l *Ledger) Append(ctx context.Context, c core.TransactionCandidate) (core.Transaction, error) {
	if err := c.Validate(); err != nil {
		return core.Transaction{}, err
	}

	part, err := l.resolver.Resolve(ctx, c.Date.Key())
	if err != nil {
		return core.Transaction{}, err
	}

	rate := 1.0
	if !currency.IsBase(c.Currency) {
		cfg, err := part.Config(ctx)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("read partition config: %w", err)
		}
		rate, err = l.effectiveRate(ctx, part, cfg, c.Currency)
		if err != nil {
			return core.Transaction{}, err
		}
	}

	amountBase, rateApplied, err := currency.Normalize(c.Amount, c.Currency, rate)
	if err != nil {
		return core.Transaction{}, err
	}

	existing, err := part.Transactions(ctx, c.Kind)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transactions: %w", err)
	}

	now := l.clock.Now()
	tx := core.Transaction{
		ID:             uuid.NewString(),
		Kind:           c.Kind,
		Date:           c.Date,
		Time:           c.Time,
		AmountOriginal: c.Amount,
		Currency:       c.Currency,
		AmountBase:     amountBase,
		RateApplied:    rateApplied,
		Category:       c.Category,
		Concept:        c.Concept,
		Reference:      c.Reference,
		Reporter:       c.Reporter,
		ReceiptLink:    c.ReceiptLink,
		RecordedAt:     now,
	}
	if tx.Time == "" {
		tx.Time = now.Format("15:04")
	}

	if prev, dup := FindDuplicate(existing, tx); dup {
		l.logger.Warn("duplicate transaction rejected",
			log.FieldPartition, c.Date.Key().String(),
			log.FieldTransactionID, prev.ID,
		)
		return core.Transaction{}, fmt.Errorf("%w: matches %s", core.ErrDuplicateTransaction, prev.ID)
	}

	if err := part.AppendTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	l.logger.Info("transaction recorded",
		log.FieldPartition, c.Date.Key().String(),
		log.FieldTransactionID, tx.ID,
		log.FieldAmount, tx.AmountBase.String(),
	)
	return tx, nil
}

// effectiveRate resolves the conversion rate for a non-base currency. A
// partition still at factory defaults has no usable rate, so the most recent
// stamped expense rate is reused before giving up.
func (l *Ledger) effectiveRate(ctx context.Context, part sheets.Partition, cfg core.PartitionConfig, cur string) (float64, error) {
	if !cfg.AtDefaults() && cfg.Rate > 0 {
		return cfg.Rate, nil
	}
	expenses, err := part.Transactions(ctx, core.KindExpense)
	if err != nil {
		return 0, fmt.Errorf("load transactions: %w", err)
	}
	for i := len(expenses) - 1; i >= 0; i-- {
		if expenses[i].RateApplied > 1 && !currency.IsBase(expenses[i].Currency) {
			l.logger.Warn("rate not configured, reusing last applied rate",
				log.FieldPartition, part.Key().String(),
				log.FieldRate, expenses[i].RateApplied,
			)
			return expenses[i].RateApplied, nil
		}
	}
	return 0, fmt.Errorf("%w: no rate configured for %s in %s", core.ErrRateUnavailable, cur, part.Key())
}

// Aggregate builds the monthly summary from both transaction kinds.
func (l *Ledger) Aggregate(ctx context.Context, key core.MonthKey) (core.Summary, error) {
	part, err := l.resolver.Resolve(ctx, key)
	if err != nil {
		return core.Summary{}, err
	}

	expenses, err := part.Transactions(ctx, core.KindExpense)
	if err != nil {
		return core.Summary{}, fmt.Errorf("load expenses: %w", err)
	}
	incomes, err := part.Transactions(ctx, core.KindIncome)
	if err != nil {
		return core.Summary{}, fmt.Errorf("load incomes: %w", err)
	}

	s := core.Summary{
		Key:          key,
		ByCategory:   map[string]core.Money{},
		ExpenseCount: len(expenses),
		IncomeCount:  len(incomes),
	}
	daily := map[string]core.Money{}
	for _, tx := range expenses {
		s.TotalExpense = s.TotalExpense.Add(tx.AmountBase)
		cat := tx.Category
		if cat == "" {
			cat = "Otros"
		}
		s.ByCategory[cat] = s.ByCategory[cat].Add(tx.AmountBase)
		day := tx.Date.String()
		daily[day] = daily[day].Add(tx.AmountBase)
	}
	for _, tx := range incomes {
		s.TotalIncome = s.TotalIncome.Add(tx.AmountBase)
	}

	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		date, err := core.ParseDate(d)
		if err != nil {
			continue
		}
		s.Daily = append(s.Daily, core.DailyPoint{Date: date, Amount: daily[d]})
	}
	return s, nil
}

// SpentInCategory totals expenses of one category, used by the budget check.
func (l *Ledger) SpentInCategory(ctx context.Context, key core.MonthKey, category string) (core.Money, error) {
	part, err := l.resolver.Resolve(ctx, key)
	if err != nil {
		return core.Money{}, err
	}
	expenses, err := part.Transactions(ctx, core.KindExpense)
	if err != nil {
		return core.Money{}, fmt.Errorf("load expenses: %w", err)
	}
	var total core.Money
	for _, tx := range expenses {
		if strings.EqualFold(tx.Category, category) {
			total = total.Add(tx.AmountBase)
		}
	}
	return total, nil
}
