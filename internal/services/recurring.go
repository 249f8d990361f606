package services

import (
	"context"
	"fmt"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
)

// RecurringScheduler manages monthly obligations and their dueness.
type RecurringScheduler struct {
	resolver ledger.Resolver
	locks    *PartitionLocks
	clock    core.Clock
	logger   *log.Logger
}

func NewRecurringScheduler(resolver ledger.Resolver, locks *PartitionLocks, clock core.Clock, logger *log.Logger) *RecurringScheduler {
	if locks == nil {
		locks = NewPartitionLocks()
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &RecurringScheduler{resolver: resolver, locks: locks, clock: clock, logger: logger}
}

func (s *RecurringScheduler) Add(ctx context.Context, key core.MonthKey, o core.RecurringObligation) error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("empty obligation name")
	}
	if o.Amount.Cents <= 0 {
		return fmt.Errorf("%w: obligation amount must be positive", core.ErrInvalidAmount)
	}
	if o.DayOfMonth < 1 || o.DayOfMonth > 31 {
		return core.ErrInvalidDay
	}
	lock := s.locks.Get(key)
	lock.Lock()
	defer lock.Unlock()
	part, err := s.resolver.Resolve(ctx, key)
	if err != nil {
		return err
	}
	o.Active = true
	if err := part.AppendRecurring(ctx, o); err != nil {
		return fmt.Errorf("add obligation: %w", err)
	}
	s.logger.Info("recurring obligation added",
		log.FieldPartition, key.String(),
		log.FieldObligation, o.Name,
		"day", o.DayOfMonth,
	)
	return nil
}

func (s *RecurringScheduler) List(ctx context.Context, key core.MonthKey) ([]core.RecurringObligation, error) {
	part, err := s.resolver.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return part.Recurring(ctx)
}

// DueToday returns active obligations whose day matches today and that were
// not already paid this month. Paying once silences the obligation until the
// same day next month.
func (s *RecurringScheduler) DueToday(ctx context.Context, key core.MonthKey) ([]core.RecurringObligation, error) {
	part, err := s.resolver.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	all, err := part.Recurring(ctx)
	if err != nil {
		return nil, fmt.Errorf("load obligations: %w", err)
	}
	today := core.DateOf(s.clock.Now())
	var due []core.RecurringObligation
	for _, o := range all {
		if !o.Active || o.DayOfMonth != today.Day() {
			continue
		}
		if !o.LastPaid.IsZero() && o.LastPaid.Key() == today.Key() {
			continue
		}
		due = append(due, o)
	}
	return due, nil
}

// MarkPaid stamps today on the named obligation.
func (s *RecurringScheduler) MarkPaid(ctx context.Context, key core.MonthKey, name string) error {
	lock := s.locks.Get(key)
	lock.Lock()
	defer lock.Unlock()
	part, err := s.resolver.Resolve(ctx, key)
	if err != nil {
		return err
	}
	all, err := part.Recurring(ctx)
	if err != nil {
		return fmt.Errorf("load obligations: %w", err)
	}
	for i, o := range all {
		if !strings.EqualFold(o.Name, name) {
			continue
		}
		o.LastPaid = core.DateOf(s.clock.Now())
		if err := part.UpdateRecurring(ctx, i, o); err != nil {
			return fmt.Errorf("mark obligation paid: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", core.ErrObligationNotFound, name)
}

// SetActive toggles an obligation without losing its history.
func (s *RecurringScheduler) SetActive(ctx context.Context, key core.MonthKey, name string, active bool) error {
	lock := s.locks.Get(key)
	lock.Lock()
	defer lock.Unlock()
	part, err := s.resolver.Resolve(ctx, key)
	if err != nil {
		return err
	}
	all, err := part.Recurring(ctx)
	if err != nil {
		return fmt.Errorf("load obligations: %w", err)
	}
	for i, o := range all {
		if !strings.EqualFold(o.Name, name) {
			continue
		}
		o.Active = active
		if err := part.UpdateRecurring(ctx, i, o); err != nil {
			return fmt.Errorf("update obligation: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", core.ErrObligationNotFound, name)
}
