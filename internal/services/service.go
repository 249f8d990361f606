// Package services wires the bookkeeping trackers together on top of the
// ledger. TransactionService is the single entry point for recording money
// movements; the other trackers manage budgets, savings, debts, recurring
// obligations and engagement.
package services

import (
	"context"
	"fmt"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
)

// Notifier publishes domain events to interested consumers. Implementations
// must tolerate being called concurrently.
type Notifier interface {
	TransactionRecorded(ctx context.Context, tx core.Transaction)
	BudgetAlert(ctx context.Context, key core.MonthKey, status core.BudgetStatus)
	SavingsMilestone(ctx context.Context, key core.MonthKey, goal string, update core.SavingsUpdate)
	AchievementUnlocked(ctx context.Context, identity string, a core.Achievement)
}

// TransactionMirror keeps a best-effort local copy of recorded transactions.
type TransactionMirror interface {
	MirrorTransaction(ctx context.Context, tx core.Transaction) error
}

// RecordResult is everything one recorded transaction triggered.
type RecordResult struct {
	Transaction core.Transaction
	Budget      *core.BudgetStatus
	Streak      core.StreakUpdate
	Unlocked    []core.Achievement
}

// TransactionService serializes writes per partition and fans out the
// side effects of a recorded transaction.
type TransactionService struct {
	ledger   *ledger.Ledger
	resolver ledger.Resolver
	locks    *PartitionLocks
	budgets  *BudgetTracker
	gamify   *Gamification
	mirror   TransactionMirror
	notifier Notifier
	logger   *log.Logger
}

func NewTransactionService(
	l *ledger.Ledger,
	resolver ledger.Resolver,
	locks *PartitionLocks,
	budgets *BudgetTracker,
	gamify *Gamification,
	mirror TransactionMirror,
	notifier Notifier,
	logger *log.Logger,
) *TransactionService {
	if locks == nil {
		locks = NewPartitionLocks()
	}
	return &TransactionService{
		ledger:   l,
		resolver: resolver,
		locks:    locks,
		budgets:  budgets,
		gamify:   gamify,
		mirror:   mirror,
		notifier: notifier,
		logger:   logger,
	}
}

// Record validates, normalizes and stores one transaction, then runs its
// side effects: mirror copy, engagement update, budget check, events. The
// write itself is fail-closed; side-effect failures only log.
func (s *TransactionService) Record(ctx context.Context, c core.TransactionCandidate) (RecordResult, error) {
	if err := c.Validate(); err != nil {
		return RecordResult{}, err
	}
	key := c.Date.Key()

	lock := s.locks.Get(key)
	lock.Lock()
	tx, err := s.ledger.Append(ctx, c)
	lock.Unlock()
	if err != nil {
		return RecordResult{}, err
	}

	res := RecordResult{Transaction: tx}

	if s.mirror != nil {
		if err := s.mirror.MirrorTransaction(ctx, tx); err != nil {
			s.logger.Warn("transaction mirror failed",
				log.FieldTransactionID, tx.ID,
				log.FieldError, err.Error(),
			)
		}
	}

	if s.gamify != nil {
		streak, unlocked, err := s.gamify.RecordActivity(ctx, tx.Reporter)
		if err != nil {
			s.logger.Warn("engagement update failed",
				log.FieldReporter, tx.Reporter,
				log.FieldError, err.Error(),
			)
		} else {
			res.Streak = streak
			res.Unlocked = unlocked
		}
	}

	if tx.Kind == core.KindExpense && tx.Category != "" && s.budgets != nil {
		status, err := s.budgets.Check(ctx, key, tx.Category)
		if err != nil {
			s.logger.Warn("budget check failed",
				log.FieldCategory, tx.Category,
				log.FieldError, err.Error(),
			)
		} else {
			res.Budget = status
		}
	}

	if s.notifier != nil {
		s.notifier.TransactionRecorded(ctx, tx)
		if res.Budget != nil && res.Budget.Alert != core.AlertGreen {
			s.notifier.BudgetAlert(ctx, key, *res.Budget)
		}
		for _, a := range res.Unlocked {
			s.notifier.AchievementUnlocked(ctx, tx.Reporter, a)
		}
	}
	return res, nil
}

// ConfirmationRequired reports whether the partition asks for an explicit
// confirmation step before recording.
func (s *TransactionService) ConfirmationRequired(ctx context.Context, key core.MonthKey) (bool, error) {
	part, err := s.resolver.Resolve(ctx, key)
	if err != nil {
		return false, err
	}
	cfg, err := part.Config(ctx)
	if err != nil {
		return false, fmt.Errorf("read partition config: %w", err)
	}
	return cfg.ConfirmationRequired, nil
}

// SetConfirmationRequired toggles the confirmation step for a partition.
func (s *TransactionService) SetConfirmationRequired(ctx context.Context, key core.MonthKey, required bool) error {
	part, err := s.resolver.Resolve(ctx, key)
	if err != nil {
		return err
	}
	return part.SetConfirmationRequired(ctx, required)
}

// Summary exposes the monthly aggregate.
func (s *TransactionService) Summary(ctx context.Context, key core.MonthKey) (core.Summary, error) {
	return s.ledger.Aggregate(ctx, key)
}
