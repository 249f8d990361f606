package services

import (
	"context"
	"fmt"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
)

var defaultMilestones = []int{25, 50, 75, 100}

// SavingsMirror keeps a best-effort movement history outside the sheet.
type SavingsMirror interface {
	MirrorSavingsMovement(ctx context.Context, key core.MonthKey, goal string, delta core.Money, newTotal core.Money, actor string) error
}

// SavingsTracker manages named savings goals and detects milestone crossings.
type SavingsTracker struct {
	resolver ledger.Resolver
	locks    *PartitionLocks
	clock    core.Clock
	mirror   SavingsMirror
	notifier Notifier
	logger   *log.Logger
}

func NewSavingsTracker(resolver ledger.Resolver, locks *PartitionLocks, clock core.Clock, mirror SavingsMirror, notifier Notifier, logger *log.Logger) *SavingsTracker {
	if locks == nil {
		locks = NewPartitionLocks()
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &SavingsTracker{resolver: resolver, locks: locks, clock: clock, mirror: mirror, notifier: notifier, logger: logger}
}

// SetGoal creates or replaces a goal's target. Saved progress survives a
// target change.
func (t *SavingsTracker) SetGoal(ctx context.Context, key core.MonthKey, name string, target core.Money, actor string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty goal name")
	}
	if target.Cents <= 0 {
		return fmt.Errorf("%w: goal target must be positive", core.ErrInvalidAmount)
	}
	lock := t.locks.Get(key)
	lock.Lock()
	defer lock.Unlock()
	part, err := t.resolver.Resolve(ctx, key)
	if err != nil {
		return err
	}
	goal, _, err := t.find(ctx, part, name)
	if err != nil {
		return err
	}
	goal.Name = name
	goal.Target = target
	goal.LastUpdated = t.clock.Now()
	goal.LastActor = actor
	if len(goal.Milestones) == 0 {
		goal.Milestones = append([]int(nil), defaultMilestones...)
	}
	return part.UpsertGoal(ctx, goal)
}

// SetMilestones replaces a goal's milestone thresholds.
func (t *SavingsTracker) SetMilestones(ctx context.Context, key core.MonthKey, name string, milestones []int, actor string) error {
	lock := t.locks.Get(key)
	lock.Lock()
	defer lock.Unlock()
	part, err := t.resolver.Resolve(ctx, key)
	if err != nil {
		return err
	}
	goal, found, err := t.find(ctx, part, name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", core.ErrGoalNotFound, name)
	}
	for _, m := range milestones {
		if m <= 0 || m > 100 {
			return fmt.Errorf("milestone %d out of range (1-100)", m)
		}
	}
	goal.Milestones = milestones
	goal.LastUpdated = t.clock.Now()
	goal.LastActor = actor
	return part.UpsertGoal(ctx, goal)
}

// Deposit applies a signed delta to a goal: positive saves, negative
// withdraws. A deposit past a milestone threshold reports the highest one
// crossed; progress may exceed 100% and withdrawals may go below zero.
// Depositing into an unknown goal creates it with a zero target.
func (t *SavingsTracker) Deposit(ctx context.Context, key core.MonthKey, name string, delta core.Money, actor string) (core.SavingsUpdate, error) {
	if strings.TrimSpace(name) == "" {
		return core.SavingsUpdate{}, fmt.Errorf("empty goal name")
	}
	lock := t.locks.Get(key)
	lock.Lock()
	defer lock.Unlock()
	part, err := t.resolver.Resolve(ctx, key)
	if err != nil {
		return core.SavingsUpdate{}, err
	}
	goal, found, err := t.find(ctx, part, name)
	if err != nil {
		return core.SavingsUpdate{}, err
	}
	if !found {
		goal = core.SavingsGoal{Name: name, Milestones: append([]int(nil), defaultMilestones...)}
	}

	// A withdrawal may take the balance below zero; the goal keeps running.
	oldPct := goal.Pct()
	newTotal := goal.Saved.Add(delta)
	goal.Saved = newTotal
	goal.LastUpdated = t.clock.Now()
	goal.LastActor = actor
	if err := part.UpsertGoal(ctx, goal); err != nil {
		return core.SavingsUpdate{}, fmt.Errorf("save goal: %w", err)
	}

	if t.mirror != nil {
		if err := t.mirror.MirrorSavingsMovement(ctx, key, goal.Name, delta, newTotal, actor); err != nil {
			t.logger.Warn("savings movement mirror failed",
				log.FieldGoal, goal.Name,
				log.FieldError, err.Error(),
			)
		}
	}

	update := core.SavingsUpdate{
		NewTotal:  newTotal,
		NewPct:    goal.Pct(),
		Milestone: crossedMilestone(goal.Milestones, oldPct, goal.Pct()),
	}
	if update.Milestone > 0 {
		t.logger.Info("savings milestone reached",
			log.FieldPartition, key.String(),
			log.FieldGoal, goal.Name,
			"milestone", update.Milestone,
		)
		if t.notifier != nil {
			t.notifier.SavingsMilestone(ctx, key, goal.Name, update)
		}
	}
	return update, nil
}

// List returns every goal of the month.
func (t *SavingsTracker) List(ctx context.Context, key core.MonthKey) ([]core.SavingsGoal, error) {
	part, err := t.resolver.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return part.Savings(ctx)
}

func (t *SavingsTracker) find(ctx context.Context, part sheets.Partition, name string) (core.SavingsGoal, bool, error) {
	goals, err := part.Savings(ctx)
	if err != nil {
		return core.SavingsGoal{}, false, fmt.Errorf("load goals: %w", err)
	}
	for _, g := range goals {
		if strings.EqualFold(g.Name, name) {
			return g, true, nil
		}
	}
	return core.SavingsGoal{}, false, nil
}

// crossedMilestone returns the highest threshold m with oldPct < m <= newPct,
// or 0 when none was crossed.
func crossedMilestone(milestones []int, oldPct, newPct float64) int {
	best := 0
	for _, m := range milestones {
		if oldPct < float64(m) && float64(m) <= newPct && m > best {
			best = m
		}
	}
	return best
}
