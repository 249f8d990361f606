package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
	"finanzas/internal/sheets/memory"
)

// autoResolver provisions partitions on demand so tests never hit
// ErrPartitionNotFound unless they want to.
type autoResolver struct {
	store *memory.Store
}

func (r *autoResolver) Resolve(ctx context.Context, key core.MonthKey) (sheets.Partition, error) {
	part, err := r.store.Partition(ctx, key)
	if errors.Is(err, core.ErrPartitionNotFound) {
		r.store.CreatePartition(key)
		part, err = r.store.Partition(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	if err := part.EnsureStructure(ctx); err != nil {
		return nil, err
	}
	return part, nil
}

type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]core.UserProfile
}

func newMemProfiles() *memProfiles {
	return &memProfiles{profiles: make(map[string]core.UserProfile)}
}

func (m *memProfiles) Profile(_ context.Context, identity string) (core.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[identity], nil
}

func (m *memProfiles) SaveProfile(_ context.Context, p core.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Identity] = p
	return nil
}

// recordingNotifier captures every published event for assertions.
type recordingNotifier struct {
	mu           sync.Mutex
	transactions []core.Transaction
	alerts       []core.BudgetStatus
	milestones   []int
	achievements []core.Achievement
}

func (n *recordingNotifier) TransactionRecorded(_ context.Context, tx core.Transaction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transactions = append(n.transactions, tx)
}

func (n *recordingNotifier) BudgetAlert(_ context.Context, _ core.MonthKey, st core.BudgetStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, st)
}

func (n *recordingNotifier) SavingsMilestone(_ context.Context, _ core.MonthKey, _ string, u core.SavingsUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.milestones = append(n.milestones, u.Milestone)
}

func (n *recordingNotifier) AchievementUnlocked(_ context.Context, _ string, a core.Achievement) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.achievements = append(n.achievements, a)
}

type env struct {
	resolver *autoResolver
	ledger   *ledger.Ledger
	clock    *core.FixedClock
	locks    *PartitionLocks
}

func newEnv(t *testing.T) *env {
	t.Helper()
	resolver := &autoResolver{store: memory.New()}
	clock := &core.FixedClock{T: time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)}
	l := ledger.New(resolver, clock, log.NewComponent(log.ComponentLedger))
	return &env{resolver: resolver, ledger: l, clock: clock, locks: NewPartitionLocks()}
}

// slowResolver stretches the window between reading a goal and writing it
// back, so unserialized read-modify-write sequences would lose updates.
type slowResolver struct {
	inner ledger.Resolver
	delay time.Duration
}

func (r *slowResolver) Resolve(ctx context.Context, key core.MonthKey) (sheets.Partition, error) {
	part, err := r.inner.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return &slowPartition{Partition: part, delay: r.delay}, nil
}

type slowPartition struct {
	sheets.Partition
	delay time.Duration
}

func (p *slowPartition) Savings(ctx context.Context) ([]core.SavingsGoal, error) {
	time.Sleep(p.delay)
	return p.Partition.Savings(ctx)
}

func (e *env) record(t *testing.T, c core.TransactionCandidate) core.Transaction {
	t.Helper()
	tx, err := e.ledger.Append(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func usdExpense(day int, cents int64, category, concept string) core.TransactionCandidate {
	return core.TransactionCandidate{
		Kind:     core.KindExpense,
		Date:     core.NewDate(2025, 3, day),
		Amount:   core.Money{Cents: cents},
		Currency: "USD",
		Category: category,
		Concept:  concept,
		Reporter: "ana",
	}
}
