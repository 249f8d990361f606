package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/partition"
	"finanzas/internal/services"
	"finanzas/internal/sheets/memory"
)

type recordingNotifier struct {
	mu  sync.Mutex
	due []core.RecurringObligation
}

func (n *recordingNotifier) RecurringDue(_ context.Context, _ core.MonthKey, o core.RecurringObligation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.due = append(n.due, o)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.due)
}

func newScheduler(t *testing.T, clock core.Clock) *services.RecurringScheduler {
	t.Helper()
	logger := log.NewComponent("test")
	store := memory.New()
	now := clock.Now()
	store.CreatePartition(core.MonthKey{Year: now.Year(), Month: int(now.Month())})
	resolver := partition.NewResolver(store, logger)
	return services.NewRecurringScheduler(resolver, services.NewPartitionLocks(), clock, logger)
}

func TestCheckDuePublishesDueObligations(t *testing.T) {
	clock := core.FixedClock{T: time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)}
	scheduler := newScheduler(t, clock)
	ctx := context.Background()
	key := core.MonthKey{Year: 2025, Month: 3}

	for _, o := range []core.RecurringObligation{
		{Name: "Internet", Amount: core.Money{Cents: 3500}, DayOfMonth: 15},
		{Name: "Alquiler", Amount: core.Money{Cents: 45000}, DayOfMonth: 1},
	} {
		if err := scheduler.Add(ctx, key, o); err != nil {
			t.Fatalf("Add(%s): %v", o.Name, err)
		}
	}

	notifier := &recordingNotifier{}
	w := NewRecurring(scheduler, notifier, clock, time.Hour, log.NewComponent("test"))
	w.CheckDue(ctx)

	if notifier.count() != 1 {
		t.Fatalf("published %d events, want 1", notifier.count())
	}
	if notifier.due[0].Name != "Internet" {
		t.Errorf("due obligation = %q, want Internet", notifier.due[0].Name)
	}
}

func TestCheckDueDoesNotRepeatAfterPayment(t *testing.T) {
	clock := core.FixedClock{T: time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)}
	scheduler := newScheduler(t, clock)
	ctx := context.Background()
	key := core.MonthKey{Year: 2025, Month: 3}

	if err := scheduler.Add(ctx, key, core.RecurringObligation{
		Name: "Luz", Amount: core.Money{Cents: 2000}, DayOfMonth: 15,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	notifier := &recordingNotifier{}
	w := NewRecurring(scheduler, notifier, clock, time.Hour, log.NewComponent("test"))

	w.CheckDue(ctx)
	if notifier.count() != 1 {
		t.Fatalf("first sweep published %d, want 1", notifier.count())
	}

	if err := scheduler.MarkPaid(ctx, key, "Luz"); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	w.CheckDue(ctx)
	if notifier.count() != 1 {
		t.Errorf("second sweep republished, count = %d", notifier.count())
	}
}

func TestCheckDueSurvivesMissingPartition(t *testing.T) {
	clock := core.FixedClock{T: time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)}
	logger := log.NewComponent("test")
	store := memory.New() // no partition provisioned
	resolver := partition.NewResolver(store, logger)
	scheduler := services.NewRecurringScheduler(resolver, services.NewPartitionLocks(), clock, logger)

	notifier := &recordingNotifier{}
	w := NewRecurring(scheduler, notifier, clock, time.Hour, logger)
	w.CheckDue(context.Background())

	if notifier.count() != 0 {
		t.Errorf("published %d events from a missing partition, want 0", notifier.count())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	clock := core.FixedClock{T: time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)}
	scheduler := newScheduler(t, clock)

	notifier := &recordingNotifier{}
	w := NewRecurring(scheduler, notifier, clock, 10*time.Millisecond, log.NewComponent("test"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
