package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

type recordingMirror struct {
	mu  sync.Mutex
	txs []core.Transaction
}

func (m *recordingMirror) MirrorTransaction(_ context.Context, tx core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, tx)
	return nil
}

type failingMirror struct{}

func (failingMirror) MirrorTransaction(context.Context, core.Transaction) error {
	return errors.New("mirror down")
}

func newService(e *env, mirror TransactionMirror, notifier Notifier) *TransactionService {
	budgets := newBudgets(e)
	gamify, _ := newGamify(e.clock)
	return NewTransactionService(e.ledger, e.resolver, e.locks, budgets, gamify, mirror, notifier, log.NewComponent(log.ComponentApp))
}

func TestRecordFansOutSideEffects(t *testing.T) {
	e := newEnv(t)
	mirror := &recordingMirror{}
	notifier := &recordingNotifier{}
	svc := newService(e, mirror, notifier)
	ctx := context.Background()
	key := core.MonthKey{Year: 2025, Month: 3}

	if err := newBudgets(e).SetLimit(ctx, key, "Comida", core.Money{Cents: 20000}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Record(ctx, usdExpense(15, 18500, "Comida", "mercado grande"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Transaction.ID == "" {
		t.Error("transaction not stamped")
	}
	if len(mirror.txs) != 1 {
		t.Errorf("mirrored %d transactions, want 1", len(mirror.txs))
	}
	if res.Budget == nil || res.Budget.Alert != core.AlertYellow {
		t.Errorf("budget status = %+v, want yellow at 92.5%%", res.Budget)
	}
	if res.Streak.Streak != 1 {
		t.Errorf("streak = %+v, want 1", res.Streak)
	}
	if len(notifier.transactions) != 1 {
		t.Errorf("published %d transaction events, want 1", len(notifier.transactions))
	}
	if len(notifier.alerts) != 1 {
		t.Errorf("published %d budget alerts, want 1", len(notifier.alerts))
	}
	if len(notifier.achievements) == 0 {
		t.Error("first transaction published no achievement event")
	}
}

func TestRecordGreenBudgetPublishesNoAlert(t *testing.T) {
	e := newEnv(t)
	notifier := &recordingNotifier{}
	svc := newService(e, nil, notifier)
	ctx := context.Background()
	key := core.MonthKey{Year: 2025, Month: 3}

	if err := newBudgets(e).SetLimit(ctx, key, "Comida", core.Money{Cents: 20000}); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Record(ctx, usdExpense(15, 1000, "Comida", "cafe"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Budget == nil || res.Budget.Alert != core.AlertGreen {
		t.Errorf("budget = %+v, want green", res.Budget)
	}
	if len(notifier.alerts) != 0 {
		t.Errorf("green status published an alert: %v", notifier.alerts)
	}
}

func TestRecordSurvivesMirrorFailure(t *testing.T) {
	e := newEnv(t)
	svc := newService(e, failingMirror{}, nil)

	res, err := svc.Record(context.Background(), usdExpense(15, 1000, "Comida", "cafe"))
	if err != nil {
		t.Fatalf("mirror failure broke the write: %v", err)
	}
	if res.Transaction.ID == "" {
		t.Error("transaction not recorded")
	}
}

func TestRecordRejectsDuplicateBeforeSideEffects(t *testing.T) {
	e := newEnv(t)
	mirror := &recordingMirror{}
	svc := newService(e, mirror, nil)
	ctx := context.Background()

	if _, err := svc.Record(ctx, usdExpense(15, 1000, "Comida", "cafe")); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Record(ctx, usdExpense(15, 1000, "Comida", "cafe"))
	if !errors.Is(err, core.ErrDuplicateTransaction) {
		t.Fatalf("got %v, want ErrDuplicateTransaction", err)
	}
	if len(mirror.txs) != 1 {
		t.Errorf("duplicate reached the mirror: %d copies", len(mirror.txs))
	}
}

func TestRecordConcurrentSameDay(t *testing.T) {
	e := newEnv(t)
	svc := newService(e, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errCh := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Record(ctx, usdExpense(15, 1000, "Comida", "cafe"))
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	recorded := 0
	for err := range errCh {
		if err == nil {
			recorded++
		} else if !errors.Is(err, core.ErrDuplicateTransaction) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if recorded != 1 {
		t.Errorf("%d identical submissions recorded, want exactly 1", recorded)
	}
}

func TestConfirmationRequired(t *testing.T) {
	e := newEnv(t)
	svc := newService(e, nil, nil)
	ctx := context.Background()
	key := core.MonthKey{Year: 2025, Month: 3}

	required, err := svc.ConfirmationRequired(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !required {
		t.Error("fresh partition should require confirmation")
	}

	part, err := e.resolver.Resolve(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if err := part.SetConfirmationRequired(ctx, false); err != nil {
		t.Fatal(err)
	}
	required, err = svc.ConfirmationRequired(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if required {
		t.Error("confirmation still required after disabling")
	}
}

func TestSummary(t *testing.T) {
	e := newEnv(t)
	svc := newService(e, nil, nil)
	ctx := context.Background()

	if _, err := svc.Record(ctx, usdExpense(10, 2000, "Comida", "mercado")); err != nil {
		t.Fatal(err)
	}
	income := core.TransactionCandidate{
		Kind: core.KindIncome, Date: core.NewDate(2025, 3, 1),
		Amount: core.Money{Cents: 50000}, Currency: "USD",
		Concept: "salario", Reporter: "ana",
	}
	if _, err := svc.Record(ctx, income); err != nil {
		t.Fatal(err)
	}

	s, err := svc.Summary(ctx, core.MonthKey{Year: 2025, Month: 3})
	if err != nil {
		t.Fatal(err)
	}
	if s.Balance().Cents != 48000 {
		t.Errorf("balance = %d, want 48000", s.Balance().Cents)
	}
}
