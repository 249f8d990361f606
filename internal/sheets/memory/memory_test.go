package memory

import (
	"context"
	"errors"
	"testing"

	"finanzas/internal/core"
)

func TestPartitionLookup(t *testing.T) {
	store := New()
	key := core.MonthKey{Year: 2026, Month: 1}

	if _, err := store.Partition(context.Background(), key); !errors.Is(err, core.ErrPartitionNotFound) {
		t.Fatalf("unprovisioned month: got %v, want ErrPartitionNotFound", err)
	}

	store.CreatePartition(key)
	p, err := store.Partition(context.Background(), key)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if p.Key() != key {
		t.Errorf("Key() = %v", p.Key())
	}
}

func TestEnsureStructureIdempotent(t *testing.T) {
	ctx := context.Background()
	p := New().CreatePartition(core.MonthKey{Year: 2026, Month: 1})

	if err := p.EnsureStructure(ctx); err != nil {
		t.Fatalf("EnsureStructure: %v", err)
	}
	cfg, _ := p.Config(ctx)
	if !cfg.AtDefaults() {
		t.Errorf("fresh partition config = %+v, want defaults", cfg)
	}

	if err := p.SetRate(ctx, 60, "BCV", 60, 65); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	if err := p.EnsureStructure(ctx); err != nil {
		t.Fatalf("second EnsureStructure: %v", err)
	}
	cfg, _ = p.Config(ctx)
	if cfg.Rate != 60 || cfg.RateSource != "BCV" {
		t.Errorf("EnsureStructure clobbered config: %+v", cfg)
	}
}

func TestTransactionsSplitByKind(t *testing.T) {
	ctx := context.Background()
	p := New().CreatePartition(core.MonthKey{Year: 2026, Month: 1})

	p.AppendTransaction(ctx, core.Transaction{ID: "e1", Kind: core.KindExpense})
	p.AppendTransaction(ctx, core.Transaction{ID: "i1", Kind: core.KindIncome})

	exp, _ := p.Transactions(ctx, core.KindExpense)
	inc, _ := p.Transactions(ctx, core.KindIncome)
	if len(exp) != 1 || exp[0].ID != "e1" {
		t.Errorf("expenses = %+v", exp)
	}
	if len(inc) != 1 || inc[0].ID != "i1" {
		t.Errorf("incomes = %+v", inc)
	}
}

func TestSetBudgetUpserts(t *testing.T) {
	ctx := context.Background()
	p := New().CreatePartition(core.MonthKey{Year: 2026, Month: 1})

	p.SetBudget(ctx, core.Budget{Category: "Comida", Limit: core.Money{Cents: 10000}})
	p.SetBudget(ctx, core.Budget{Category: "comida", Limit: core.Money{Cents: 20000}})

	budgets, _ := p.Budgets(ctx)
	if len(budgets) != 1 {
		t.Fatalf("budgets = %+v, want single upserted entry", budgets)
	}
	if budgets[0].Limit.Cents != 20000 {
		t.Errorf("limit = %d, want 20000", budgets[0].Limit.Cents)
	}
}

func TestUpdateDebtByIndex(t *testing.T) {
	ctx := context.Background()
	p := New().CreatePartition(core.MonthKey{Year: 2026, Month: 1})

	p.AppendDebt(ctx, core.Debt{Person: "Luis", Status: core.DebtPending})
	d, _ := p.Debts(ctx)
	d[0].Status = core.DebtPaid
	if err := p.UpdateDebt(ctx, 0, d[0]); err != nil {
		t.Fatalf("UpdateDebt: %v", err)
	}
	d, _ = p.Debts(ctx)
	if d[0].Status != core.DebtPaid {
		t.Errorf("status = %v", d[0].Status)
	}

	if err := p.UpdateDebt(ctx, 5, core.Debt{}); !errors.Is(err, core.ErrDebtNotFound) {
		t.Errorf("out of range: got %v", err)
	}
}
