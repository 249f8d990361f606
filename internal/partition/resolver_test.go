package partition

import (
	"context"
	"errors"
	"testing"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/sheets/memory"
)

func newResolver(t *testing.T) (*Resolver, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewResolver(store, log.NewComponent(log.ComponentPartition)), store
}

func TestResolveMissingPartition(t *testing.T) {
	r, _ := newResolver(t)
	_, err := r.Resolve(context.Background(), core.MonthKey{Year: 2025, Month: 3})
	if !errors.Is(err, core.ErrPartitionNotFound) {
		t.Fatalf("got %v, want ErrPartitionNotFound", err)
	}
}

func TestResolvePreparesStructure(t *testing.T) {
	r, store := newResolver(t)
	key := core.MonthKey{Year: 2025, Month: 3}
	store.CreatePartition(key)

	part, err := r.Resolve(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	cats, err := part.Categories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) == 0 {
		t.Error("resolved partition has no seeded categories")
	}
	cfg, err := part.Config(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.AtDefaults() {
		t.Errorf("fresh partition config = %+v, want factory defaults", cfg)
	}
}

func TestResolveCarriesForwardFromPreviousMonth(t *testing.T) {
	r, store := newResolver(t)
	ctx := context.Background()
	feb := core.MonthKey{Year: 2025, Month: 2}
	mar := core.MonthKey{Year: 2025, Month: 3}
	store.CreatePartition(feb)
	store.CreatePartition(mar)

	prev, err := r.Resolve(ctx, feb)
	if err != nil {
		t.Fatal(err)
	}
	if err := prev.SetRate(ctx, 58.5, "BCV", 58.5, 62.1); err != nil {
		t.Fatal(err)
	}
	if err := prev.SetCategories(ctx, []string{"Comida", "Mascotas"}); err != nil {
		t.Fatal(err)
	}
	if err := prev.SetBudget(ctx, core.Budget{Category: "Comida", Limit: core.Money{Cents: 20000}}); err != nil {
		t.Fatal(err)
	}

	part, err := r.Resolve(ctx, mar)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := part.Config(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rate != 58.5 || cfg.RateSource != "BCV" {
		t.Errorf("config = %+v, want rate 58.5 from BCV", cfg)
	}
	cats, err := part.Categories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 || cats[1] != "Mascotas" {
		t.Errorf("categories = %v, want full replacement from February", cats)
	}
	budgets, err := part.Budgets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(budgets) != 1 || budgets[0].Limit.Cents != 20000 {
		t.Errorf("budgets = %v, want the February limit", budgets)
	}
}

func TestResolveSkipsCarryForwardWhenConfigured(t *testing.T) {
	r, store := newResolver(t)
	ctx := context.Background()
	feb := core.MonthKey{Year: 2025, Month: 2}
	mar := core.MonthKey{Year: 2025, Month: 3}
	store.CreatePartition(feb)
	store.CreatePartition(mar)

	prev, err := r.Resolve(ctx, feb)
	if err != nil {
		t.Fatal(err)
	}
	if err := prev.SetRate(ctx, 58.5, "BCV", 0, 0); err != nil {
		t.Fatal(err)
	}

	// March was already configured by hand, so nothing is inherited.
	part, err := store.Partition(ctx, mar)
	if err != nil {
		t.Fatal(err)
	}
	if err := part.EnsureStructure(ctx); err != nil {
		t.Fatal(err)
	}
	if err := part.SetRate(ctx, 70, "PARALELO", 0, 0); err != nil {
		t.Fatal(err)
	}

	resolved, err := r.Resolve(ctx, mar)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := resolved.Config(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rate != 70 || cfg.RateSource != "PARALELO" {
		t.Errorf("config = %+v, manual settings were overwritten", cfg)
	}
}

func TestResolveWithoutPreviousMonth(t *testing.T) {
	r, store := newResolver(t)
	key := core.MonthKey{Year: 2025, Month: 1}
	store.CreatePartition(key)

	if _, err := r.Resolve(context.Background(), key); err != nil {
		t.Fatalf("first month ever should resolve cleanly, got %v", err)
	}
}
