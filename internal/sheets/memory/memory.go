// Package memory is the in-memory partition store used by tests and local
// mode. Partitions are provisioned explicitly with CreatePartition, mirroring
// the manual provisioning the real backing store requires.
package memory

import (
	"context"
	"strings"
	"sync"

	"finanzas/internal/core"
	"finanzas/internal/sheets"
)

type Store struct {
	mu    sync.RWMutex
	parts map[core.MonthKey]*Partition
}

var _ sheets.Store = (*Store)(nil)

func New() *Store {
	return &Store{parts: make(map[core.MonthKey]*Partition)}
}

// CreatePartition provisions the backing container for a month. Calling it
// twice returns the existing partition.
func (s *Store) CreatePartition(key core.MonthKey) *Partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[key]; ok {
		return p
	}
	p := &Partition{key: key}
	s.parts[key] = p
	return p
}

func (s *Store) Partition(_ context.Context, key core.MonthKey) (sheets.Partition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parts[key]
	if !ok {
		return nil, core.ErrPartitionNotFound
	}
	return p, nil
}

type Partition struct {
	mu          sync.Mutex
	key         core.MonthKey
	initialized bool

	config     core.PartitionConfig
	categories []string
	expenses   []core.Transaction
	incomes    []core.Transaction
	budgets    []core.Budget
	savings    []core.SavingsGoal
	debts      []core.Debt
	recurring  []core.RecurringObligation
}

var _ sheets.Partition = (*Partition)(nil)

func (p *Partition) Key() core.MonthKey { return p.key }

func (p *Partition) EnsureStructure(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}
	p.config = core.DefaultPartitionConfig()
	if len(p.categories) == 0 {
		p.categories = []string{"Supermercado", "Comida", "Transporte", "Hogar", "Otros"}
	}
	p.initialized = true
	return nil
}

func (p *Partition) Config(_ context.Context) (core.PartitionConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config, nil
}

func (p *Partition) SetRate(_ context.Context, rate float64, source string, bcv, parallel float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config.Rate = rate
	p.config.RateSource = source
	if bcv > 0 {
		p.config.RateBCV = bcv
	}
	if parallel > 0 {
		p.config.RateParallel = parallel
	}
	return nil
}

func (p *Partition) SetConfirmationRequired(_ context.Context, required bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config.ConfirmationRequired = required
	return nil
}

func (p *Partition) Categories(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.categories...), nil
}

func (p *Partition) SetCategories(_ context.Context, categories []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.categories = append([]string(nil), categories...)
	return nil
}

func (p *Partition) Transactions(_ context.Context, kind core.TransactionKind) ([]core.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if kind == core.KindIncome {
		return append([]core.Transaction(nil), p.incomes...), nil
	}
	return append([]core.Transaction(nil), p.expenses...), nil
}

func (p *Partition) AppendTransaction(_ context.Context, tx core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tx.Kind == core.KindIncome {
		p.incomes = append(p.incomes, tx)
	} else {
		p.expenses = append(p.expenses, tx)
	}
	return nil
}

func (p *Partition) Budgets(_ context.Context) ([]core.Budget, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.Budget(nil), p.budgets...), nil
}

func (p *Partition) SetBudget(_ context.Context, b core.Budget) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.budgets {
		if strings.EqualFold(p.budgets[i].Category, b.Category) {
			p.budgets[i].Limit = b.Limit
			return nil
		}
	}
	p.budgets = append(p.budgets, b)
	return nil
}

func (p *Partition) Savings(_ context.Context) ([]core.SavingsGoal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.SavingsGoal, len(p.savings))
	for i, g := range p.savings {
		g.Milestones = append([]int(nil), g.Milestones...)
		out[i] = g
	}
	return out, nil
}

func (p *Partition) UpsertGoal(_ context.Context, g core.SavingsGoal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.savings {
		if strings.EqualFold(p.savings[i].Name, g.Name) {
			p.savings[i] = g
			return nil
		}
	}
	p.savings = append(p.savings, g)
	return nil
}

func (p *Partition) Debts(_ context.Context) ([]core.Debt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.Debt(nil), p.debts...), nil
}

func (p *Partition) AppendDebt(_ context.Context, d core.Debt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.debts = append(p.debts, d)
	return nil
}

func (p *Partition) UpdateDebt(_ context.Context, index int, d core.Debt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.debts) {
		return core.ErrDebtNotFound
	}
	p.debts[index] = d
	return nil
}

func (p *Partition) Recurring(_ context.Context) ([]core.RecurringObligation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.RecurringObligation(nil), p.recurring...), nil
}

func (p *Partition) AppendRecurring(_ context.Context, o core.RecurringObligation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recurring = append(p.recurring, o)
	return nil
}

func (p *Partition) UpdateRecurring(_ context.Context, index int, o core.RecurringObligation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.recurring) {
		return core.ErrObligationNotFound
	}
	p.recurring[index] = o
	return nil
}
