// Package sheets defines the ports to the authoritative tabular ledger store.
//
// A Store resolves month partitions; a Partition exposes typed access to the
// tables every backing container must satisfy: transaction logs, configuration,
// categories, budgets, savings, debts and recurring obligations. The google
// subpackage talks to real Google Sheets, the memory subpackage backs tests
// and local mode.
package sheets

import (
	"context"

	"finanzas/internal/core"
)

type (
	// Store locates a partition's backing container. Containers are
	// provisioned externally; a missing month returns
	// core.ErrPartitionNotFound, never a silently created container.
	Store interface {
		Partition(ctx context.Context, key core.MonthKey) (Partition, error)
	}

	// Partition is one month's set of tables. List methods return rows in
	// stable storage order; index-taking updates address rows by that order.
	Partition interface {
		Key() core.MonthKey

		// EnsureStructure idempotently creates any missing tables and
		// seeds factory defaults on first initialization.
		EnsureStructure(ctx context.Context) error

		Config(ctx context.Context) (core.PartitionConfig, error)
		SetRate(ctx context.Context, rate float64, source string, bcv, parallel float64) error
		SetConfirmationRequired(ctx context.Context, required bool) error

		Categories(ctx context.Context) ([]string, error)
		SetCategories(ctx context.Context, categories []string) error

		Transactions(ctx context.Context, kind core.TransactionKind) ([]core.Transaction, error)
		AppendTransaction(ctx context.Context, tx core.Transaction) error

		Budgets(ctx context.Context) ([]core.Budget, error)
		SetBudget(ctx context.Context, b core.Budget) error

		Savings(ctx context.Context) ([]core.SavingsGoal, error)
		UpsertGoal(ctx context.Context, g core.SavingsGoal) error

		Debts(ctx context.Context) ([]core.Debt, error)
		AppendDebt(ctx context.Context, d core.Debt) error
		UpdateDebt(ctx context.Context, index int, d core.Debt) error

		Recurring(ctx context.Context) ([]core.RecurringObligation, error)
		AppendRecurring(ctx context.Context, o core.RecurringObligation) error
		UpdateRecurring(ctx context.Context, index int, o core.RecurringObligation) error
	}
)
