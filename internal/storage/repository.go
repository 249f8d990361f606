// Package storage keeps a local SQLite copy of what lives in the
// spreadsheets: a best-effort transaction mirror for fast reads plus the
// savings movement history, and the authoritative store for gamification
// profiles.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"finanzas/internal/core"
)

type Repository struct {
	db *sql.DB
}

// Open connects, applies pragmas and runs pending migrations.
func Open(dbPath string) (*Repository, error) {
	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error { return r.db.Close() }

// MirrorTransaction upserts one recorded transaction. Re-mirroring the same
// ID overwrites, so the mirror converges after retries.
func (r *Repository) MirrorTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO transactions (
            id, partition, kind, date, time,
            amount_original_cents, currency, amount_base_cents, rate_applied,
            category, concept, reference, reporter, receipt_link, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            category = excluded.category,
            concept = excluded.concept,
            receipt_link = excluded.receipt_link`,
		tx.ID, tx.Date.Key().String(), string(tx.Kind), tx.Date.String(), tx.Time,
		tx.AmountOriginal.Cents, tx.Currency, tx.AmountBase.Cents, tx.RateApplied,
		tx.Category, tx.Concept, tx.Reference, tx.Reporter, tx.ReceiptLink,
		tx.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("mirror transaction %s: %w", tx.ID, err)
	}
	return nil
}

// PartitionTransactions reads the mirrored transactions of one month.
func (r *Repository) PartitionTransactions(ctx context.Context, key core.MonthKey) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, kind, date, time,
               amount_original_cents, currency, amount_base_cents, rate_applied,
               category, concept, reference, reporter, receipt_link, recorded_at
        FROM transactions WHERE partition = ? ORDER BY date, recorded_at`,
		key.String())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx                   core.Transaction
			kind, date, recorded string
		)
		err := rows.Scan(
			&tx.ID, &kind, &date, &tx.Time,
			&tx.AmountOriginal.Cents, &tx.Currency, &tx.AmountBase.Cents, &tx.RateApplied,
			&tx.Category, &tx.Concept, &tx.Reference, &tx.Reporter, &tx.ReceiptLink, &recorded,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = core.TransactionKind(kind)
		if tx.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("mirrored date %q: %w", date, err)
		}
		tx.RecordedAt, _ = time.Parse(time.RFC3339, recorded)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// MirrorSavingsMovement appends to the movement history.
func (r *Repository) MirrorSavingsMovement(ctx context.Context, key core.MonthKey, goal string, delta, newTotal core.Money, actor string) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO savings_movements (partition, goal, delta_cents, new_total_cents, actor, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		key.String(), goal, delta.Cents, newTotal.Cents, actor,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("mirror savings movement: %w", err)
	}
	return nil
}

// SavingsMovement is one history row.
type SavingsMovement struct {
	Goal     string
	Delta    core.Money
	NewTotal core.Money
	Actor    string
	At       time.Time
}

func (r *Repository) SavingsMovements(ctx context.Context, key core.MonthKey, goal string) ([]SavingsMovement, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT goal, delta_cents, new_total_cents, actor, created_at
        FROM savings_movements WHERE partition = ? AND goal = ? COLLATE NOCASE
        ORDER BY id`,
		key.String(), goal)
	if err != nil {
		return nil, fmt.Errorf("query savings movements: %w", err)
	}
	defer rows.Close()

	var out []SavingsMovement
	for rows.Next() {
		var (
			m  SavingsMovement
			at string
		)
		if err := rows.Scan(&m.Goal, &m.Delta.Cents, &m.NewTotal.Cents, &m.Actor, &at); err != nil {
			return nil, fmt.Errorf("scan savings movement: %w", err)
		}
		m.At, _ = time.Parse(time.RFC3339, at)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Profile returns the stored profile, or a zero one for an unknown identity.
func (r *Repository) Profile(ctx context.Context, identity string) (core.UserProfile, error) {
	var (
		p            core.UserProfile
		lastActivity string
		achievements string
		silentMode   int
	)
	err := r.db.QueryRowContext(ctx, `
        SELECT identity, current_streak, best_streak, last_activity, score,
               total_transactions, experience, achievements, daily_limit_cents, silent_mode
        FROM profiles WHERE identity = ?`,
		identity).Scan(
		&p.Identity, &p.CurrentStreak, &p.BestStreak, &lastActivity, &p.Score,
		&p.TotalTransactions, &p.Experience, &achievements, &p.DailyLimit.Cents, &silentMode,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{Identity: identity}, nil
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("query profile: %w", err)
	}
	if lastActivity != "" {
		p.LastActivity, _ = core.ParseDate(lastActivity)
	}
	if achievements != "" {
		p.Achievements = strings.Split(achievements, ",")
	}
	p.SilentMode = silentMode != 0
	return p, nil
}

func (r *Repository) SaveProfile(ctx context.Context, p core.UserProfile) error {
	silent := 0
	if p.SilentMode {
		silent = 1
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO profiles (
            identity, current_streak, best_streak, last_activity, score,
            total_transactions, experience, achievements, daily_limit_cents, silent_mode
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(identity) DO UPDATE SET
            current_streak = excluded.current_streak,
            best_streak = excluded.best_streak,
            last_activity = excluded.last_activity,
            score = excluded.score,
            total_transactions = excluded.total_transactions,
            experience = excluded.experience,
            achievements = excluded.achievements,
            daily_limit_cents = excluded.daily_limit_cents,
            silent_mode = excluded.silent_mode`,
		p.Identity, p.CurrentStreak, p.BestStreak, p.LastActivity.String(), p.Score,
		p.TotalTransactions, p.Experience, strings.Join(p.Achievements, ","), p.DailyLimit.Cents, silent,
	)
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.Identity, err)
	}
	return nil
}
