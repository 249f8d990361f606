package services

import (
	"context"
	"fmt"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
)

// ProfileStore persists per-person gamification state.
type ProfileStore interface {
	Profile(ctx context.Context, identity string) (core.UserProfile, error)
	SaveProfile(ctx context.Context, p core.UserProfile) error
}

// Catalog of achievements. Codes are stable identifiers, stored on profiles.
var achievementCatalog = []core.Achievement{
	{Code: "first_tx", Title: "Primer registro", Points: 10},
	{Code: "tx_10", Title: "10 registros", Points: 25},
	{Code: "tx_50", Title: "50 registros", Points: 50},
	{Code: "tx_100", Title: "100 registros", Points: 100},
	{Code: "streak_3", Title: "3 días seguidos", Points: 15},
	{Code: "streak_7", Title: "Una semana seguida", Points: 40},
	{Code: "streak_30", Title: "Un mes seguido", Points: 150},
	{Code: "score_80", Title: "Finanzas en forma", Points: 60},
}

// AchievementByCode looks up catalog metadata for a stored code.
func AchievementByCode(code string) (core.Achievement, bool) {
	for _, a := range achievementCatalog {
		if a.Code == code {
			return a, true
		}
	}
	return core.Achievement{}, false
}

// Gamification tracks engagement: activity streaks, a 0-100 health score and
// one-time achievements. The score reads the current month's ledger, savings
// and budgets, so the engine needs the same resolver the trackers use.
type Gamification struct {
	store    ProfileStore
	resolver ledger.Resolver
	ledger   *ledger.Ledger
	clock    core.Clock
	logger   *log.Logger
}

func NewGamification(store ProfileStore, resolver ledger.Resolver, l *ledger.Ledger, clock core.Clock, logger *log.Logger) *Gamification {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Gamification{store: store, resolver: resolver, ledger: l, clock: clock, logger: logger}
}

// RecordActivity updates the identity's profile after one recorded
// transaction and returns the streak outcome plus any newly unlocked
// achievements.
func (g *Gamification) RecordActivity(ctx context.Context, identity string) (core.StreakUpdate, []core.Achievement, error) {
	p, err := g.store.Profile(ctx, identity)
	if err != nil {
		return core.StreakUpdate{}, nil, fmt.Errorf("load profile: %w", err)
	}
	p.Identity = identity
	p.TotalTransactions++

	today := core.DateOf(g.clock.Now())
	update := applyStreak(&p, today)
	p.Score = computeScore(p, g.monthFinances(ctx))
	unlocked := g.award(&p)

	if err := g.store.SaveProfile(ctx, p); err != nil {
		return core.StreakUpdate{}, nil, fmt.Errorf("save profile: %w", err)
	}
	for _, a := range unlocked {
		g.logger.Info("achievement unlocked",
			log.FieldReporter, identity,
			"achievement", a.Code,
		)
	}
	return update, unlocked, nil
}

// Profile returns the stored profile, scored.
func (g *Gamification) Profile(ctx context.Context, identity string) (core.UserProfile, error) {
	p, err := g.store.Profile(ctx, identity)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("load profile: %w", err)
	}
	p.Identity = identity
	p.Score = computeScore(p, g.monthFinances(ctx))
	return p, nil
}

// applyStreak advances the daily streak: a repeat on the same day changes
// nothing, consecutive days extend it, a gap resets it to 1.
func applyStreak(p *core.UserProfile, today core.Date) core.StreakUpdate {
	switch {
	case p.LastActivity.IsZero():
		p.CurrentStreak = 1
	case p.LastActivity.Equal(today):
		return core.StreakUpdate{Streak: p.CurrentStreak, Best: p.BestStreak, NewDay: false}
	case p.LastActivity.Equal(core.DateOf(today.AddDate(0, 0, -1))):
		p.CurrentStreak++
	default:
		p.CurrentStreak = 1
	}
	p.LastActivity = today
	if p.CurrentStreak > p.BestStreak {
		p.BestStreak = p.CurrentStreak
	}
	return core.StreakUpdate{Streak: p.CurrentStreak, Best: p.BestStreak, NewDay: true}
}

// monthFinances is the financial snapshot the score is computed from:
// the current month's totals plus whether any savings goal holds a positive
// balance and whether any budget limit is configured.
type monthFinances struct {
	income           core.Money
	expense          core.Money
	savingsPositive  bool
	budgetConfigured bool
}

// monthFinances reads the current month. Best effort: a month nobody has
// provisioned yet scores as if it had no activity.
func (g *Gamification) monthFinances(ctx context.Context) monthFinances {
	var fin monthFinances
	if g.ledger == nil || g.resolver == nil {
		return fin
	}
	key := core.DateOf(g.clock.Now()).Key()
	if sum, err := g.ledger.Aggregate(ctx, key); err == nil {
		fin.income = sum.TotalIncome
		fin.expense = sum.TotalExpense
	}
	part, err := g.resolver.Resolve(ctx, key)
	if err != nil {
		return fin
	}
	if goals, err := part.Savings(ctx); err == nil {
		for _, goal := range goals {
			if goal.Saved.Cents > 0 {
				fin.savingsPositive = true
				break
			}
		}
	}
	if budgets, err := part.Budgets(ctx); err == nil && len(budgets) > 0 {
		fin.budgetConfigured = true
	}
	return fin
}

// computeScore derives the 0-100 health score. Baseline is 50; spending
// discipline moves it most: keeping expenses under 80% of income earns +20,
// staying under income +10, overspending costs 15. Streaks of 7 and 3 days
// add +10 and +5, a funded savings goal +10 and a configured budget +10.
func computeScore(p core.UserProfile, fin monthFinances) int {
	score := 50
	if fin.income.Cents > 0 {
		ratio := float64(fin.expense.Cents) / float64(fin.income.Cents)
		switch {
		case ratio < 0.8:
			score += 20
		case ratio < 1.0:
			score += 10
		default:
			score -= 15
		}
	}
	switch {
	case p.CurrentStreak >= 7:
		score += 10
	case p.CurrentStreak >= 3:
		score += 5
	}
	if fin.savingsPositive {
		score += 10
	}
	if fin.budgetConfigured {
		score += 10
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// award grants every catalog achievement whose condition now holds and was
// not unlocked before, crediting its points as experience.
func (g *Gamification) award(p *core.UserProfile) []core.Achievement {
	var unlocked []core.Achievement
	for _, a := range achievementCatalog {
		if p.HasAchievement(a.Code) || !achieved(a.Code, *p) {
			continue
		}
		p.Achievements = append(p.Achievements, a.Code)
		p.Experience += a.Points
		unlocked = append(unlocked, a)
	}
	return unlocked
}

func achieved(code string, p core.UserProfile) bool {
	switch code {
	case "first_tx":
		return p.TotalTransactions >= 1
	case "tx_10":
		return p.TotalTransactions >= 10
	case "tx_50":
		return p.TotalTransactions >= 50
	case "tx_100":
		return p.TotalTransactions >= 100
	case "streak_3":
		return p.CurrentStreak >= 3
	case "streak_7":
		return p.CurrentStreak >= 7
	case "streak_30":
		return p.CurrentStreak >= 30
	case "score_80":
		return p.Score >= 80
	default:
		return false
	}
}
