package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	KindExpense TransactionKind = "expense"
	KindIncome  TransactionKind = "income"
)

const (
	DebtPending DebtStatus = "pending"
	DebtPaid    DebtStatus = "paid"
)

const (
	AlertGreen  AlertLevel = "green"
	AlertYellow AlertLevel = "yellow"
	AlertRed    AlertLevel = "red"
)

// DefaultRateSource marks a partition whose rate nobody has set yet.
const DefaultRateSource = "MANUAL"

type (
	TransactionKind string
	DebtStatus      string
	AlertLevel      string

	Date struct {
		time.Time
	}

	// MonthKey identifies a ledger partition.
	MonthKey struct {
		Year  int
		Month int
	}

	// Transaction is one recorded money movement. AmountBase is always in the
	// base currency; AmountOriginal plus Currency is kept for audit.
	Transaction struct {
		ID             string
		Kind           TransactionKind
		Date           Date
		Time           string
		AmountOriginal Money
		Currency       string
		AmountBase     Money
		RateApplied    float64
		Category       string
		Concept        string
		Reference      string
		Reporter       string
		ReceiptLink    string
		RecordedAt     time.Time
	}

	// TransactionCandidate is what the external extractor hands the core:
	// best-effort structured fields, possibly with blanks.
	TransactionCandidate struct {
		Kind        TransactionKind
		Date        Date
		Time        string
		Amount      Money
		Currency    string
		Category    string
		Concept     string
		Reference   string
		Reporter    string
		ReceiptLink string
	}

	// PartitionConfig is the small key/value configuration each partition owns.
	PartitionConfig struct {
		Rate                 float64
		RateSource           string
		ConfirmationRequired bool
		RateBCV              float64
		RateParallel         float64
	}

	Budget struct {
		Category string
		Limit    Money
	}

	BudgetStatus struct {
		Category string
		Spent    Money
		Limit    Money
		Pct      float64
		Alert    AlertLevel
	}

	SavingsGoal struct {
		Name        string
		Target      Money
		Saved       Money
		Milestones  []int
		LastUpdated time.Time
		LastActor   string
	}

	// SavingsUpdate reports the outcome of a deposit or withdrawal.
	// Milestone is 0 when no milestone was crossed.
	SavingsUpdate struct {
		NewTotal  Money
		NewPct    float64
		Milestone int
	}

	Debt struct {
		Person      string
		Amount      Money
		LoanDate    Date
		DueDate     Date
		Status      DebtStatus
		Responsible string
		PaidDate    Date
	}

	RecurringObligation struct {
		Name       string
		Amount     Money
		DayOfMonth int
		LastPaid   Date
		Active     bool
	}

	UserProfile struct {
		Identity          string
		CurrentStreak     int
		BestStreak        int
		LastActivity      Date
		Score             int
		TotalTransactions int
		Experience        int
		Achievements      []string
		DailyLimit        Money
		SilentMode        bool
	}

	Achievement struct {
		Code   string
		Title  string
		Points int
	}

	StreakUpdate struct {
		Streak int
		Best   int
		NewDay bool
	}

	DailyPoint struct {
		Date   Date
		Amount Money
	}

	// Summary is the aggregate view of one partition's ledger.
	Summary struct {
		Key          MonthKey
		TotalExpense Money
		TotalIncome  Money
		ByCategory   map[string]Money
		Daily        []DailyPoint
		ExpenseCount int
		IncomeCount  int
	}
)

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidKind   = errors.New("invalid transaction kind")
	ErrEmptyReporter = errors.New("empty reporter")
)

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses the wire format YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// String renders the wire format YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (d Date) Equal(other Date) bool {
	return d.Year() == other.Year() && d.YearDay() == other.YearDay()
}

// Key returns the partition the date belongs to.
func (d Date) Key() MonthKey {
	return MonthKey{Year: d.Year(), Month: int(d.Month())}
}

func (k MonthKey) Validate() error {
	if k.Month < 1 || k.Month > 12 {
		return ErrInvalidMonth
	}
	if k.Year < 2000 || k.Year > 2200 {
		return errors.New("year out of range")
	}
	return nil
}

// String renders the key as YYYY-MM.
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}

// Previous returns the immediately preceding calendar month.
func (k MonthKey) Previous() MonthKey {
	if k.Month == 1 {
		return MonthKey{Year: k.Year - 1, Month: 12}
	}
	return MonthKey{Year: k.Year, Month: k.Month - 1}
}

// AtDefaults reports whether the configuration was never touched, which is how
// the resolver decides a partition is fresh enough for carry-forward migration.
func (c PartitionConfig) AtDefaults() bool {
	return c.Rate == 1.0 && c.RateSource == DefaultRateSource
}

// DefaultPartitionConfig is the factory state of a new partition.
func DefaultPartitionConfig() PartitionConfig {
	return PartitionConfig{
		Rate:                 1.0,
		RateSource:           DefaultRateSource,
		ConfirmationRequired: true,
	}
}

// AlertFor maps a spent percentage to its advisory level.
func AlertFor(pct float64) AlertLevel {
	switch {
	case pct >= 100:
		return AlertRed
	case pct >= 80:
		return AlertYellow
	default:
		return AlertGreen
	}
}

// Pct returns the goal's completion percentage, 0 when the target is unset.
func (g SavingsGoal) Pct() float64 {
	if g.Target.Cents <= 0 {
		return 0
	}
	return float64(g.Saved.Cents) / float64(g.Target.Cents) * 100
}

func (p UserProfile) HasAchievement(code string) bool {
	for _, c := range p.Achievements {
		if c == code {
			return true
		}
	}
	return false
}

// Balance is income minus expense for the month.
func (s Summary) Balance() Money {
	return Money{Cents: s.TotalIncome.Cents - s.TotalExpense.Cents}
}

func (c TransactionCandidate) Validate() error {
	if c.Kind != KindExpense && c.Kind != KindIncome {
		return ErrInvalidKind
	}
	if err := c.Date.Validate(); err != nil {
		return err
	}
	if c.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(c.Reporter) == "" {
		return ErrEmptyReporter
	}
	if len(c.Concept) > 200 {
		return errors.New("concept too long (max 200 characters)")
	}
	return nil
}
