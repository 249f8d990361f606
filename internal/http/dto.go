package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"finanzas/internal/core"
)

// Amounts travel as decimal strings ("12.34") so no client float ever touches
// the books.

type transactionRequest struct {
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Category    string `json:"category,omitempty"`
	Concept     string `json:"concept,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Reporter    string `json:"reporter"`
	ReceiptLink string `json:"receipt_link,omitempty"`
	Confirmed   bool   `json:"confirmed,omitempty"`
}

func (req transactionRequest) toCandidate() (core.TransactionCandidate, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.TransactionCandidate{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", req.Date)
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.TransactionCandidate{}, fmt.Errorf("invalid amount %q", req.Amount)
	}
	return core.TransactionCandidate{
		Kind:        core.TransactionKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		Date:        date,
		Time:        req.Time,
		Amount:      core.Money{Cents: cents},
		Currency:    strings.TrimSpace(req.Currency),
		Category:    strings.TrimSpace(req.Category),
		Concept:     strings.TrimSpace(req.Concept),
		Reference:   strings.TrimSpace(req.Reference),
		Reporter:    strings.TrimSpace(req.Reporter),
		ReceiptLink: strings.TrimSpace(req.ReceiptLink),
	}, nil
}

type transactionView struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Date        string  `json:"date"`
	Time        string  `json:"time,omitempty"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	AmountUSD   string  `json:"amount_usd"`
	RateApplied float64 `json:"rate_applied"`
	Category    string  `json:"category,omitempty"`
	Concept     string  `json:"concept,omitempty"`
	Reference   string  `json:"reference,omitempty"`
	Reporter    string  `json:"reporter"`
	RecordedAt  string  `json:"recorded_at"`
}

func viewTransaction(tx core.Transaction) transactionView {
	return transactionView{
		ID:          tx.ID,
		Kind:        string(tx.Kind),
		Date:        tx.Date.String(),
		Time:        tx.Time,
		Amount:      tx.AmountOriginal.String(),
		Currency:    tx.Currency,
		AmountUSD:   tx.AmountBase.String(),
		RateApplied: tx.RateApplied,
		Category:    tx.Category,
		Concept:     tx.Concept,
		Reference:   tx.Reference,
		Reporter:    tx.Reporter,
		RecordedAt:  tx.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

type budgetStatusView struct {
	Category string  `json:"category"`
	Spent    string  `json:"spent_usd"`
	Limit    string  `json:"limit_usd"`
	Pct      float64 `json:"pct"`
	Alert    string  `json:"alert"`
}

func viewBudgetStatus(st core.BudgetStatus) budgetStatusView {
	return budgetStatusView{
		Category: st.Category,
		Spent:    st.Spent.String(),
		Limit:    st.Limit.String(),
		Pct:      st.Pct,
		Alert:    string(st.Alert),
	}
}

type goalView struct {
	Name        string  `json:"name"`
	Target      string  `json:"target_usd"`
	Saved       string  `json:"saved_usd"`
	Pct         float64 `json:"pct"`
	Milestones  []int   `json:"milestones"`
	LastUpdated string  `json:"last_updated,omitempty"`
	LastActor   string  `json:"last_actor,omitempty"`
}

func viewGoal(g core.SavingsGoal) goalView {
	v := goalView{
		Name:       g.Name,
		Target:     g.Target.String(),
		Saved:      g.Saved.String(),
		Pct:        g.Pct(),
		Milestones: g.Milestones,
		LastActor:  g.LastActor,
	}
	if !g.LastUpdated.IsZero() {
		v.LastUpdated = g.LastUpdated.UTC().Format("2006-01-02 15:04")
	}
	return v
}

type debtView struct {
	Person      string `json:"person"`
	Amount      string `json:"amount_usd"`
	LoanDate    string `json:"loan_date,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Status      string `json:"status"`
	Responsible string `json:"responsible,omitempty"`
	PaidDate    string `json:"paid_date,omitempty"`
}

func viewDebt(d core.Debt) debtView {
	return debtView{
		Person:      d.Person,
		Amount:      d.Amount.String(),
		LoanDate:    d.LoanDate.String(),
		DueDate:     d.DueDate.String(),
		Status:      string(d.Status),
		Responsible: d.Responsible,
		PaidDate:    d.PaidDate.String(),
	}
}

type obligationView struct {
	Name       string `json:"name"`
	Amount     string `json:"amount_usd"`
	DayOfMonth int    `json:"day_of_month"`
	LastPaid   string `json:"last_paid,omitempty"`
	Active     bool   `json:"active"`
}

func viewObligation(o core.RecurringObligation) obligationView {
	return obligationView{
		Name:       o.Name,
		Amount:     o.Amount.String(),
		DayOfMonth: o.DayOfMonth,
		LastPaid:   o.LastPaid.String(),
		Active:     o.Active,
	}
}

type summaryView struct {
	Partition    string            `json:"partition"`
	TotalExpense string            `json:"total_expense_usd"`
	TotalIncome  string            `json:"total_income_usd"`
	Balance      string            `json:"balance_usd"`
	ByCategory   map[string]string `json:"by_category"`
	Daily        []dailyPointView  `json:"daily"`
	ExpenseCount int               `json:"expense_count"`
	IncomeCount  int               `json:"income_count"`
}

type dailyPointView struct {
	Date   string `json:"date"`
	Amount string `json:"amount_usd"`
}

func viewSummary(s core.Summary) summaryView {
	v := summaryView{
		Partition:    s.Key.String(),
		TotalExpense: s.TotalExpense.String(),
		TotalIncome:  s.TotalIncome.String(),
		Balance:      s.Balance().String(),
		ByCategory:   make(map[string]string, len(s.ByCategory)),
		ExpenseCount: s.ExpenseCount,
		IncomeCount:  s.IncomeCount,
	}
	for cat, amount := range s.ByCategory {
		v.ByCategory[cat] = amount.String()
	}
	for _, p := range s.Daily {
		v.Daily = append(v.Daily, dailyPointView{Date: p.Date.String(), Amount: p.Amount.String()})
	}
	return v
}

type profileView struct {
	Identity          string   `json:"identity"`
	CurrentStreak     int      `json:"current_streak"`
	BestStreak        int      `json:"best_streak"`
	Score             int      `json:"score"`
	TotalTransactions int      `json:"total_transactions"`
	Experience        int      `json:"experience"`
	Achievements      []string `json:"achievements"`
}

func viewProfile(p core.UserProfile) profileView {
	return profileView{
		Identity:          p.Identity,
		CurrentStreak:     p.CurrentStreak,
		BestStreak:        p.BestStreak,
		Score:             p.Score,
		TotalTransactions: p.TotalTransactions,
		Experience:        p.Experience,
		Achievements:      p.Achievements,
	}
}

// monthKeyFromPath reads {year} and {month} path values.
func monthKeyFromPath(r *http.Request) (core.MonthKey, error) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		return core.MonthKey{}, fmt.Errorf("invalid year %q", r.PathValue("year"))
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		return core.MonthKey{}, fmt.Errorf("invalid month %q", r.PathValue("month"))
	}
	key := core.MonthKey{Year: year, Month: month}
	if err := key.Validate(); err != nil {
		return core.MonthKey{}, err
	}
	return key, nil
}
