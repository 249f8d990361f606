package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/services"
)

const maxBodySize = 64 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	defer io.Copy(io.Discard, body)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// --- transactions ---

type recordResponse struct {
	Transaction  transactionView   `json:"transaction"`
	Budget       *budgetStatusView `json:"budget,omitempty"`
	Streak       int               `json:"streak,omitempty"`
	BestStreak   int               `json:"best_streak,omitempty"`
	Achievements []string          `json:"achievements_unlocked,omitempty"`
}

type draftResponse struct {
	DraftToken string          `json:"draft_token"`
	Preview    transactionView `json:"preview"`
}

func viewRecordResult(res services.RecordResult) recordResponse {
	out := recordResponse{
		Transaction: viewTransaction(res.Transaction),
		Streak:      res.Streak.Streak,
		BestStreak:  res.Streak.Best,
	}
	if res.Budget != nil {
		v := viewBudgetStatus(*res.Budget)
		out.Budget = &v
	}
	for _, a := range res.Unlocked {
		out.Achievements = append(out.Achievements, a.Code)
	}
	return out
}

// handleCreateTransaction records directly, or parks a draft when the
// partition asks for confirmation and the client did not pre-confirm.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	candidate, err := req.toCandidate()
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := candidate.Validate(); err != nil {
		writeError(w, err)
		return
	}

	if !req.Confirmed {
		required, err := s.deps.Transactions.ConfirmationRequired(r.Context(), candidate.Date.Key())
		if err != nil {
			writeError(w, err)
			return
		}
		if required {
			token := s.deps.Sessions.Put(candidate)
			preview := core.Transaction{
				Kind:           candidate.Kind,
				Date:           candidate.Date,
				Time:           candidate.Time,
				AmountOriginal: candidate.Amount,
				Currency:       candidate.Currency,
				Category:       candidate.Category,
				Concept:        candidate.Concept,
				Reference:      candidate.Reference,
				Reporter:       candidate.Reporter,
				ReceiptLink:    candidate.ReceiptLink,
			}
			writeJSON(w, http.StatusAccepted, draftResponse{
				DraftToken: token,
				Preview:    viewTransaction(preview),
			})
			return
		}
	}

	res, err := s.deps.Transactions.Record(r.Context(), candidate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewRecordResult(res))
}

func (s *Server) handleConfirmDraft(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	candidate, ok := s.deps.Sessions.Take(token)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "draft not found or expired"})
		return
	}
	res, err := s.deps.Transactions.Record(r.Context(), candidate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewRecordResult(res))
}

func (s *Server) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Sessions.Discard(r.PathValue("token")) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "draft not found or expired"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- summary ---

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	summary, err := s.deps.Transactions.Summary(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSummary(summary))
}

// --- budgets ---

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	statuses, err := s.deps.Budgets.CheckAll(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]budgetStatusView, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, viewBudgetStatus(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req struct {
		Limit string `json:"limit"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	cents, err := core.ParseDecimalToCents(req.Limit)
	if err != nil {
		badRequest(w, "invalid limit "+req.Limit)
		return
	}
	category := r.PathValue("category")
	if err := s.deps.Budgets.SetLimit(r.Context(), key, category, core.Money{Cents: cents}); err != nil {
		writeError(w, err)
		return
	}
	st, err := s.deps.Budgets.Check(r.Context(), key, category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewBudgetStatus(*st))
}

// --- savings ---

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	goals, err := s.deps.Savings.List(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]goalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, viewGoal(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req struct {
		Target string `json:"target"`
		Actor  string `json:"actor"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	cents, err := core.ParseDecimalToCents(req.Target)
	if err != nil {
		badRequest(w, "invalid target "+req.Target)
		return
	}
	if err := s.deps.Savings.SetGoal(r.Context(), key, r.PathValue("goal"), core.Money{Cents: cents}, req.Actor); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetMilestones(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req struct {
		Milestones []int  `json:"milestones"`
		Actor      string `json:"actor"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.deps.Savings.SetMilestones(r.Context(), key, r.PathValue("goal"), req.Milestones, req.Actor); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type depositResponse struct {
	NewTotal  string  `json:"new_total_usd"`
	NewPct    float64 `json:"new_pct"`
	Milestone int     `json:"milestone,omitempty"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req struct {
		Amount string `json:"amount"`
		Actor  string `json:"actor"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	cents, err := core.ParseSignedDecimalToCents(req.Amount)
	if err != nil {
		badRequest(w, "invalid amount "+req.Amount)
		return
	}
	update, err := s.deps.Savings.Deposit(r.Context(), key, r.PathValue("goal"), core.Money{Cents: cents}, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, depositResponse{
		NewTotal:  update.NewTotal.String(),
		NewPct:    update.NewPct,
		Milestone: update.Milestone,
	})
}

// --- debts ---

func (s *Server) handleRegisterDebt(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req struct {
		Person      string `json:"person"`
		Amount      string `json:"amount"`
		LoanDate    string `json:"loan_date,omitempty"`
		DueDate     string `json:"due_date,omitempty"`
		Responsible string `json:"responsible,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		badRequest(w, "invalid amount "+req.Amount)
		return
	}
	d := core.Debt{
		Person:      req.Person,
		Amount:      core.Money{Cents: cents},
		Responsible: req.Responsible,
	}
	if req.LoanDate != "" {
		if d.LoanDate, err = core.ParseDate(req.LoanDate); err != nil {
			badRequest(w, "invalid loan_date "+req.LoanDate)
			return
		}
	}
	if req.DueDate != "" {
		if d.DueDate, err = core.ParseDate(req.DueDate); err != nil {
			badRequest(w, "invalid due_date "+req.DueDate)
			return
		}
	}
	if err := s.deps.Debts.Register(r.Context(), key, d); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handlePendingDebts(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	debts, err := s.deps.Debts.ListPending(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]debtView, 0, len(debts))
	for _, d := range debts {
		out = append(out, viewDebt(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDebtPaid(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	paid, err := s.deps.Debts.MarkPaid(r.Context(), key, r.PathValue("person"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewDebt(paid))
}

// --- recurring ---

func (s *Server) handleAddRecurring(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req struct {
		Name       string `json:"name"`
		Amount     string `json:"amount"`
		DayOfMonth int    `json:"day_of_month"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		badRequest(w, "invalid amount "+req.Amount)
		return
	}
	o := core.RecurringObligation{
		Name:       req.Name,
		Amount:     core.Money{Cents: cents},
		DayOfMonth: req.DayOfMonth,
	}
	if err := s.deps.Recurring.Add(r.Context(), key, o); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	s.respondObligations(w, r, s.deps.Recurring.List)
}

func (s *Server) handleDueRecurring(w http.ResponseWriter, r *http.Request) {
	s.respondObligations(w, r, s.deps.Recurring.DueToday)
}

func (s *Server) respondObligations(w http.ResponseWriter, r *http.Request, load func(ctx context.Context, key core.MonthKey) ([]core.RecurringObligation, error)) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	obligations, err := load(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]obligationView, 0, len(obligations))
	for _, o := range obligations {
		out = append(out, viewObligation(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecurringPaid(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.deps.Recurring.MarkPaid(r.Context(), key, r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecurringActive(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.deps.Recurring.SetActive(r.Context(), key, r.PathValue("name"), req.Active); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- rate and confirmation ---

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req struct {
		Rate float64 `json:"rate"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.deps.Rates.SetManual(r.Context(), key, req.Rate); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"rate": req.Rate})
}

func (s *Server) handleRefreshRate(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req struct {
		Source string `json:"source,omitempty"`
	}
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	rate, err := s.deps.Rates.Refresh(r.Context(), key, strings.ToUpper(req.Source))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"rate": rate})
}

func (s *Server) handleSetConfirmation(w http.ResponseWriter, r *http.Request) {
	key, err := monthKeyFromPath(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req struct {
		Required bool `json:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.deps.Transactions.SetConfirmationRequired(r.Context(), key, req.Required); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- profiles ---

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Gamify.Profile(r.Context(), r.PathValue("identity"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProfile(p))
}
