package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/currency"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
	"finanzas/internal/partition"
	"finanzas/internal/services"
	"finanzas/internal/session"
	"finanzas/internal/sheets/memory"
)

type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]core.UserProfile
}

func (m *memProfiles) Profile(_ context.Context, identity string) (core.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[identity]; ok {
		return p, nil
	}
	return core.UserProfile{Identity: identity}, nil
}

func (m *memProfiles) SaveProfile(_ context.Context, p core.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profiles == nil {
		m.profiles = make(map[string]core.UserProfile)
	}
	m.profiles[p.Identity] = p
	return nil
}

type stubRates struct {
	rates currency.Rates
	err   error
}

func (s stubRates) CurrentRates(context.Context) (currency.Rates, error) {
	return s.rates, s.err
}

type testEnv struct {
	handler http.Handler
	store   *memory.Store
	clock   core.FixedClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.NewComponent("test")
	clock := core.FixedClock{T: time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)}

	store := memory.New()
	store.CreatePartition(core.MonthKey{Year: 2025, Month: 3})

	resolver := partition.NewResolver(store, logger)
	led := ledger.New(resolver, clock, logger)
	profiles := &memProfiles{}
	locks := services.NewPartitionLocks()
	gamify := services.NewGamification(profiles, resolver, led, clock, logger)
	budgets := services.NewBudgetTracker(resolver, locks, led, logger)
	savings := services.NewSavingsTracker(resolver, locks, clock, nil, nil, logger)
	debts := services.NewDebtTracker(resolver, locks, clock, logger)
	recurring := services.NewRecurringScheduler(resolver, locks, clock, logger)
	rates := services.NewRateAdmin(resolver, stubRates{rates: currency.Rates{Official: 60.0, Parallel: 65.5}}, logger)
	txs := services.NewTransactionService(led, resolver, locks, budgets, gamify, nil, nil, logger)
	sessions := session.NewStore(10*time.Minute, clock, logger)

	srv := NewServer(":0", Deps{
		Transactions: txs,
		Budgets:      budgets,
		Savings:      savings,
		Debts:        debts,
		Recurring:    recurring,
		Rates:        rates,
		Gamify:       gamify,
		Sessions:     sessions,
		Logger:       logger,
	})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &testEnv{handler: srv.Handler(), store: store, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "192.0.2.1:1234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

const month = "/api/months/2025/03"

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		if w := env.do(t, http.MethodGet, path, ""); w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, w.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/healthz", "")

	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, metric := range []string{"http_requests_total", "suspicious_requests_total", "pending_drafts", "uptime_seconds"} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics output missing %s", metric)
		}
	}
}

func TestCreateTransactionDraftFlow(t *testing.T) {
	env := newTestEnv(t)

	// New partitions ask for confirmation, so an unconfirmed post parks a draft.
	w := env.do(t, http.MethodPost, "/api/transactions", `{
		"kind": "expense", "date": "2025-03-15", "amount": "25.00",
		"currency": "USD", "category": "Comida", "concept": "almuerzo",
		"reporter": "ana"
	}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	var draft struct {
		DraftToken string          `json:"draft_token"`
		Preview    transactionView `json:"preview"`
	}
	decode(t, w, &draft)
	if draft.DraftToken == "" {
		t.Fatal("draft token is empty")
	}
	if draft.Preview.Amount != "25.00" {
		t.Errorf("preview amount = %q, want 25.00", draft.Preview.Amount)
	}

	// Nothing is written until the draft is confirmed.
	var sum summaryView
	w = env.do(t, http.MethodGet, month+"/summary", "")
	decode(t, w, &sum)
	if sum.TotalExpense != "0.00" {
		t.Fatalf("total before confirm = %q, want 0.00", sum.TotalExpense)
	}

	w = env.do(t, http.MethodPost, "/api/drafts/"+draft.DraftToken+"/confirm", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("confirm status = %d: %s", w.Code, w.Body.String())
	}
	var rec recordResponse
	decode(t, w, &rec)
	if rec.Transaction.ID == "" {
		t.Error("recorded transaction has no id")
	}
	if rec.Streak != 1 {
		t.Errorf("streak = %d, want 1", rec.Streak)
	}

	// A confirmed token is single use.
	if w = env.do(t, http.MethodPost, "/api/drafts/"+draft.DraftToken+"/confirm", ""); w.Code != http.StatusNotFound {
		t.Errorf("second confirm status = %d, want 404", w.Code)
	}
}

func TestDiscardDraft(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/transactions", `{
		"kind": "expense", "date": "2025-03-15", "amount": "5.00",
		"currency": "USD", "reporter": "ana"
	}`)
	var draft draftResponse
	decode(t, w, &draft)

	if w = env.do(t, http.MethodDelete, "/api/drafts/"+draft.DraftToken, ""); w.Code != http.StatusNoContent {
		t.Fatalf("discard status = %d, want 204", w.Code)
	}
	if w = env.do(t, http.MethodPost, "/api/drafts/"+draft.DraftToken+"/confirm", ""); w.Code != http.StatusNotFound {
		t.Errorf("confirm after discard = %d, want 404", w.Code)
	}
}

func TestCreateTransactionConfirmedDirectly(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/transactions", `{
		"kind": "income", "date": "2025-03-15", "amount": "1200.00",
		"currency": "USD", "concept": "salario", "reporter": "luis",
		"confirmed": true
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var rec recordResponse
	decode(t, w, &rec)
	if rec.Transaction.AmountUSD != "1200.00" {
		t.Errorf("amount_usd = %q, want 1200.00", rec.Transaction.AmountUSD)
	}
}

func TestDuplicateReturnsConflict(t *testing.T) {
	env := newTestEnv(t)
	body := `{
		"kind": "expense", "date": "2025-03-15", "amount": "40.00",
		"currency": "USD", "category": "Hogar", "concept": "pago luz",
		"reference": "REF-001", "reporter": "ana", "confirmed": true
	}`
	if w := env.do(t, http.MethodPost, "/api/transactions", body); w.Code != http.StatusCreated {
		t.Fatalf("first post = %d", w.Code)
	}
	w := env.do(t, http.MethodPost, "/api/transactions", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("second post = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestUnprovisionedMonthIs404(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/months/2025/07/summary", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
	var e errorResponse
	decode(t, w, &e)
	if !strings.Contains(e.Error, "not provisioned") {
		t.Errorf("error = %q, want provisioning hint", e.Error)
	}
}

func TestBudgetEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, month+"/budgets/Comida", `{"limit": "100.00"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set budget = %d: %s", w.Code, w.Body.String())
	}

	env.do(t, http.MethodPost, "/api/transactions", `{
		"kind": "expense", "date": "2025-03-15", "amount": "85.00",
		"currency": "USD", "category": "Comida", "reporter": "ana",
		"confirmed": true
	}`)

	w = env.do(t, http.MethodGet, month+"/budgets", "")
	var statuses []budgetStatusView
	decode(t, w, &statuses)
	if len(statuses) != 1 {
		t.Fatalf("budgets = %d, want 1", len(statuses))
	}
	if statuses[0].Alert != string(core.AlertYellow) {
		t.Errorf("alert = %q, want yellow at 85%%", statuses[0].Alert)
	}
}

func TestSavingsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, month+"/savings/Vacaciones", `{"target": "1000.00", "actor": "ana"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("set goal = %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, month+"/savings/Vacaciones/deposits", `{"amount": "300.00", "actor": "ana"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("deposit = %d: %s", w.Code, w.Body.String())
	}
	var dep depositResponse
	decode(t, w, &dep)
	if dep.NewTotal != "300.00" {
		t.Errorf("new total = %q, want 300.00", dep.NewTotal)
	}
	if dep.Milestone != 25 {
		t.Errorf("milestone = %d, want 25", dep.Milestone)
	}

	// Withdrawing past zero is allowed and the balance goes negative.
	w = env.do(t, http.MethodPost, month+"/savings/Vacaciones/deposits", `{"amount": "-500.00", "actor": "ana"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("withdrawal past zero = %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &dep)
	if dep.NewTotal != "-200.00" {
		t.Errorf("new total = %q, want -200.00", dep.NewTotal)
	}

	w = env.do(t, http.MethodGet, month+"/savings", "")
	var goals []goalView
	decode(t, w, &goals)
	if len(goals) != 1 || goals[0].Saved != "-200.00" {
		t.Fatalf("goals = %+v, want one with -200.00 saved", goals)
	}
}

func TestSetMilestonesValidation(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPut, month+"/savings/Moto", `{"target": "500.00", "actor": "luis"}`)

	w := env.do(t, http.MethodPut, month+"/savings/Moto/milestones", `{"milestones": [50, 100], "actor": "luis"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("set milestones = %d: %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodPut, month+"/savings/Moto/milestones", `{"milestones": [0, 150], "actor": "luis"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid milestones = %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodPut, month+"/savings/NoExiste/milestones", `{"milestones": [50], "actor": "luis"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown goal = %d, want 404", w.Code)
	}
}

func TestDebtEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, month+"/debts", `{"person": "Carlos", "amount": "50.00", "responsible": "ana"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, month+"/debts/pending", "")
	var pending []debtView
	decode(t, w, &pending)
	if len(pending) != 1 || pending[0].Person != "Carlos" {
		t.Fatalf("pending = %+v, want Carlos", pending)
	}

	w = env.do(t, http.MethodPost, month+"/debts/carlos/paid", "")
	if w.Code != http.StatusOK {
		t.Fatalf("mark paid = %d: %s", w.Code, w.Body.String())
	}
	var paid debtView
	decode(t, w, &paid)
	if paid.Status != string(core.DebtPaid) {
		t.Errorf("status = %q, want paid", paid.Status)
	}

	w = env.do(t, http.MethodGet, month+"/debts/pending", "")
	decode(t, w, &pending)
	if len(pending) != 0 {
		t.Errorf("pending after paid = %d, want 0", len(pending))
	}

	if w = env.do(t, http.MethodPost, month+"/debts/Nadie/paid", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown person = %d, want 404", w.Code)
	}
}

func TestRecurringEndpoints(t *testing.T) {
	env := newTestEnv(t)

	// The fixed clock says it is the 15th.
	w := env.do(t, http.MethodPost, month+"/recurring", `{"name": "Internet", "amount": "35.00", "day_of_month": 15}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add = %d: %s", w.Code, w.Body.String())
	}
	if w = env.do(t, http.MethodPost, month+"/recurring", `{"name": "Mal", "amount": "1.00", "day_of_month": 32}`); w.Code != http.StatusBadRequest {
		t.Errorf("day 32 = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodGet, month+"/recurring/due", "")
	var due []obligationView
	decode(t, w, &due)
	if len(due) != 1 || due[0].Name != "Internet" {
		t.Fatalf("due = %+v, want Internet", due)
	}

	if w = env.do(t, http.MethodPost, month+"/recurring/Internet/paid", ""); w.Code != http.StatusNoContent {
		t.Fatalf("mark paid = %d", w.Code)
	}
	w = env.do(t, http.MethodGet, month+"/recurring/due", "")
	decode(t, w, &due)
	if len(due) != 0 {
		t.Errorf("due after paid = %d, want 0", len(due))
	}

	if w = env.do(t, http.MethodPut, month+"/recurring/Internet/active", `{"active": false}`); w.Code != http.StatusNoContent {
		t.Errorf("deactivate = %d", w.Code)
	}
}

func TestRateEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, month+"/rate", `{"rate": 60.0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set rate = %d: %s", w.Code, w.Body.String())
	}

	// With the rate in place a bolivar expense normalizes on write.
	w = env.do(t, http.MethodPost, "/api/transactions", `{
		"kind": "expense", "date": "2025-03-15", "amount": "600.00",
		"currency": "Bs", "category": "Comida", "reporter": "ana",
		"confirmed": true
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("record = %d: %s", w.Code, w.Body.String())
	}
	var rec recordResponse
	decode(t, w, &rec)
	if rec.Transaction.AmountUSD != "10.00" {
		t.Errorf("amount_usd = %q, want 10.00", rec.Transaction.AmountUSD)
	}

	w = env.do(t, http.MethodPost, month+"/rate/refresh", `{"source": "paralelo"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d: %s", w.Code, w.Body.String())
	}
	var out map[string]float64
	decode(t, w, &out)
	if out["rate"] != 65.5 {
		t.Errorf("refreshed rate = %v, want 65.5", out["rate"])
	}
}

func TestRateUnavailableConflict(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/transactions", `{
		"kind": "expense", "date": "2025-03-15", "amount": "600.00",
		"currency": "Bs", "reporter": "ana", "confirmed": true
	}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestConfirmationToggle(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodPut, month+"/confirmation", `{"required": false}`); w.Code != http.StatusNoContent {
		t.Fatalf("toggle = %d", w.Code)
	}

	// With confirmation off an unconfirmed post records directly.
	w := env.do(t, http.MethodPost, "/api/transactions", `{
		"kind": "expense", "date": "2025-03-15", "amount": "12.00",
		"currency": "USD", "reporter": "ana"
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
}

func TestProfileEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/transactions", `{
		"kind": "expense", "date": "2025-03-15", "amount": "10.00",
		"currency": "USD", "reporter": "ana", "confirmed": true
	}`)

	w := env.do(t, http.MethodGet, "/api/profiles/ana", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var p profileView
	decode(t, w, &p)
	if p.CurrentStreak != 1 || p.TotalTransactions != 1 {
		t.Errorf("profile = %+v, want streak 1 and 1 transaction", p)
	}
}

func TestMalformedBodyIs400(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/transactions", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestInvalidMonthPathIs400(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/months/2025/13/summary", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}
