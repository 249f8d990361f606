// Package http exposes the bookkeeping operations as a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/security"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/services"
	"finanzas/internal/session"
)

// Deps are the collaborators every handler group needs.
type Deps struct {
	Transactions *services.TransactionService
	Budgets      *services.BudgetTracker
	Savings      *services.SavingsTracker
	Debts        *services.DebtTracker
	Recurring    *services.RecurringScheduler
	Rates        *services.RateAdmin
	Gamify       *services.Gamification
	Sessions     *session.Store
	Logger       *log.Logger
}

type Server struct {
	httpServer *http.Server
	deps       Deps
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	tracer     *trace.Middleware
	started    time.Time
	logger     *log.Logger
}

func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.NewComponent(log.ComponentHTTP)
	}

	s := &Server{
		deps:     deps,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: security.NewDetector(),
		started:  time.Now(),
		logger:   logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("POST /api/drafts/{token}/confirm", s.handleConfirmDraft)
	mux.HandleFunc("DELETE /api/drafts/{token}", s.handleDiscardDraft)

	mux.HandleFunc("GET /api/months/{year}/{month}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/months/{year}/{month}/budgets", s.handleListBudgets)
	mux.HandleFunc("PUT /api/months/{year}/{month}/budgets/{category}", s.handleSetBudget)

	mux.HandleFunc("GET /api/months/{year}/{month}/savings", s.handleListGoals)
	mux.HandleFunc("PUT /api/months/{year}/{month}/savings/{goal}", s.handleSetGoal)
	mux.HandleFunc("PUT /api/months/{year}/{month}/savings/{goal}/milestones", s.handleSetMilestones)
	mux.HandleFunc("POST /api/months/{year}/{month}/savings/{goal}/deposits", s.handleDeposit)

	mux.HandleFunc("POST /api/months/{year}/{month}/debts", s.handleRegisterDebt)
	mux.HandleFunc("GET /api/months/{year}/{month}/debts/pending", s.handlePendingDebts)
	mux.HandleFunc("POST /api/months/{year}/{month}/debts/{person}/paid", s.handleDebtPaid)

	mux.HandleFunc("POST /api/months/{year}/{month}/recurring", s.handleAddRecurring)
	mux.HandleFunc("GET /api/months/{year}/{month}/recurring", s.handleListRecurring)
	mux.HandleFunc("GET /api/months/{year}/{month}/recurring/due", s.handleDueRecurring)
	mux.HandleFunc("POST /api/months/{year}/{month}/recurring/{name}/paid", s.handleRecurringPaid)
	mux.HandleFunc("PUT /api/months/{year}/{month}/recurring/{name}/active", s.handleRecurringActive)

	mux.HandleFunc("PUT /api/months/{year}/{month}/rate", s.handleSetRate)
	mux.HandleFunc("POST /api/months/{year}/{month}/rate/refresh", s.handleRefreshRate)
	mux.HandleFunc("PUT /api/months/{year}/{month}/confirmation", s.handleSetConfirmation)

	mux.HandleFunc("GET /api/profiles/{identity}", s.handleProfile)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
	})

	handler := headers.Middleware(
		s.tracer.Middleware(
			limited(
				s.detectSuspicious(
					log.Middleware(logger)(mux)))))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// detectSuspicious logs requests matching known attack patterns. They still
// proceed: the patterns are heuristics and the API holds no secrets beyond
// household bookkeeping.
func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			s.logger.Warn("suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
			)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.limiter.ActiveClients())

	fmt.Fprintf(w, "# HELP pending_drafts Drafts awaiting confirmation\n")
	fmt.Fprintf(w, "# TYPE pending_drafts gauge\n")
	fmt.Fprintf(w, "pending_drafts %d\n\n", s.deps.Sessions.Len())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
