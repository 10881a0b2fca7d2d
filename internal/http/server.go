// Package http exposes the services as a JSON API over gorilla/mux.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"budgetbuddy/internal/log"
	"budgetbuddy/internal/middleware/ratelimit"
	"budgetbuddy/internal/middleware/security"
	"budgetbuddy/internal/middleware/trace"
	"budgetbuddy/internal/services"
)

// Services are the application services the API delegates to.
type Services struct {
	Expenses    *services.ExpenseService
	Budgets     *services.BudgetService
	Rules       *services.RuleService
	Reminders   *services.ReminderService
	Profiles    *services.ProfileService
	Reports     *services.ReportService
	Suggestions *services.SuggestionService
}

type Options struct {
	Logger    *log.Logger
	RateLimit ratelimit.Config
	// Ready reports whether dependencies are reachable; nil means always.
	Ready func(context.Context) error
}

type Server struct {
	http.Server
	svc     Services
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	ready   func(context.Context) error

	shutdownOnce sync.Once
}

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 10 << 20
)

// NewServer wires routes and middleware and returns a server ready for
// ListenAndServe.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}

	s := &Server{
		svc:     svc,
		limiter: ratelimit.NewLimiter(opts.RateLimit),
		tracer:  trace.NewMiddleware(opts.Logger, security.ClientIP),
		ready:   opts.Ready,
	}

	r := mux.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.Middleware(security.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	}))

	api.HandleFunc("/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	api.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses/import", s.handleImportExpenses).Methods(http.MethodPost)
	api.HandleFunc("/expenses/export", s.handleExportExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id}", s.handleGetExpense).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id}", s.handleUpdateExpense).Methods(http.MethodPatch)
	api.HandleFunc("/expenses/{id}", s.handleDeleteExpense).Methods(http.MethodDelete)

	api.HandleFunc("/budgets", s.handleCreateBudget).Methods(http.MethodPost)
	api.HandleFunc("/budgets", s.handleListBudgets).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{id}", s.handleGetBudget).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{id}", s.handleUpdateBudget).Methods(http.MethodPatch)
	api.HandleFunc("/budgets/{id}", s.handleDeleteBudget).Methods(http.MethodDelete)

	api.HandleFunc("/recurring", s.handleCreateRule).Methods(http.MethodPost)
	api.HandleFunc("/recurring", s.handleListRules).Methods(http.MethodGet)
	api.HandleFunc("/recurring/{id}", s.handleGetRule).Methods(http.MethodGet)
	api.HandleFunc("/recurring/{id}", s.handleUpdateRule).Methods(http.MethodPatch)
	api.HandleFunc("/recurring/{id}", s.handleDeleteRule).Methods(http.MethodDelete)
	api.HandleFunc("/recurring/{id}/status", s.handleSetRuleStatus).Methods(http.MethodPut)

	api.HandleFunc("/reminders", s.handleCreateReminder).Methods(http.MethodPost)
	api.HandleFunc("/reminders", s.handleListReminders).Methods(http.MethodGet)
	api.HandleFunc("/reminders/{id}", s.handleGetReminder).Methods(http.MethodGet)
	api.HandleFunc("/reminders/{id}", s.handleUpdateReminder).Methods(http.MethodPatch)
	api.HandleFunc("/reminders/{id}", s.handleDeleteReminder).Methods(http.MethodDelete)

	api.HandleFunc("/profile", s.handleGetProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.handlePutProfile).Methods(http.MethodPut)
	api.HandleFunc("/preferences", s.handleGetPreferences).Methods(http.MethodGet)
	api.HandleFunc("/preferences", s.handlePutPreferences).Methods(http.MethodPut)

	api.HandleFunc("/reports/monthly", s.handleMonthlyReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/weekly", s.handleWeeklyInsight).Methods(http.MethodGet)
	api.HandleFunc("/suggestions", s.handleSuggestions).Methods(http.MethodGet)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Metrics returns the request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeMessage(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
