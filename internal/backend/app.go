package backend

import (
	"fmt"
	"time"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/config"
	apihttp "budgetbuddy/internal/http"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/services"
	"budgetbuddy/internal/store"
)

// Options tune the rule engine.
type Options struct {
	BudgetWindow     services.SpendWindow
	ClassifierScorer string
	Clock            services.Clock
}

// OptionsFromAppConfig reads the rule settings from the application config.
func OptionsFromAppConfig(cfg *config.Config) (Options, error) {
	window, err := services.ParseSpendWindow(cfg.BudgetWindow)
	if err != nil {
		return Options{}, fmt.Errorf("budget window: %w", err)
	}
	return Options{BudgetWindow: window, ClassifierScorer: cfg.ClassifierScorer, Clock: time.Now}, nil
}

// App is every service wired to one store and dispatcher.
type App struct {
	Expenses    *services.ExpenseService
	Budgets     *services.BudgetService
	Rules       *services.RuleService
	Reminders   *services.ReminderService
	Profiles    *services.ProfileService
	Reports     *services.ReportService
	Suggestions *services.SuggestionService

	Recurring      *services.RecurringProcessor
	ReminderSweeps *services.ReminderProcessor
}

func NewApp(st store.Store, dispatcher notify.Dispatcher, resolver auth.Resolver, opts Options) *App {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if opts.BudgetWindow == "" {
		opts.BudgetWindow = services.WindowAll
	}
	classifier := services.NewClassifierByName(opts.ClassifierScorer)
	monitor := services.NewBudgetMonitor(st, dispatcher, opts.BudgetWindow, clock)

	return &App{
		Expenses:    services.NewExpenseService(st, resolver, classifier, monitor, clock),
		Budgets:     services.NewBudgetService(st, resolver, clock),
		Rules:       services.NewRuleService(st, resolver, classifier, clock),
		Reminders:   services.NewReminderService(st, resolver),
		Profiles:    services.NewProfileService(st, resolver),
		Reports:     services.NewReportService(st, resolver, clock),
		Suggestions: services.NewSuggestionService(st, st, resolver, clock),

		Recurring:      services.NewRecurringProcessor(st, st, monitor),
		ReminderSweeps: services.NewReminderProcessor(st, dispatcher),
	}
}

// HTTPServices exposes the services the API serves.
func (a *App) HTTPServices() apihttp.Services {
	return apihttp.Services{
		Expenses:    a.Expenses,
		Budgets:     a.Budgets,
		Rules:       a.Rules,
		Reminders:   a.Reminders,
		Profiles:    a.Profiles,
		Reports:     a.Reports,
		Suggestions: a.Suggestions,
	}
}

// NewResolver builds the JWT resolver, fronted by a token cache when ttl > 0.
// The returned manager sweeps the cache and must be stopped by the caller;
// it is nil when caching is off.
func NewResolver(secret string, ttl time.Duration) (auth.Resolver, *cache.Manager) {
	jwtResolver := auth.NewJWTResolver(secret)
	if ttl <= 0 {
		return jwtResolver, nil
	}
	tokens := cache.NewLRUCache[string](10000, ttl)
	manager := cache.NewManager()
	manager.Register(tokens)
	manager.StartCleanup(ttl)
	return auth.NewCachingResolver(jwtResolver, tokens), manager
}
