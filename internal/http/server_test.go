package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/middleware/ratelimit"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/services"
	"budgetbuddy/internal/store/memory"
)

const (
	tokenU1 = "token-u1"
	tokenU2 = "token-u2"
)

type testAPI struct {
	t        *testing.T
	server   *Server
	store    *memory.Store
	recorder *notify.Recorder
}

func newTestAPI(t *testing.T, rl ratelimit.Config) *testAPI {
	t.Helper()

	st := memory.New()
	rec := &notify.Recorder{}
	resolver := auth.StaticResolver{tokenU1: "u1", tokenU2: "u2"}
	clock := services.FixedClock(time.Date(2025, 5, 14, 9, 0, 0, 0, time.UTC))
	classifier := services.NewClassifierByName("keyword")
	monitor := services.NewBudgetMonitor(st, rec, services.WindowAll, clock)

	svc := Services{
		Expenses:    services.NewExpenseService(st, resolver, classifier, monitor, clock),
		Budgets:     services.NewBudgetService(st, resolver, clock),
		Rules:       services.NewRuleService(st, resolver, classifier, clock),
		Reminders:   services.NewReminderService(st, resolver),
		Profiles:    services.NewProfileService(st, resolver),
		Reports:     services.NewReportService(st, resolver, clock),
		Suggestions: services.NewSuggestionService(st, st, resolver, clock),
	}
	logger := log.New(log.Config{Output: io.Discard, Component: log.ComponentApp})
	srv := NewServer(":0", svc, Options{Logger: logger, RateLimit: rl})
	t.Cleanup(func() { srv.limiter.Stop() })

	return &testAPI{t: t, server: srv, store: st, recorder: rec}
}

func (a *testAPI) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "203.0.113.7:5555"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) doJSON(method, path, token, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return a.do(method, path, token, r, "application/json")
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})

	rr := api.doJSON(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)

	rr = api.doJSON(http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	api.server.ready = func(context.Context) error { return errors.New("db down") }
	rr = api.doJSON(http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestResponsesCarryRequestIDAndSecurityHeaders(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})

	rr := api.doJSON(http.MethodGet, "/healthz", "", "")
	assert.True(t, strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})

	rr := api.doJSON(http.MethodGet, "/api/nope", tokenU1, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "route not found", decode[errorBody](t, rr).Error)

	rr = api.doJSON(http.MethodPut, "/api/expenses", tokenU1, "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMissingOrBadTokenIs401(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})

	for _, token := range []string{"", "bogus"} {
		rr := api.doJSON(http.MethodGet, "/api/expenses", token, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "token %q", token)
		assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")
		assert.Equal(t, "missing or invalid credentials", decode[errorBody](t, rr).Error)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer   abc  ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.header)
		assert.Equal(t, tt.want, bearerToken(req), "header %q", tt.header)
	}
}

func TestCreateExpenseClassifiesAndReportsAlert(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})
	require.NoError(t, api.store.PutProfile(context.Background(), core.UserProfile{OwnerID: "u1", Email: "u1@example.com"}))

	rr := api.doJSON(http.MethodPost, "/api/budgets", tokenU1, `{"category":"Transport","amount":50,"period":"monthly","start_date":"2025-01-01"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = api.doJSON(http.MethodPost, "/api/expenses", tokenU1, `{"amount":"60.50","method":"card","notes":"uber to airport","date":"2025-05-10"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	got := decode[createExpenseResponse](t, rr)
	assert.Equal(t, "Transport", got.Expense.Category)
	assert.Equal(t, "u1", got.Expense.OwnerID)
	assert.Equal(t, int64(6050), got.Expense.Amount.Cents)
	assert.True(t, got.Alert.Alerted)
	require.Len(t, api.recorder.Sent(), 1)
	assert.Equal(t, "u1@example.com", api.recorder.Sent()[0].To)
}

func TestCreateExpenseValidation(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"amount":`},
		{"empty body", ``},
		{"trailing data", `{"amount":1,"method":"cash"} {}`},
		{"bad amount", `{"amount":"ten","method":"cash"}`},
		{"bad date", `{"amount":1,"method":"cash","date":"14/05/2025"}`},
		{"missing method", `{"amount":1,"notes":"rent"}`},
		{"negative amount", `{"amount":-1,"method":"cash"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.doJSON(http.MethodPost, "/api/expenses", tokenU1, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[errorBody](t, rr).Error)
		})
	}
}

func TestExpenseCRUDIsOwnerScoped(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})

	rr := api.doJSON(http.MethodPost, "/api/expenses", tokenU1, `{"amount":12,"category":"Food","method":"cash"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[createExpenseResponse](t, rr).Expense.ID

	rr = api.doJSON(http.MethodGet, "/api/expenses/"+id, tokenU2, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = api.doJSON(http.MethodDelete, "/api/expenses/"+id, tokenU2, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.doJSON(http.MethodPatch, "/api/expenses/"+id, tokenU1, `{"notes":"lunch"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "lunch", decode[core.Expense](t, rr).Notes)

	rr = api.doJSON(http.MethodPatch, "/api/expenses/"+id, tokenU1, `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.doJSON(http.MethodGet, "/api/expenses", tokenU2, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]core.Expense](t, rr))

	rr = api.doJSON(http.MethodDelete, "/api/expenses/"+id, tokenU1, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = api.doJSON(http.MethodGet, "/api/expenses/"+id, tokenU1, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestImportCSVThenExportJSON(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})

	csv := "date,amount,category,method,notes\n2025-05-01,10.00,Food,cash,snacks\n2025-05-02,4.50,,card,bus ticket\n"
	rr := api.do(http.MethodPost, "/api/expenses/import", tokenU1, strings.NewReader(csv), "text/csv")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	imported := decode[importResponse](t, rr)
	assert.Equal(t, 2, imported.Imported)
	assert.Equal(t, "Transport", imported.Expenses[1].Category)

	rr = api.doJSON(http.MethodGet, "/api/expenses/export?format=json", tokenU1, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "expenses.json")
	exported := decode[[]core.Expense](t, rr)
	assert.Len(t, exported, 2)

	rr = api.doJSON(http.MethodGet, "/api/expenses/export?format=csv", tokenU1, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "date,amount,category,method,notes"))

	rr = api.doJSON(http.MethodGet, "/api/expenses/export?format=xml", tokenU1, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestImportMultipartUpload(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "may.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("amount,method,notes\n20,cash,groceries\n"))
	require.NoError(t, mw.Close())

	rr := api.do(http.MethodPost, "/api/expenses/import", tokenU1, &body, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	got := decode[importResponse](t, rr)
	require.Equal(t, 1, got.Imported)
	assert.Equal(t, "Food", got.Expenses[0].Category)
}

func TestImportIsAllOrNothing(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})

	body := `[{"amount":5,"method":"cash","category":"Food"},{"amount":5,"category":"Food"}]`
	rr := api.doJSON(http.MethodPost, "/api/expenses/import", tokenU1, body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.doJSON(http.MethodGet, "/api/expenses", tokenU1, "")
	assert.Empty(t, decode[[]core.Expense](t, rr))
}

func TestRecurringRuleStatusEndpoint(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})

	rr := api.doJSON(http.MethodPost, "/api/recurring", tokenU1,
		`{"amount":9.99,"method":"card","frequency":"monthly","start_date":"2025-06-01","notes":"netflix"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rule := decode[core.RecurringRule](t, rr)
	assert.Equal(t, "Entertainment", rule.Category)
	assert.Equal(t, core.StatusActive, rule.Status)

	rr = api.doJSON(http.MethodPut, "/api/recurring/"+rule.ID+"/status", tokenU1, `{"status":"paused"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, core.StatusPaused, decode[core.RecurringRule](t, rr).Status)

	rr = api.doJSON(http.MethodPut, "/api/recurring/"+rule.ID+"/status", tokenU1, `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.doJSON(http.MethodPut, "/api/recurring/"+rule.ID+"/status", tokenU1, `{"status":"active"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.doJSON(http.MethodPut, "/api/recurring/"+rule.ID+"/status", tokenU2, `{"status":"paused"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRemindersAndPreferences(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})

	rr := api.doJSON(http.MethodPost, "/api/reminders", tokenU1, `{"title":"rent","day":1}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rem := decode[core.Reminder](t, rr)
	assert.True(t, rem.Active)

	rr = api.doJSON(http.MethodPost, "/api/reminders", tokenU1, `{"title":"rent","day":32}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.doJSON(http.MethodGet, "/api/preferences", tokenU1, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.doJSON(http.MethodPut, "/api/preferences", tokenU1, `{"email_enabled":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	prefs := decode[core.NotificationPreferences](t, rr)
	assert.True(t, prefs.EmailEnabled)
	assert.Equal(t, "u1", prefs.OwnerID)

	rr = api.doJSON(http.MethodPut, "/api/profile", tokenU1, `{"owner_id":"u2","email":"me@example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", decode[core.UserProfile](t, rr).OwnerID)

	rr = api.doJSON(http.MethodPut, "/api/profile", tokenU1, `{"email":"not an email"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReportsAndSuggestions(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})

	for _, body := range []string{
		`{"amount":30,"category":"Food","method":"cash","date":"2025-05-13"}`,
		`{"amount":10,"category":"Food","method":"cash","date":"2025-05-06"}`,
	} {
		rr := api.doJSON(http.MethodPost, "/api/expenses", tokenU1, body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr := api.doJSON(http.MethodGet, "/api/reports/monthly", tokenU1, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	report := decode[core.MonthlyReport](t, rr)
	assert.Equal(t, "2025-05", report.Month)
	assert.Equal(t, int64(4000), report.Totals()["Food"].Cents)

	rr = api.doJSON(http.MethodGet, "/api/reports/monthly?month=2025-13", tokenU1, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.doJSON(http.MethodGet, "/api/reports/weekly?date=2025-05-14", tokenU1, "")
	require.Equal(t, http.StatusOK, rr.Code)
	insight := decode[core.WeeklyInsight](t, rr)
	assert.Equal(t, "2025-05-12", insight.WeekStart.String())

	rr = api.doJSON(http.MethodGet, "/api/reports/weekly?date=yesterday", tokenU1, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.doJSON(http.MethodGet, "/api/suggestions", tokenU1, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, decode[core.Suggestions](t, rr).Suggestions)
}

func TestWritesAreRateLimited(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{RequestsPerMinute: 2, WritesOnly: true, CleanupInterval: time.Minute})

	for i := 0; i < 2; i++ {
		rr := api.doJSON(http.MethodPost, "/api/reminders", tokenU1, `{"title":"x","day":1}`)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := api.doJSON(http.MethodPost, "/api/reminders", tokenU1, `{"title":"x","day":1}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	rr = api.doJSON(http.MethodGet, "/api/reminders", tokenU1, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, int64(4), api.server.Metrics().TotalRequests)
}

// lockedExpenses fails reads the way the SQLite store reports a busy database.
type lockedExpenses struct {
	*memory.Store
}

func (lockedExpenses) ListExpenses(context.Context, string) ([]core.Expense, error) {
	return nil, fmt.Errorf("list expenses: %w: %w", core.ErrTransient, errors.New("database is locked"))
}

func TestTransientStoreErrorIs503(t *testing.T) {
	api := newTestAPI(t, ratelimit.Config{})
	clock := services.FixedClock(time.Date(2025, 5, 14, 9, 0, 0, 0, time.UTC))
	api.server.svc.Expenses = services.NewExpenseService(
		lockedExpenses{api.store},
		auth.StaticResolver{tokenU1: "u1"},
		services.NewClassifierByName("keyword"),
		nil,
		clock,
	)

	rr := api.doJSON(http.MethodGet, "/api/expenses", tokenU1, "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "database is locked")
}
