package backend

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/config"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/services"
	"budgetbuddy/internal/storage"
	"budgetbuddy/internal/store/memory"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:              "sqlite",
		SQLiteDBPath:             "/tmp/x.db",
		AMQPURL:                  "amqp://localhost/",
		AMQPExchange:             "ex",
		AMQPQueue:                "q",
		GmailSender:              "bot@example.com",
		GoogleServiceAccountJSON: "{}",
	}
	got, err := FromAppConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, got.Type)
	assert.Equal(t, "/tmp/x.db", got.SQLiteDBPath)
	assert.Equal(t, "bot@example.com", got.Mail.Sender)
	assert.Equal(t, "{}", got.Mail.ServiceAccountJSON)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)
	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown type", Config{Type: "sheets"}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://x/", AMQPExchange: "e"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
	assert.Equal(t, []string{"sqlite", "memory"}, GetBackendTypeStrings())
}

func TestCreateMemoryBackendSeedsProfiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_profiles.txt"), []byte("u1 u1@example.com Ada\n"), 0o644))

	res, err := NewFactory(quietLogger()).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.IsType(t, &memory.Store{}, res.Store)
	assert.IsType(t, notify.LogDispatcher{}, res.Dispatcher)
	p, err := res.Store.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", p.Email)
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "budgetbuddy.db")
	res, err := NewFactory(quietLogger()).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)

	assert.IsType(t, &storage.SQLiteRepository{}, res.Store)
	require.NotNil(t, res.Ready)
	assert.NoError(t, res.Ready(context.Background()))
	assert.NoError(t, res.Cleanup())
}

func TestAppWiresSharedStore(t *testing.T) {
	st := memory.New()
	rec := &notify.Recorder{}
	resolver := auth.StaticResolver{"t1": "u1"}
	clock := services.FixedClock(time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC))
	app := NewApp(st, rec, resolver, Options{Clock: clock})
	ctx := context.Background()

	_, err := app.Rules.CreateRule(ctx, "t1", services.NewRule{
		Amount:    core.Money{Cents: 1500},
		Method:    "card",
		Frequency: core.Monthly,
		StartDate: core.NewDate(2025, 4, 30),
		Notes:     "netflix",
	})
	require.NoError(t, err)

	res, err := app.Recurring.ProcessDueRules(ctx, clock.Today())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Materialized)

	list, err := app.Expenses.ListExpenses(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Entertainment", list[0].Category)

	svc := app.HTTPServices()
	assert.Same(t, app.Expenses, svc.Expenses)
	assert.Same(t, app.Suggestions, svc.Suggestions)
}

func TestOptionsFromAppConfig(t *testing.T) {
	opts, err := OptionsFromAppConfig(&config.Config{BudgetWindow: "period", ClassifierScorer: "fuzzy"})
	require.NoError(t, err)
	assert.Equal(t, services.WindowPeriod, opts.BudgetWindow)
	assert.Equal(t, "fuzzy", opts.ClassifierScorer)

	_, err = OptionsFromAppConfig(&config.Config{BudgetWindow: "forever"})
	assert.Error(t, err)
}

func TestNewResolverCaches(t *testing.T) {
	resolver, manager := NewResolver("0123456789abcdef", time.Minute)
	require.NotNil(t, manager)
	defer manager.Stop()

	token, err := auth.NewJWTResolver("0123456789abcdef").Issue("u1", time.Hour)
	require.NoError(t, err)

	owner, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)
	assert.IsType(t, &auth.CachingResolver{}, resolver)

	plain, none := NewResolver("0123456789abcdef", 0)
	assert.Nil(t, none)
	assert.IsType(t, &auth.JWTResolver{}, plain)
}
