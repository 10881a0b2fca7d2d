package main

import (
	"context"
	"errors"
	"net/http"

	"budgetbuddy/internal/backend"
	"budgetbuddy/internal/cli"
	"budgetbuddy/internal/config"
	apphttp "budgetbuddy/internal/http"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateAPI)

	ctx := context.Background()
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}

	opts, err := backend.OptionsFromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid rule configuration", err)
	}
	resolver, tokenCache := backend.NewResolver(cfg.JWTSecret, cfg.AuthCacheTTL)
	app := backend.NewApp(res.Store, res.Dispatcher, resolver, opts)

	rl := ratelimit.DefaultConfig()
	rl.RequestsPerMinute = cfg.RateLimitPerMinute
	srv := apphttp.NewServer(":"+cfg.Port, app.HTTPServices(), apphttp.Options{
		Logger:    logger,
		RateLimit: rl,
		Ready:     res.Ready,
	})

	runCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("HTTP server shutdown failed", log.FieldError, err)
		}
		if tokenCache != nil {
			tokenCache.Stop()
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
		m := srv.Metrics()
		logger.Info("Served requests", "total", m.TotalRequests, "server_errors", m.ServerErrors)
	})

	logger.Info("Starting BudgetBuddy API",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"budget_window", cfg.BudgetWindow,
		"classifier", cfg.ClassifierScorer)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "HTTP server failed", err)
	}
	cli.WaitForShutdown(runCtx, done)
}
