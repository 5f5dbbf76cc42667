// Command server runs the multi-tenant query gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/api"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/config"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/db"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/engine"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/middleware"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/quota"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/registry"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/repository"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/service"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/validator"
)

// tenantSchemaPrefix is what the provisioning service names tenant schemas.
const tenantSchemaPrefix = "tenant_"

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	appPool, inspectorPool, err := db.OpenPools(ctx, cfg.DatabaseURL, cfg.InspectorDatabaseURL)
	if err != nil {
		return err
	}
	defer appPool.Close()
	defer inspectorPool.Close()

	plans := config.DefaultPlans()
	if cfg.PlansPath != "" {
		plans, err = config.LoadPlans(cfg.PlansPath)
		if err != nil {
			return fmt.Errorf("load quota plans: %w", err)
		}
	}

	reg := registry.New(repository.NewMetadataRepository(appPool), cfg.MetadataTTL)
	quotaSvc := quota.NewService(
		repository.NewQuotaRepository(appPool),
		quota.NewRateLimiter(),
		plans,
		logger,
	)
	auditSink := repository.NewAuditRepository(appPool)

	engineOpts := engine.Options{
		StatementTimeoutMs: int(cfg.StatementTimeout.Milliseconds()),
		MaxResultRows:      cfg.MaxResultRows,
	}
	appEngine := engine.New(appPool, engineOpts)
	inspectorEngine := engine.New(inspectorPool, engineOpts)

	querySvc := service.NewQueryService(
		validator.New(reg, tenantSchemaPrefix),
		appEngine, quotaSvc, auditSink, logger,
	)
	adhocSvc := service.NewAdhocService(
		inspectorEngine, quotaSvc, auditSink, tenantSchemaPrefix, logger,
	)
	introspectionSvc := service.NewIntrospectionService(reg)

	handler := api.NewHandler(querySvc, adhocSvc, introspectionSvc, quotaSvc, appPool, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		AssertionSecret: []byte(cfg.AssertionSecret),
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	scheduler := cron.New()
	spec := fmt.Sprintf("@every %s", cfg.SweepInterval)
	if _, err := scheduler.AddFunc(spec, func() {
		evicted := reg.Sweep()
		pruned := quotaSvc.SweepBuckets()
		logger.Debug("sweep complete", "registry_evicted", evicted, "buckets_pruned", pruned)
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
