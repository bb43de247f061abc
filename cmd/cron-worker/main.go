package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/wilffren/libronova/internal/catalog"
	"github.com/wilffren/libronova/internal/circulation"
	"github.com/wilffren/libronova/internal/cron"
	"github.com/wilffren/libronova/internal/members"
	"github.com/wilffren/libronova/pkg/config"
	"github.com/wilffren/libronova/pkg/db"
	"github.com/wilffren/libronova/pkg/logger"
	"github.com/wilffren/libronova/pkg/metrics"
	"github.com/wilffren/libronova/pkg/migrate"
	"github.com/wilffren/libronova/pkg/outbox"
	"github.com/wilffren/libronova/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	once := flag.String("once", "", "comma separated job names to run once without the lock, or \"all\"")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	circulationMetrics := metrics.NewCirculationMetrics(prometheus.DefaultRegisterer)
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)
	coordinator, err := circulation.NewCoordinator(circulation.CoordinatorParams{
		Config:  cfg.Circulation,
		Tx:      dbClient,
		Books:   catalog.NewRepository(dbClient.DB()),
		Members: members.NewRepository(dbClient.DB()),
		Loans:   circulation.NewLoanRepository(dbClient.DB()),
		Outbox:  outboxSvc,
		Metrics: circulationMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create loan coordinator", err)
		os.Exit(1)
	}

	overdueJob, err := cron.NewOverdueScanJob(cron.OverdueScanJobParams{
		Logger:      logg,
		DB:          dbClient,
		Loans:       coordinator,
		Outbox:      outboxSvc,
		Fines:       circulation.NewFineCalculator(cfg.Circulation.DailyFineRate),
		Metrics:     circulationMetrics,
		NoticeBatch: cfg.Cron.OverdueNoticeBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create overdue scan job", err)
		os.Exit(1)
	}
	auditJob, err := cron.NewInventoryAuditJob(cron.InventoryAuditJobParams{
		Logger:  logg,
		Auditor: coordinator,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory audit job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		Retention:   cfg.Outbox.RetentionDays,
		MinAttempts: cfg.Outbox.MaxAttempts,

		DeadLetters:         outbox.NewDLQRepository(dbClient.DB()),
		DeadLetterRetention: cfg.Outbox.DLQRetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockName, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(overdueJob, auditJob, retentionJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"lockKey":     lock.Key(),
	})

	if *once != "" {
		if err := service.RunOnce(ctx, jobNames(*once)...); err != nil {
			logg.Error(ctx, "cron jobs failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	if addr := cfg.App.MetricsAddr; addr != "" {
		group.Go(func() error { return metrics.Serve(groupCtx, addr, prometheus.DefaultGatherer) })
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// jobNames expands the -once flag; "all" yields nil so every job runs.
func jobNames(raw string) []string {
	if strings.TrimSpace(raw) == "all" {
		return nil
	}
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
