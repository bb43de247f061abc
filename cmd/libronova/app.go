package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/wilffren/libronova/internal/catalog"
	"github.com/wilffren/libronova/internal/circulation"
	"github.com/wilffren/libronova/internal/members"
	"github.com/wilffren/libronova/pkg/config"
	"github.com/wilffren/libronova/pkg/db"
	"github.com/wilffren/libronova/pkg/logger"
	"github.com/wilffren/libronova/pkg/migrate"
	"github.com/wilffren/libronova/pkg/outbox"
)

// app holds what every subcommand needs once the database is reachable.
type app struct {
	logg        *logger.Logger
	circulation circulation.Service
	fines       circulation.FineCalculator
	defaultDays int
	clock       func() time.Time
	close       func() error
}

type appFactory func(ctx context.Context) (*app, error)

func bootstrap(ctx context.Context) (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = "cli"

	logg := logger.New(logger.Options{
		ServiceName: "libronova",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("dev migrations: %w", err)
	}

	a, err := newApp(cfg.Circulation, dbClient, logg, time.Now)
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}
	return a, nil
}

// newApp wires the loan coordinator over an open database client.
func newApp(cfg config.CirculationConfig, dbClient *db.Client, logg *logger.Logger, clock func() time.Time) (*app, error) {
	coordinator, err := circulation.NewCoordinator(circulation.CoordinatorParams{
		Config:  cfg,
		Tx:      dbClient,
		Books:   catalog.NewRepository(dbClient.DB()),
		Members: members.NewRepository(dbClient.DB()),
		Loans:   circulation.NewLoanRepository(dbClient.DB()),
		Outbox:  outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Logger:  logg,
		Clock:   clock,
	})
	if err != nil {
		return nil, fmt.Errorf("loan coordinator: %w", err)
	}
	return &app{
		logg:        logg,
		circulation: coordinator,
		fines:       circulation.NewFineCalculator(cfg.DailyFineRate),
		defaultDays: cfg.DefaultLoanDays,
		clock:       clock,
		close:       dbClient.Close,
	}, nil
}
