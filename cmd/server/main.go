package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/charterpay/dues-distribution-engine/internal/api"
	"github.com/charterpay/dues-distribution-engine/internal/audit"
	"github.com/charterpay/dues-distribution-engine/internal/config"
	"github.com/charterpay/dues-distribution-engine/internal/events/kafka"
	"github.com/charterpay/dues-distribution-engine/internal/hierarchy"
	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/ledger"
	"github.com/charterpay/dues-distribution-engine/internal/splitter"
	"github.com/charterpay/dues-distribution-engine/internal/storage/memory"
	"github.com/charterpay/dues-distribution-engine/internal/storage/postgres"
	"github.com/charterpay/dues-distribution-engine/internal/transfer"
	"github.com/charterpay/dues-distribution-engine/internal/transfer/stripe"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("loading config", zap.Error(err))
	}
	if cfg.StripeAPIKey == "" {
		log.Fatal("STRIPE_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		ledgerStore  interfaces.LedgerStore
		charterStore interfaces.CharterStore
		configStore  interfaces.SplitConfigStore
		accountStore interfaces.StripeAccountStore
	)
	if cfg.DatabaseURL != "" {
		db, err := openDatabase(cfg)
		if err != nil {
			log.Fatal("opening database", zap.Error(err))
		}
		defer db.Close()

		store := postgres.NewStore(db)
		ledgerStore, charterStore, configStore, accountStore = store, store, store, store
	} else {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		store := memory.NewStore()
		ledgerStore, charterStore, configStore, accountStore = store, store, store, store
	}

	publisher := kafka.NewPublisher(cfg.KafkaBrokers)
	defer publisher.Close()

	provider := stripe.NewProvider(cfg.StripeAPIKey)
	executor := transfer.NewExecutor(provider, accountStore, ledgerStore, publisher, log, transfer.Options{
		MaxAttempts: cfg.TransferMaxAttempts,
		Concurrency: cfg.TransferConcurrency,
	})

	resolver := hierarchy.NewResolver(charterStore, configStore, log)
	calculator := splitter.NewCalculator(cfg.NationalFeePercent)
	writer := ledger.NewWriter(ledgerStore, log)
	reverser := ledger.NewReverser(ledgerStore, log)
	service := ledger.NewService(resolver, calculator, writer, reverser, executor, publisher, log)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, service, log)
	defer consumer.Close()

	server := api.NewServer(audit.NewService(ledgerStore, log), writer, log)

	go consumer.Run(ctx)
	go executor.Run(ctx, cfg.PollInterval, cfg.PollBatchSize)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.Listen(cfg.HTTPAddr); err != nil {
			log.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
}

func openDatabase(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "opening postgres")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "pinging postgres")
	}

	m, err := migrate.New("file://"+cfg.MigrationsDir, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "initializing migrations")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, errors.Wrap(err, "applying migrations")
	}
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		return nil, errors.Wrap(srcErr, "closing migration source")
	}
	if dbErr != nil {
		return nil, errors.Wrap(dbErr, "closing migration connection")
	}
	return db, nil
}
