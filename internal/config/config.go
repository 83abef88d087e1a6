// Package config loads service configuration from the environment, with a
// .env file for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr      string
	DatabaseURL   string // empty selects the in-memory store
	MigrationsDir string

	KafkaBrokers []string
	KafkaGroupID string

	StripeAPIKey string

	NationalFeePercent  decimal.Decimal
	TransferMaxAttempts uint64
	TransferConcurrency int
	PollInterval        time.Duration
	PollBatchSize       int
}

// Load reads configuration from the environment. A missing .env file is
// fine; real deployments set variables directly.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MigrationsDir: getenv("MIGRATIONS_DIR", "migrations"),
		KafkaBrokers:  strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaGroupID:  getenv("KAFKA_GROUP_ID", "dues-distribution-engine"),
		StripeAPIKey:  os.Getenv("STRIPE_API_KEY"),
	}

	feePercent, err := decimal.NewFromString(getenv("NATIONAL_FEE_PERCENT", "30"))
	if err != nil {
		return Config{}, errors.Wrap(err, "parsing NATIONAL_FEE_PERCENT")
	}
	if feePercent.IsNegative() || feePercent.GreaterThan(decimal.NewFromInt(100)) {
		return Config{}, errors.Errorf("NATIONAL_FEE_PERCENT %s out of range [0,100]", feePercent)
	}
	cfg.NationalFeePercent = feePercent

	maxAttempts, err := strconv.ParseUint(getenv("TRANSFER_MAX_ATTEMPTS", "5"), 10, 64)
	if err != nil {
		return Config{}, errors.Wrap(err, "parsing TRANSFER_MAX_ATTEMPTS")
	}
	cfg.TransferMaxAttempts = maxAttempts

	concurrency, err := strconv.Atoi(getenv("TRANSFER_CONCURRENCY", "8"))
	if err != nil {
		return Config{}, errors.Wrap(err, "parsing TRANSFER_CONCURRENCY")
	}
	cfg.TransferConcurrency = concurrency

	pollInterval, err := time.ParseDuration(getenv("POLL_INTERVAL", "30s"))
	if err != nil {
		return Config{}, errors.Wrap(err, "parsing POLL_INTERVAL")
	}
	cfg.PollInterval = pollInterval

	batchSize, err := strconv.Atoi(getenv("POLL_BATCH_SIZE", "100"))
	if err != nil {
		return Config{}, errors.Wrap(err, "parsing POLL_BATCH_SIZE")
	}
	cfg.PollBatchSize = batchSize

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
