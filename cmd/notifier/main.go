package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"submission_service/config"
	"submission_service/internal/notifier"
	"submission_service/pkg/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logging.NewZap(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		panic(fmt.Sprintf("cannot create logger: %v", err))
	}
	defer func() { _ = zapLogger.Sync() }()
	logger := logging.New(zapLogger)

	logger.Info(ctx, "Starting notification consumer",
		zap.Strings("topics", notifier.Topics()),
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("group_id", cfg.Kafka.GroupID),
	)

	reader := notifier.NewReader(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	defer func() { _ = reader.Close() }()

	if err := notifier.NewConsumer(reader, logger).Run(ctx); err != nil {
		logger.Error(ctx, "Consumer stopped", zap.Error(err))
	}
}
