/**
 * @description
 * This is the main entry point for the QuotaWatch worker. It consumes the two
 * task queues: balance check jobs (decrypt the secret, call the platform
 * adapter, persist the result, evaluate the notification rule) and
 * notification jobs (deliver an alert over email or webhook).
 *
 * Key features:
 * - Loads application configuration from environment variables.
 * - Establishes a PostgreSQL connection pool shared by both consumers.
 * - Publishes follow-up notification tasks from inside the check consumer.
 * - Implements graceful shutdown on SIGINT/SIGTERM.
 *
 * @dependencies
 * - The service's internal packages for config, app logic, storage, crypto
 *   and adapters, plus pgxpool and the rabbitmq wrapper.
 */
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/quotawatch/backend/internal/adapters"
	"github.com/quotawatch/backend/internal/app"
	"github.com/quotawatch/backend/internal/config"
	"github.com/quotawatch/backend/internal/crypto"
	"github.com/quotawatch/backend/internal/domain"
	"github.com/quotawatch/backend/internal/store"
	"github.com/quotawatch/backend/pkg/rabbitmq"
)

const (
	checkQueue        = "check_credential_queue"
	notificationQueue = "send_notification_queue"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to parse database URL: %v\n", err)
	}
	dbConfig.MaxConns = 50
	dbConfig.MinConns = 5
	dbConfig.MaxConnLifetime = 30 * time.Minute
	dbConfig.MaxConnIdleTime = 5 * time.Minute
	dbConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	cryptoService, err := crypto.NewService(cfg.MasterEncryptionKey)
	if err != nil {
		log.Fatalf("failed to initialize encryption service: %v", err)
	}

	// The check consumer enqueues notification tasks, so the worker is both
	// a consumer and a producer.
	producer, err := rabbitmq.NewTaskProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer producer.Close()

	repository := store.NewRepository(dbpool)
	registry := adapters.NewRegistry()

	checker := app.NewCheckService(repository, cryptoService, registry, producer, logger)
	notifier := app.NewNotifier(repository, app.NewSMTPMailer(cfg), logger)

	checkConsumer := app.NewCheckConsumer(checker, logger)
	notificationConsumer := app.NewNotificationConsumer(notifier, logger)

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer consumer.Close()

	go func() {
		logger.Info("starting consumer", "queue", checkQueue, "routing_key", domain.TaskCheckCredential)
		if err := consumer.Consume(checkQueue, domain.TaskCheckCredential, checkConsumer.HandleMessage); err != nil {
			logger.Error("check consumer stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("starting consumer", "queue", notificationQueue, "routing_key", domain.TaskSendNotification)
		if err := consumer.Consume(notificationQueue, domain.TaskSendNotification, notificationConsumer.HandleMessage); err != nil {
			logger.Error("notification consumer stopped", "error", err)
		}
	}()

	logger.Info("worker is running")

	// Wait for termination signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")
}
