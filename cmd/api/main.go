/**
 * @description
 * This is the main entry point for the QuotaWatch API server. It exposes the
 * REST surface for registering users, storing encrypted platform credentials,
 * managing notification rules and triggering on-demand balance checks.
 *
 * Key features:
 * - Loads application configuration from environment variables.
 * - Runs database migrations on startup so the schema is always current.
 * - Initializes the master-key encryption service used to seal API secrets.
 * - Publishes manual check jobs to RabbitMQ; the worker does the fetching.
 * - Implements graceful shutdown to ensure clean resource cleanup on termination.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pooling.
 * - github.com/joho/godotenv: For loading .env files during local development.
 */
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/quotawatch/backend/internal/adapters"
	"github.com/quotawatch/backend/internal/api"
	"github.com/quotawatch/backend/internal/config"
	"github.com/quotawatch/backend/internal/crypto"
	"github.com/quotawatch/backend/internal/store"
	"github.com/quotawatch/backend/pkg/rabbitmq"
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

	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	logger.Info("database migrations applied")

	ctx := context.Background()

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("unable to parse database URL: %v", err)
	}
	poolCfg.MaxConns = 50
	poolCfg.MinConns = 5
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatalf("unable to connect to database: %v", err)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	cryptoService, err := crypto.NewService(cfg.MasterEncryptionKey)
	if err != nil {
		log.Fatalf("failed to initialize encryption service: %v", err)
	}

	producer, err := rabbitmq.NewTaskProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer producer.Close()
	logger.Info("RabbitMQ producer connected")

	repository := store.NewRepository(dbpool)
	registry := adapters.NewRegistry()

	handler := api.NewHandler(repository, cryptoService, registry, producer, cfg.JWTSecret, logger)
	router := api.NewRouter(handler, cfg.JWTSecret)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %s\n", err)
		}
	}()

	// Graceful shutdown logic.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	logger.Info("server gracefully stopped")
}
