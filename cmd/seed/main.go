/**
 * @description
 * One-shot seeder for the platform catalog. Inserts the supported platforms
 * keyed by slug; re-running it is a no-op for rows that already exist.
 */
package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/quotawatch/backend/internal/config"
	"github.com/quotawatch/backend/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbpool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer dbpool.Close()

	repository := store.NewRepository(dbpool)

	platforms := []struct {
		name, slug, adapterKey string
	}{
		{"OpenRouter", "openrouter", "openrouter"},
		{"OpenAI", "openai", "openai"},
	}

	for _, p := range platforms {
		if err := repository.UpsertPlatform(ctx, p.name, p.slug, p.adapterKey); err != nil {
			log.Fatalf("failed to seed platform %s: %v", p.slug, err)
		}
		log.Printf("seeded platform %s", p.slug)
	}

	log.Println("platform catalog seeded")
}
