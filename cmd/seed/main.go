// Loads the built-in trivia questions into the database.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ashureev/trivia-bot/internal/config"
	"github.com/ashureev/trivia-bot/internal/seed"
	"github.com/ashureev/trivia-bot/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	res, err := seed.Run(context.Background(), repo, seed.Questions)
	if err != nil {
		slog.Error("Failed to seed trivia questions", "error", err)
		os.Exit(1)
	}

	slog.Info("Seeded trivia questions", "inserted", res.Inserted, "skipped", res.Skipped, "path", cfg.DBPath)
}
