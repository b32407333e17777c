package main

import (
	"context"
	"flag"
	"os"

	"todo_backend/internal/logger"
	"todo_backend/internal/migrations"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("LOG_LEVEL"), false)

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	apply := flag.Bool("apply", false, "apply pending migrations (default: print status)")
	flag.Parse()

	ctx := context.Background()
	if !*apply {
		if err := migrations.Status(ctx, dsn); err != nil {
			logger.Fatal("migration status", "error", err)
		}
		return
	}
	if err := migrations.Up(ctx, dsn); err != nil {
		logger.Fatal("apply migrations", "error", err)
	}
	logger.Info("migrations applied")
}
