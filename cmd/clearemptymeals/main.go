// Command clearemptymeals deletes meals that have no ingredients and no recipes.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/nutritrack/backend/config"
	"github.com/nutritrack/backend/internal/infrastructure/database"
	"github.com/nutritrack/backend/internal/pkg/logger"
	"github.com/nutritrack/backend/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	deleted, err := clearEmptyMeals(cfg.Database, logg)
	if err != nil {
		logg.Error("failed to clear empty meals", "error", err)
		logg.Sync()
		os.Exit(1)
	}
	logg.Info("cleared empty meals", "deleted", deleted)
	logg.Sync()
}

func clearEmptyMeals(cfg config.DatabaseConfig, logg *logger.Logger) (int64, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return 0, fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close(db)

	return usecase.NewMealService(db, logg).ClearEmptyMeals(context.Background())
}
