// Command loadnutrients loads nutrients, nutrient types, compounds and intake
// recommendations. Existing records are kept.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nutritrack/backend/config"
	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/infrastructure/database"
	"github.com/nutritrack/backend/internal/infrastructure/refdata"
	"github.com/nutritrack/backend/internal/pkg/logger"
	"github.com/nutritrack/backend/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	flags := pflag.NewFlagSet("loadnutrients", pflag.ExitOnError)
	file := flags.StringP("file", "f", "", "reference data YAML file (default: embedded data)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if err := run(cfg, *file, logg); err != nil {
		logg.Error("failed to load reference data", "file", *file, "error", err)
		logg.Sync()
		os.Exit(1)
	}
	logg.Sync()
}

func run(cfg *config.Config, file string, logg *logger.Logger) error {
	var (
		data *domain.ReferenceData
		err  error
	)
	if file != "" {
		data, err = refdata.ParseFile(file)
	} else {
		data, err = refdata.Default()
	}
	if err != nil {
		return fmt.Errorf("read reference data: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	loader := usecase.NewReferenceDataService(db,
		usecase.NewNutrientTypeService(db, logg),
		usecase.NewCompoundService(db, logg),
		logg)
	result, err := loader.Load(context.Background(), data)
	if err != nil {
		return err
	}

	logg.Info("reference data loaded",
		"nutrients", result.Nutrients,
		"recommendations", result.Recommendations,
		"types", result.Types,
		"components", result.Components,
		"compounds", result.Compounds)
	return nil
}
