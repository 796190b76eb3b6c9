// Command fdcimport loads FoodData Central foods and nutrient amounts.
//
// With --fdc-id it fetches foods from the FDC API. Otherwise it reads
// nutrient.csv, food.csv and food_nutrient.csv from the configured data dir.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nutritrack/backend/config"
	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/infrastructure/cache"
	"github.com/nutritrack/backend/internal/infrastructure/database"
	"github.com/nutritrack/backend/internal/infrastructure/fdc"
	"github.com/nutritrack/backend/internal/pkg/logger"
	"github.com/nutritrack/backend/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	flags := pflag.NewFlagSet("fdcimport", pflag.ExitOnError)
	fdcIDs := flags.IntSlice("fdc-id", nil, "import foods from the FDC API instead of CSV files")
	flags.String("fdc.data_dir", "", "directory holding the FDC CSV files")
	flags.Int("fdc.batch_size", 0, "rows buffered between writes (0 writes once)")
	flags.String("fdc.api_key", "", "FDC API key")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if err := run(cfg, *fdcIDs, logg); err != nil {
		logg.Error("import failed", "error", err)
		logg.Sync()
		os.Exit(1)
	}
	logg.Sync()
}

// run performs the import. Deferred cleanup runs before main exits.
func run(cfg *config.Config, fdcIDs []int, logg *logger.Logger) error {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	importer, err := usecase.NewImportService(db, usecase.NewCompoundService(db, logg), logg, reconcileConfig(cfg.FDC))
	if err != nil {
		return fmt.Errorf("invalid FDC configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(fdcIDs) > 0 {
		foods := cache.NewMemoryCache[int, *domain.FDCFoodDetails](cfg.FDC.CacheTTL)
		defer foods.Close()
		client := fdc.NewClient(cfg.FDC.APIKey, cfg.FDC.BaseURL, cfg.RateLimit.FDC, logg)
		client.SetCache(foods)

		for _, id := range fdcIDs {
			result, err := importer.ImportByID(ctx, client, id)
			if err != nil {
				return fmt.Errorf("import fdc id %d: %w", id, err)
			}
			logResult(logg, result)
		}
		return nil
	}

	result, err := importDir(ctx, importer, cfg.FDC.DataDir, logg)
	if err != nil {
		return err
	}
	logResult(logg, result)
	return nil
}

func logResult(logg *logger.Logger, result *usecase.ImportResult) {
	logg.Info("import finished",
		"run_id", result.RunID,
		"written", result.Written,
		"skipped", result.Skipped,
		"nonstandard", result.Nonstandard,
		"compounds", result.Compounds)
}

func importDir(ctx context.Context, importer *usecase.ImportService, dir string, logg *logger.Logger) (*usecase.ImportResult, error) {
	ds, err := fdc.OpenDataset(dir)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	created, err := importer.ImportFoods(ctx, ds.Foods)
	if err != nil {
		return nil, err
	}
	logg.Info("imported foods", "dir", dir, "read", len(ds.Foods), "created", created)

	return importer.ImportFoodNutrients(ctx, ds.Nutrients, ds.FoodNutrients)
}

// reconcileConfig maps the FDC config onto the importer. Empty lists keep the
// importer defaults.
func reconcileConfig(cfg config.FDCConfig) usecase.ReconcileConfig {
	rc := usecase.ReconcileConfig{
		Datasets:  cfg.Datasets,
		BatchSize: cfg.BatchSize,
	}
	if len(cfg.ExceptionIDs) > 0 {
		rc.ExceptionIDs = cfg.ExceptionIDs
	}
	if len(cfg.PreferredIDs) > 0 {
		rc.PreferredIDs = cfg.PreferredIDs
	}
	if len(cfg.AdditiveIDs) > 0 {
		rc.AdditiveIDs = cfg.AdditiveIDs
	}
	return rc
}
