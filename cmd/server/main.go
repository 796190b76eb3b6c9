package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nutritrack/backend/config"
	httpDelivery "github.com/nutritrack/backend/internal/delivery/http"
	"github.com/nutritrack/backend/internal/infrastructure/database"
	"github.com/nutritrack/backend/internal/pkg/logger"
	"github.com/nutritrack/backend/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logg.Sync()

	logg.Info("starting NutriTrack backend",
		"version", "1.0.0",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"database", cfg.Database.Type)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logg.Fatal("failed to connect to database", "error", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		logg.Fatal("failed to migrate database", "error", err)
	}

	// Initialize usecase layer
	recommendations := usecase.NewRecommendationService(db, logg)
	aggregation := usecase.NewAggregationService(db, recommendations, logg)
	profiles := usecase.NewProfileService(db, logg)

	handler := httpDelivery.NewHandler(aggregation, recommendations, profiles, logg)
	router := httpDelivery.SetupRouter(cfg, handler, logg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logg.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logg.Error("forced shutdown", "error", err)
	}
	logg.Info("server stopped")
}
