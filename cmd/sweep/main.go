// cmd/sweep runs the overdue sweep once and exits. Useful from cron or
// a one-off job when the server's periodic sweep is disabled.
package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/clubmaster/clubmaster/internal/config"
	"github.com/clubmaster/clubmaster/internal/database"
	"github.com/clubmaster/clubmaster/internal/service"
	"github.com/clubmaster/clubmaster/pkg/credit"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	entClient, err := database.NewEntClient(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer entClient.Close()

	ledger := service.NewLedgerUpdater(entClient)
	engine := service.NewCreditEngine(entClient, credit.FallbackEstimator{}, ledger, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	flagged, err := engine.RunOverdueSweep(ctx, time.Now())
	if err != nil {
		log.Fatalf("Overdue sweep failed: %v", err)
	}
	log.Printf("✅ Overdue sweep done, %d task(s) flagged", flagged)
}
