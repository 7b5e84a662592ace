package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/player-valuation/internal/identity"
	"github.com/jstittsworth/player-valuation/internal/models"
	"github.com/jstittsworth/player-valuation/internal/providers"
	"github.com/jstittsworth/player-valuation/pkg/config"
	"github.com/jstittsworth/player-valuation/pkg/database"
	"github.com/jstittsworth/player-valuation/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|seed <idmap.csv>]")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	command := os.Args[1]

	switch command {
	case "up":
		if err := runMigrations(db); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations completed successfully")

	case "down":
		if err := db.Migrator().DropTable(models.AllModels()...); err != nil {
			logrus.Fatalf("Failed to drop tables: %v", err)
		}
		logrus.Info("Tables dropped successfully")

	case "seed":
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate seed <idmap.csv>")
		}
		n, err := seedIdentity(db, os.Args[2])
		if err != nil {
			logrus.Fatalf("Failed to seed identity mappings: %v", err)
		}
		logrus.WithField("mappings", n).Info("Identity mappings seeded successfully")

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

func runMigrations(db *database.DB) error {
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}
	return nil
}

// seedIdentity loads a local copy of the ID map, for environments that cannot reach the download
func seedIdentity(db *database.DB, path string) (int, error) {
	if err := runMigrations(db); err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open id map: %w", err)
	}
	defer f.Close()

	mappings, stats, err := providers.ParseIDMap(f, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	logger.WithSource("idmap_file", path).WithFields(logrus.Fields{
		"rows":    stats.Rows,
		"skipped": stats.Skipped,
	}).Info("Parsed id map")

	store := identity.NewStore(db, logger.GetLogger())
	return store.Upsert(context.Background(), mappings)
}
