package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/savegram-io/savegram/internal/config"
	"github.com/savegram-io/savegram/internal/database"
)

// Smoke test for the database layer: loads config, runs migrations and
// prints the service counters. Useful when standing up a new deployment.
func main() {
	configPath := flag.String("config", "app.yml", "Path to configuration file")
	flag.Parse()

	log.Printf("Testing database initialization...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Config loaded - DB type: %s, path: %s", cfg.Database.Type, cfg.Database.Path)

	if cfg.Database.Type == "sqlite" {
		dbDir := filepath.Dir(cfg.Database.Path)
		if stat, err := os.Stat(dbDir); err != nil {
			log.Printf("Cannot access %s: %v", dbDir, err)
		} else {
			log.Printf("Directory %s exists, mode: %v", dbDir, stat.Mode())
		}
	}

	store, err := database.Init(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	log.Printf("Database initialization successful!")

	stats, err := store.GetStats(time.Now())
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}

	log.Printf("Users: %d total, %d active, %d paid, %d admins", stats.TotalUsers, stats.ActiveUsers, stats.PaidUsers, stats.AdminCount)
	log.Printf("Downloads today: %d", stats.TodayDownloads)
	log.Printf("Database connection test successful!")
}
