package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/savegram-io/savegram/internal/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"
)

// Store handles all durable persistence for users, usage, grants and
// broadcasts. One instance is shared process-wide.
type Store struct {
	db     *sql.DB
	dbType string
}

// Init opens the database connection, runs migrations and returns the store
func Init(cfg *config.Config) (*Store, error) {
	log.Printf("Initializing database, type: %s", cfg.Database.Type)

	var db *sql.DB
	var err error

	switch cfg.Database.Type {
	case "postgres":
		db, err = initPostgreSQL(cfg)
	case "sqlite", "":
		db, err = initSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}

	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}

	// Run migrations
	if err = RunMigrations(db, cfg.Database.Type); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	log.Printf("Database initialized successfully")
	return &Store{db: db, dbType: cfg.Database.Type}, nil
}

// New wraps an already-open connection; used by tests
func New(db *sql.DB, dbType string) *Store {
	return &Store{db: db, dbType: dbType}
}

// Close closes the underlying connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initPostgreSQL initializes PostgreSQL connection
func initPostgreSQL(cfg *config.Config) (*sql.DB, error) {
	log.Printf("Initializing PostgreSQL connection to %s:%s/%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	// Build connection string
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %v", err)
	}

	// Configure connection pool
	if cfg.Database.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxConns)
	}
	if cfg.Database.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdle)
	}
	if cfg.Database.ConnMaxLifetime != "" && cfg.Database.ConnMaxLifetime != "0" {
		if duration, err := time.ParseDuration(cfg.Database.ConnMaxLifetime); err == nil {
			db.SetConnMaxLifetime(duration)
		}
	}

	return db, nil
}

// initSQLite initializes SQLite connection
func initSQLite(cfg *config.Config) (*sql.DB, error) {
	log.Printf("Initializing SQLite connection at path: %s", cfg.Database.Path)

	// Ensure data directory exists
	dataDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	// Single writer at a time keeps the usage upsert serialized; the busy
	// timeout makes concurrent request handlers wait instead of erroring.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", cfg.Database.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %v", err)
	}

	return db, nil
}
