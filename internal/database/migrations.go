package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all database migrations
func GetMigrations(dbType string) []Migration {
	if dbType == "postgres" {
		return getPostgresMigrations()
	}
	return getSQLiteMigrations()
}

// getPostgresMigrations returns PostgreSQL migrations
func getPostgresMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				user_id BIGINT PRIMARY KEY,
				username VARCHAR(255) NOT NULL DEFAULT '',
				first_name VARCHAR(255) NOT NULL DEFAULT '',
				last_name VARCHAR(255) NOT NULL DEFAULT '',
				role VARCHAR(20) NOT NULL DEFAULT 'free',
				subscription_end TIMESTAMP WITH TIME ZONE,
				is_banned BOOLEAN NOT NULL DEFAULT FALSE,
				session_ref TEXT,
				joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				last_activity TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
		{
			Version:     2,
			Description: "Create daily_usage table",
			SQL: `CREATE TABLE IF NOT EXISTS daily_usage (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(user_id),
				date VARCHAR(10) NOT NULL,
				files_downloaded INTEGER NOT NULL DEFAULT 0,
				UNIQUE(user_id, date)
			)`,
		},
		{
			Version:     3,
			Description: "Create admin_grants table",
			SQL: `CREATE TABLE IF NOT EXISTS admin_grants (
				id VARCHAR(36) PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(user_id),
				granted_by BIGINT NOT NULL,
				granted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				revoked_at TIMESTAMP WITH TIME ZONE
			)`,
		},
		{
			Version:     4,
			Description: "Create broadcasts table",
			SQL: `CREATE TABLE IF NOT EXISTS broadcasts (
				id BIGSERIAL PRIMARY KEY,
				message TEXT NOT NULL,
				sent_by BIGINT NOT NULL,
				sent_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				total_recipients INTEGER NOT NULL,
				success_count INTEGER NOT NULL
			)`,
		},
		{
			Version:     5,
			Description: "Create indexes",
			SQL: `CREATE INDEX IF NOT EXISTS idx_daily_usage_user_date ON daily_usage(user_id, date);
				CREATE INDEX IF NOT EXISTS idx_admin_grants_user_id ON admin_grants(user_id);
				CREATE INDEX IF NOT EXISTS idx_users_last_activity ON users(last_activity);`,
		},
	}
}

// getSQLiteMigrations returns SQLite migrations
func getSQLiteMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				user_id INTEGER PRIMARY KEY,
				username TEXT NOT NULL DEFAULT '',
				first_name TEXT NOT NULL DEFAULT '',
				last_name TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL DEFAULT 'free',
				subscription_end DATETIME,
				is_banned BOOLEAN NOT NULL DEFAULT 0,
				session_ref TEXT,
				joined_at DATETIME NOT NULL,
				last_activity DATETIME NOT NULL
			)`,
		},
		{
			Version:     2,
			Description: "Create daily_usage table",
			SQL: `CREATE TABLE IF NOT EXISTS daily_usage (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				date TEXT NOT NULL,
				files_downloaded INTEGER NOT NULL DEFAULT 0,
				UNIQUE(user_id, date),
				FOREIGN KEY (user_id) REFERENCES users(user_id)
			)`,
		},
		{
			Version:     3,
			Description: "Create admin_grants table",
			SQL: `CREATE TABLE IF NOT EXISTS admin_grants (
				id TEXT PRIMARY KEY,
				user_id INTEGER NOT NULL,
				granted_by INTEGER NOT NULL,
				granted_at DATETIME NOT NULL,
				revoked_at DATETIME,
				FOREIGN KEY (user_id) REFERENCES users(user_id)
			)`,
		},
		{
			Version:     4,
			Description: "Create broadcasts table",
			SQL: `CREATE TABLE IF NOT EXISTS broadcasts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				message TEXT NOT NULL,
				sent_by INTEGER NOT NULL,
				sent_at DATETIME NOT NULL,
				total_recipients INTEGER NOT NULL,
				success_count INTEGER NOT NULL
			)`,
		},
		{
			Version:     5,
			Description: "Create indexes",
			SQL: `CREATE INDEX IF NOT EXISTS idx_daily_usage_user_date ON daily_usage(user_id, date);
				CREATE INDEX IF NOT EXISTS idx_admin_grants_user_id ON admin_grants(user_id);
				CREATE INDEX IF NOT EXISTS idx_users_last_activity ON users(last_activity);`,
		},
	}
}

// createMigrationsTable creates the migrations tracking table
func createMigrationsTable(db *sql.DB, dbType string) error {
	var query string
	if dbType == "postgres" {
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`
	} else {
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	}

	_, err := db.Exec(query)
	return err
}

// getAppliedMigrations returns the list of applied migration versions
func getAppliedMigrations(db *sql.DB) (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return applied, err
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return applied, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// recordMigration records that a migration has been applied
func recordMigration(db *sql.DB, dbType string, version int) error {
	var query string
	if dbType == "postgres" {
		query = "INSERT INTO schema_migrations (version) VALUES ($1)"
	} else {
		query = "INSERT INTO schema_migrations (version) VALUES (?)"
	}
	_, err := db.Exec(query, version)
	return err
}

// RunMigrations runs all pending migrations
func RunMigrations(db *sql.DB, dbType string) error {
	// Create migrations table
	if err := createMigrationsTable(db, dbType); err != nil {
		return fmt.Errorf("failed to create migrations table: %v", err)
	}

	// Get applied migrations
	applied, err := getAppliedMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %v", err)
	}

	// Apply pending migrations
	for _, migration := range GetMigrations(dbType) {
		if applied[migration.Version] {
			continue
		}

		log.Printf("Applying migration %d: %s", migration.Version, migration.Description)

		// Split SQL by semicolon and execute each statement
		statements := strings.Split(migration.SQL, ";")
		for _, stmt := range statements {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}

			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to apply migration %d: %v", migration.Version, err)
			}
		}

		// Record migration as applied
		if err := recordMigration(db, dbType, migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %v", migration.Version, err)
		}
	}

	return nil
}
