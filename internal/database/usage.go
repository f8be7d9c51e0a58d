package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// GetUsageForDay returns the download count for one user on one day,
// zero when no row exists yet.
func (s *Store) GetUsageForDay(userID int64, day string) (int, error) {
	var query string
	if s.dbType == "postgres" {
		query = "SELECT files_downloaded FROM daily_usage WHERE user_id = $1 AND date = $2"
	} else {
		query = "SELECT files_downloaded FROM daily_usage WHERE user_id = ? AND date = ?"
	}

	var count int
	err := s.db.QueryRow(query, userID, day).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get daily usage for user %d: %w", userID, err)
	}
	return count, nil
}

// IncrementUsageForDay adds n to the user's counter for the given day,
// creating the row when absent. The upsert is a single statement so
// concurrent increments for the same (user, day) never lose updates;
// a read-then-write here would be a race.
func (s *Store) IncrementUsageForDay(userID int64, day string, n int) error {
	var query string
	if s.dbType == "postgres" {
		query = `INSERT INTO daily_usage (user_id, date, files_downloaded)
				VALUES ($1, $2, $3)
				ON CONFLICT (user_id, date)
				DO UPDATE SET files_downloaded = daily_usage.files_downloaded + EXCLUDED.files_downloaded`
	} else {
		query = `INSERT INTO daily_usage (user_id, date, files_downloaded)
				VALUES (?, ?, ?)
				ON CONFLICT (user_id, date)
				DO UPDATE SET files_downloaded = files_downloaded + excluded.files_downloaded`
	}

	if _, err := s.db.Exec(query, userID, day, n); err != nil {
		return fmt.Errorf("failed to increment usage for user %d: %w", userID, err)
	}
	return nil
}
