package database

import (
	"fmt"
	"time"

	"github.com/savegram-io/savegram/internal/models"
)

// AppendBroadcastRecord stores a write-once broadcast log entry
func (s *Store) AppendBroadcastRecord(rec *models.BroadcastRecord) error {
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}

	if s.dbType == "postgres" {
		err := s.db.QueryRow(
			`INSERT INTO broadcasts (message, sent_by, sent_at, total_recipients, success_count)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			rec.Message, rec.SentBy, rec.SentAt, rec.TotalRecipients, rec.SuccessCount,
		).Scan(&rec.ID)
		if err != nil {
			return fmt.Errorf("failed to append broadcast record: %w", err)
		}
		return nil
	}

	result, err := s.db.Exec(
		`INSERT INTO broadcasts (message, sent_by, sent_at, total_recipients, success_count)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Message, rec.SentBy, rec.SentAt, rec.TotalRecipients, rec.SuccessCount,
	)
	if err != nil {
		return fmt.Errorf("failed to append broadcast record: %w", err)
	}
	rec.ID, err = result.LastInsertId()
	return err
}

// GetStats collects service-wide counters for the admin stats command
func (s *Store) GetStats(now time.Time) (*models.Stats, error) {
	stats := &models.Stats{}
	weekAgo := now.AddDate(0, 0, -7)
	today := now.Format(models.DayFormat)

	type counter struct {
		dest     *int
		postgres string
		sqlite   string
		args     []interface{}
	}

	counters := []counter{
		{
			dest:     &stats.TotalUsers,
			postgres: "SELECT COUNT(*) FROM users",
			sqlite:   "SELECT COUNT(*) FROM users",
		},
		{
			dest:     &stats.ActiveUsers,
			postgres: "SELECT COUNT(*) FROM users WHERE last_activity > $1",
			sqlite:   "SELECT COUNT(*) FROM users WHERE last_activity > ?",
			args:     []interface{}{weekAgo},
		},
		{
			dest:     &stats.PaidUsers,
			postgres: "SELECT COUNT(*) FROM users WHERE role = 'paid' AND subscription_end > $1",
			sqlite:   "SELECT COUNT(*) FROM users WHERE role = 'paid' AND subscription_end > ?",
			args:     []interface{}{now},
		},
		{
			dest:     &stats.AdminCount,
			postgres: "SELECT COUNT(*) FROM users WHERE role = 'admin'",
			sqlite:   "SELECT COUNT(*) FROM users WHERE role = 'admin'",
		},
		{
			dest:     &stats.TodayDownloads,
			postgres: "SELECT COALESCE(SUM(files_downloaded), 0) FROM daily_usage WHERE date = $1",
			sqlite:   "SELECT COALESCE(SUM(files_downloaded), 0) FROM daily_usage WHERE date = ?",
			args:     []interface{}{today},
		},
	}

	for _, c := range counters {
		query := c.sqlite
		if s.dbType == "postgres" {
			query = c.postgres
		}
		if err := s.db.QueryRow(query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to collect stats: %w", err)
		}
	}

	return stats, nil
}
