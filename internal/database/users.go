package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/savegram-io/savegram/internal/models"
)

// UpsertProfile creates the user row if absent, otherwise patches only the
// non-authoritative profile fields. Role, ban flag, session credential and
// subscription state are never touched from this path.
func (s *Store) UpsertProfile(userID int64, hint models.ProfileHint) error {
	now := time.Now()

	var insert, update string
	if s.dbType == "postgres" {
		insert = `INSERT INTO users (user_id, username, first_name, last_name, joined_at, last_activity)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (user_id) DO NOTHING`
		update = `UPDATE users SET
				username = COALESCE(NULLIF($1, ''), username),
				first_name = COALESCE(NULLIF($2, ''), first_name),
				last_name = COALESCE(NULLIF($3, ''), last_name),
				last_activity = $4
				WHERE user_id = $5`
	} else {
		insert = `INSERT OR IGNORE INTO users (user_id, username, first_name, last_name, joined_at, last_activity)
				VALUES (?, ?, ?, ?, ?, ?)`
		update = `UPDATE users SET
				username = COALESCE(NULLIF(?, ''), username),
				first_name = COALESCE(NULLIF(?, ''), first_name),
				last_name = COALESCE(NULLIF(?, ''), last_name),
				last_activity = ?
				WHERE user_id = ?`
	}

	if _, err := s.db.Exec(insert, userID, hint.Username, hint.FirstName, hint.LastName, now, now); err != nil {
		return fmt.Errorf("failed to insert user %d: %w", userID, err)
	}
	if _, err := s.db.Exec(update, hint.Username, hint.FirstName, hint.LastName, now, userID); err != nil {
		return fmt.Errorf("failed to patch profile for user %d: %w", userID, err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(userID int64) (*models.User, error) {
	user := &models.User{}
	var query string
	if s.dbType == "postgres" {
		query = `SELECT user_id, username, first_name, last_name, role, subscription_end, is_banned, session_ref, joined_at, last_activity
				FROM users WHERE user_id = $1`
	} else {
		query = `SELECT user_id, username, first_name, last_name, role, subscription_end, is_banned, session_ref, joined_at, last_activity
				FROM users WHERE user_id = ?`
	}

	err := s.db.QueryRow(query, userID).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.Role,
		&user.SubscriptionEnd, &user.IsBanned, &user.SessionRef, &user.JoinedAt, &user.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetRole updates a user's role. For the paid role, subscriptionDays opens
// a subscription window ending that many days from now; any other role
// clears the window.
func (s *Store) SetRole(userID int64, role models.Role, subscriptionDays int) error {
	var subscriptionEnd *time.Time
	if role == models.RolePaid {
		end := time.Now().AddDate(0, 0, subscriptionDays)
		subscriptionEnd = &end
	}

	var query string
	if s.dbType == "postgres" {
		query = "UPDATE users SET role = $1, subscription_end = $2 WHERE user_id = $3"
	} else {
		query = "UPDATE users SET role = ?, subscription_end = ? WHERE user_id = ?"
	}

	result, err := s.db.Exec(query, role, subscriptionEnd, userID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetBanned flips the ban flag. Users are never deleted, only flagged.
func (s *Store) SetBanned(userID int64, banned bool) error {
	var query string
	if s.dbType == "postgres" {
		query = "UPDATE users SET is_banned = $1 WHERE user_id = $2"
	} else {
		query = "UPDATE users SET is_banned = ? WHERE user_id = ?"
	}

	result, err := s.db.Exec(query, banned, userID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetSessionRef stores or clears the user's session credential reference
func (s *Store) SetSessionRef(userID int64, ref *string) error {
	var query string
	if s.dbType == "postgres" {
		query = "UPDATE users SET session_ref = $1 WHERE user_id = $2"
	} else {
		query = "UPDATE users SET session_ref = ? WHERE user_id = ?"
	}

	result, err := s.db.Exec(query, ref, userID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListActiveUserIDs returns the IDs of all non-banned users
func (s *Store) ListActiveUserIDs() ([]int64, error) {
	var query string
	if s.dbType == "postgres" {
		query = "SELECT user_id FROM users WHERE is_banned = FALSE ORDER BY user_id"
	} else {
		query = "SELECT user_id FROM users WHERE is_banned = 0 ORDER BY user_id"
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
