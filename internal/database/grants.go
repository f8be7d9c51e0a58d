package database

import (
	"fmt"
	"time"

	"github.com/savegram-io/savegram/internal/models"
)

// AppendAdminGrant records an admin promotion in the audit log. The log is
// the authoritative history; callers update the user's role separately.
func (s *Store) AppendAdminGrant(grant *models.AdminGrant) error {
	if grant.GrantedAt.IsZero() {
		grant.GrantedAt = time.Now()
	}

	var query string
	if s.dbType == "postgres" {
		query = "INSERT INTO admin_grants (id, user_id, granted_by, granted_at) VALUES ($1, $2, $3, $4)"
	} else {
		query = "INSERT INTO admin_grants (id, user_id, granted_by, granted_at) VALUES (?, ?, ?, ?)"
	}

	if _, err := s.db.Exec(query, grant.ID, grant.UserID, grant.GrantedBy, grant.GrantedAt); err != nil {
		return fmt.Errorf("failed to append admin grant for user %d: %w", grant.UserID, err)
	}
	return nil
}

// RemoveAdminGrant closes any open grants for the user by stamping a
// revocation time. Grant rows are never deleted; the log stays complete
// for audit.
func (s *Store) RemoveAdminGrant(userID int64) error {
	var query string
	if s.dbType == "postgres" {
		query = "UPDATE admin_grants SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL"
	} else {
		query = "UPDATE admin_grants SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL"
	}

	if _, err := s.db.Exec(query, time.Now(), userID); err != nil {
		return fmt.Errorf("failed to revoke admin grants for user %d: %w", userID, err)
	}
	return nil
}

// GetAdminGrants returns the full grant history for a user, newest first
func (s *Store) GetAdminGrants(userID int64) ([]*models.AdminGrant, error) {
	var query string
	if s.dbType == "postgres" {
		query = "SELECT id, user_id, granted_by, granted_at FROM admin_grants WHERE user_id = $1 ORDER BY granted_at DESC"
	} else {
		query = "SELECT id, user_id, granted_by, granted_at FROM admin_grants WHERE user_id = ? ORDER BY granted_at DESC"
	}

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []*models.AdminGrant
	for rows.Next() {
		g := &models.AdminGrant{}
		if err := rows.Scan(&g.ID, &g.UserID, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
