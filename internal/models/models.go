package models

import (
	"time"
)

// DayFormat is the canonical key format for per-day usage rows
const DayFormat = "2006-01-02"

// DailyUsage tracks downloads for one user on one day. Rows are unique
// per (user, date), created lazily on the first download of the day and
// only ever incremented; date rollover starts a fresh row.
type DailyUsage struct {
	ID         int64  `json:"id" db:"id"`
	UserID     int64  `json:"user_id" db:"user_id"`
	Date       string `json:"date" db:"date"`
	Downloaded int    `json:"downloaded" db:"files_downloaded"`
}

// AdminGrant is an append-only audit record of an admin promotion.
// The user's role field is the cached derivation; this log is the
// authoritative history and is never rewritten.
type AdminGrant struct {
	ID        string    `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	GrantedBy int64     `json:"granted_by" db:"granted_by"`
	GrantedAt time.Time `json:"granted_at" db:"granted_at"`
}

// BroadcastRecord is a write-once log entry for an admin broadcast
type BroadcastRecord struct {
	ID              int64     `json:"id" db:"id"`
	Message         string    `json:"message" db:"message"`
	SentBy          int64     `json:"sent_by" db:"sent_by"`
	SentAt          time.Time `json:"sent_at" db:"sent_at"`
	TotalRecipients int       `json:"total_recipients" db:"total_recipients"`
	SuccessCount    int       `json:"success_count" db:"success_count"`
}

// Stats summarizes service-wide counters for the admin stats command
type Stats struct {
	TotalUsers     int `json:"total_users"`
	ActiveUsers    int `json:"active_users"` // active within the last 7 days
	PaidUsers      int `json:"paid_users"`
	AdminCount     int `json:"admin_count"`
	TodayDownloads int `json:"today_downloads"`
}
