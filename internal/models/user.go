package models

import (
	"time"
)

// Role classifies a user's entitlement tier
type Role string

const (
	RoleFree  Role = "free"  // Default tier, daily download limit applies
	RolePaid  Role = "paid"  // Paid subscription, unlimited downloads
	RoleAdmin Role = "admin" // Full access including admin commands
)

// User represents a user in the system
type User struct {
	ID              int64      `json:"id" db:"user_id"`
	Username        string     `json:"username" db:"username"`
	FirstName       string     `json:"first_name" db:"first_name"`
	LastName        string     `json:"last_name" db:"last_name"`
	Role            Role       `json:"role" db:"role"`
	SubscriptionEnd *time.Time `json:"subscription_end,omitempty" db:"subscription_end"`
	IsBanned        bool       `json:"is_banned" db:"is_banned"`
	SessionRef      *string    `json:"-" db:"session_ref"` // Session credential is never sent to client
	JoinedAt        time.Time  `json:"joined_at" db:"joined_at"`
	LastActivity    time.Time  `json:"last_activity" db:"last_activity"`
}

// EffectiveRole returns the role that entitlement checks should use.
// A paid role only counts while the subscription window is open; past
// expiry the user degrades to free without any stored-state mutation.
func (u *User) EffectiveRole(now time.Time) Role {
	switch u.Role {
	case RoleAdmin:
		return RoleAdmin
	case RolePaid:
		if u.SubscriptionEnd != nil && u.SubscriptionEnd.After(now) {
			return RolePaid
		}
		return RoleFree
	default:
		return RoleFree
	}
}

// HasSession returns true if the user has a stored session credential
func (u *User) HasSession() bool {
	return u.SessionRef != nil && *u.SessionRef != ""
}

// DisplayName returns the best available human-readable name
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		if u.LastName != "" {
			return u.FirstName + " " + u.LastName
		}
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Unknown"
}

// ProfileHint carries the non-authoritative profile fields that arrive
// with every inbound command. Registering a user patches only these.
type ProfileHint struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
