// Package auth covers two concerns: bearer tokens identifying requesters
// on the command surface, and the session-provider contract the download
// paths use to reach the remote platform. The phone/OTP/2FA challenge
// flow that produces session credentials lives outside this service.
package auth

import (
	"database/sql"
	"errors"
	"log"

	"github.com/savegram-io/savegram/internal/models"
)

// Client is an opaque handle for a user's remote-platform session
type Client struct {
	UserID     int64
	SessionRef string
}

// Provider answers whether a user has a usable remote session and hands
// out the client handle for it.
type Provider interface {
	HasActiveSession(userID int64) bool
	ActiveClientFor(userID int64) (*Client, bool)
}

// UserStore is the slice of the durable store the provider needs
type UserStore interface {
	GetUser(userID int64) (*models.User, error)
}

// StoreProvider derives session state from the stored credential
// reference on the user row.
type StoreProvider struct {
	store UserStore
}

// NewStoreProvider creates a provider over the durable store
func NewStoreProvider(store UserStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// HasActiveSession reports whether the user has a stored session credential
func (p *StoreProvider) HasActiveSession(userID int64) bool {
	_, ok := p.ActiveClientFor(userID)
	return ok
}

// ActiveClientFor returns the session handle for a user, or false when
// the user has never logged in or has logged out.
func (p *StoreProvider) ActiveClientFor(userID int64) (*Client, bool) {
	user, err := p.store.GetUser(userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Error loading user %d for session check: %v", userID, err)
		}
		return nil, false
	}
	if !user.HasSession() {
		return nil, false
	}
	return &Client{UserID: userID, SessionRef: *user.SessionRef}, true
}
