// Package gate implements the ordered access-control pipeline every
// inbound command passes through before any work starts.
package gate

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/savegram-io/savegram/internal/models"
)

// Capability is the entitlement a command requires
type Capability int

const (
	// Any admits every registered, non-banned user
	Any Capability = iota
	// QuotaGated admits non-banned users who still have quota today
	QuotaGated
	// PaidOrAdmin admits paid subscribers and admins
	PaidOrAdmin
	// AdminOnly admits admins
	AdminOnly
)

// DenyReason classifies why a request was refused
type DenyReason string

const (
	DenyBanned           DenyReason = "banned"
	DenyInsufficientTier DenyReason = "insufficient_tier"
	DenyQuotaExceeded    DenyReason = "quota_exceeded"
)

// Decision is the outcome of the guard pipeline. Info carries a
// display-only note on Allow (e.g. remaining downloads); Message is the
// user-facing denial text on Deny.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
	Message string     `json:"message,omitempty"`
	Info    string     `json:"info,omitempty"`
}

// Store is the slice of the durable store the gate needs
type Store interface {
	UpsertProfile(userID int64, hint models.ProfileHint) error
	GetUser(userID int64) (*models.User, error)
}

// Ledger is the quota check the gate delegates to. The check is
// read-only; quota is consumed later, on confirmed success.
type Ledger interface {
	CanProceed(userID int64) (bool, string, error)
}

// request is the context one evaluation threads through its guards
type request struct {
	userID     int64
	hint       models.ProfileHint
	capability Capability
	user       *models.User
	info       string
}

// guard inspects the request and either denies it or passes it on.
// A nil Decision means the guard is satisfied.
type guard func(*request) (*Decision, error)

// Gate evaluates commands against the ordered guard pipeline:
// register, ban check, capability check, quota check. The order is
// fixed and each guard short-circuits on failure.
type Gate struct {
	store  Store
	ledger Ledger
	now    func() time.Time
	guards []guard
}

// New creates a gate over the given store and quota ledger
func New(store Store, ledger Ledger) *Gate {
	g := &Gate{
		store:  store,
		ledger: ledger,
		now:    time.Now,
	}
	g.guards = []guard{
		g.ensureRegistered,
		g.banCheck,
		g.capabilityCheck,
		g.quotaCheck,
	}
	return g
}

// Evaluate runs the pipeline for one inbound command. The registration
// guard always runs first, so every requester becomes a known profile
// even when a later guard denies the request.
func (g *Gate) Evaluate(userID int64, hint models.ProfileHint, capability Capability) (Decision, error) {
	req := &request{userID: userID, hint: hint, capability: capability}
	for _, guard := range g.guards {
		decision, err := guard(req)
		if err != nil {
			return Decision{}, err
		}
		if decision != nil {
			return *decision, nil
		}
	}
	return Decision{Allowed: true, Info: req.info}, nil
}

// ensureRegistered upserts the profile and loads the user row for the
// guards that follow. Only non-authoritative fields are patched.
func (g *Gate) ensureRegistered(req *request) (*Decision, error) {
	if err := g.store.UpsertProfile(req.userID, req.hint); err != nil {
		return nil, fmt.Errorf("failed to register user %d: %w", req.userID, err)
	}
	user, err := g.store.GetUser(req.userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Upsert raced a concurrent delete; treat as a fresh free user
			user = &models.User{ID: req.userID, Role: models.RoleFree}
		} else {
			return nil, fmt.Errorf("failed to load user %d: %w", req.userID, err)
		}
	}
	req.user = user
	return nil, nil
}

// banCheck precedes every entitlement check, including admin
func (g *Gate) banCheck(req *request) (*Decision, error) {
	if req.user.IsBanned {
		return &Decision{
			Allowed: false,
			Reason:  DenyBanned,
			Message: "You are banned from using this service.",
		}, nil
	}
	return nil, nil
}

func (g *Gate) capabilityCheck(req *request) (*Decision, error) {
	role := req.user.EffectiveRole(g.now())

	switch req.capability {
	case AdminOnly:
		if role != models.RoleAdmin {
			return &Decision{
				Allowed: false,
				Reason:  DenyInsufficientTier,
				Message: "This command is restricted to administrators only.",
			}, nil
		}
	case PaidOrAdmin:
		if role != models.RoleAdmin && role != models.RolePaid {
			return &Decision{
				Allowed: false,
				Reason:  DenyInsufficientTier,
				Message: "This feature is available for premium users only. Contact an admin to upgrade your account.",
			}, nil
		}
	}
	return nil, nil
}

// quotaCheck only applies to quota-gated commands and never consumes
// quota itself; the charge happens after a confirmed success.
func (g *Gate) quotaCheck(req *request) (*Decision, error) {
	if req.capability != QuotaGated {
		return nil, nil
	}

	allowed, info, err := g.ledger.CanProceed(req.userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &Decision{
			Allowed: false,
			Reason:  DenyQuotaExceeded,
			Message: info,
		}, nil
	}
	req.info = info
	return nil, nil
}
