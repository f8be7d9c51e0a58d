// Package quota implements the per-user daily download ledger.
package quota

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/savegram-io/savegram/internal/models"
)

// Store is the slice of the durable store the ledger needs
type Store interface {
	GetUser(userID int64) (*models.User, error)
	GetUsageForDay(userID int64, day string) (int, error)
	IncrementUsageForDay(userID int64, day string, n int) error
}

// Ledger answers "may this user download now" and charges confirmed
// downloads against the daily counter. Checks are read-only; a check
// never consumes quota.
type Ledger struct {
	store Store
	limit int
	now   func() time.Time
}

// NewLedger creates a ledger enforcing dailyLimit for free-tier users
func NewLedger(store Store, dailyLimit int) *Ledger {
	return &Ledger{
		store: store,
		limit: dailyLimit,
		now:   time.Now,
	}
}

// GetUsage returns the recorded download count for a user on a day,
// zero when no row exists.
func (l *Ledger) GetUsage(userID int64, day string) (int, error) {
	return l.store.GetUsageForDay(userID, day)
}

// CanProceed decides whether the user may start another download. Paid
// and admin users are always allowed. Free users are allowed while under
// the daily limit; the returned info string reports the remainder for
// display, or the limit-reached message on denial.
func (l *Ledger) CanProceed(userID int64) (bool, string, error) {
	role := models.RoleFree
	user, err := l.store.GetUser(userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return false, "", fmt.Errorf("failed to load user %d: %w", userID, err)
		}
		// Unknown users are treated as free tier
	} else {
		role = user.EffectiveRole(l.now())
	}

	if role == models.RoleAdmin || role == models.RolePaid {
		return true, "", nil
	}

	usage, err := l.store.GetUsageForDay(userID, l.today())
	if err != nil {
		return false, "", err
	}
	if usage >= l.limit {
		return false, fmt.Sprintf("Daily limit reached (%d files). Upgrade to premium for unlimited downloads.", l.limit), nil
	}
	return true, fmt.Sprintf("Downloads remaining today: %d", l.limit-usage), nil
}

// Increment charges n downloads to today's counter. Callers invoke this
// only after a confirmed successful retrieval.
func (l *Ledger) Increment(userID int64, n int) error {
	return l.store.IncrementUsageForDay(userID, l.today(), n)
}

func (l *Ledger) today() string {
	return l.now().Format(models.DayFormat)
}
