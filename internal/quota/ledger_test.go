package quota

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savegram-io/savegram/internal/models"
)

// fakeStore is an in-memory quota.Store for ledger tests
type fakeStore struct {
	users map[int64]*models.User
	usage map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[int64]*models.User),
		usage: make(map[string]int),
	}
}

func usageKey(userID int64, day string) string {
	return fmt.Sprintf("%d/%s", userID, day)
}

func (f *fakeStore) GetUser(userID int64) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) GetUsageForDay(userID int64, day string) (int, error) {
	return f.usage[usageKey(userID, day)], nil
}

func (f *fakeStore) IncrementUsageForDay(userID int64, day string, n int) error {
	f.usage[usageKey(userID, day)] += n
	return nil
}

func TestCanProceedFreeTierBoundary(t *testing.T) {
	store := newFakeStore()
	store.users[1] = &models.User{ID: 1, Role: models.RoleFree}
	ledger := NewLedger(store, 5)

	today := time.Now().Format(models.DayFormat)

	// usage=4: one left
	store.usage[usageKey(1, today)] = 4
	allowed, info, err := ledger.CanProceed(1)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, "Downloads remaining today: 1", info)

	// usage=5: denied
	store.usage[usageKey(1, today)] = 5
	allowed, info, err = ledger.CanProceed(1)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "Daily limit reached (5 files). Upgrade to premium for unlimited downloads.", info)
}

func TestCanProceedPaidAndAdminUnlimited(t *testing.T) {
	store := newFakeStore()
	future := time.Now().AddDate(0, 0, 30)
	store.users[2] = &models.User{ID: 2, Role: models.RolePaid, SubscriptionEnd: &future}
	store.users[3] = &models.User{ID: 3, Role: models.RoleAdmin}
	ledger := NewLedger(store, 5)

	today := time.Now().Format(models.DayFormat)
	store.usage[usageKey(2, today)] = 100
	store.usage[usageKey(3, today)] = 100

	for _, id := range []int64{2, 3} {
		allowed, info, err := ledger.CanProceed(id)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Empty(t, info)
	}
}

func TestCanProceedExpiredSubscriptionDegradesToFree(t *testing.T) {
	store := newFakeStore()
	past := time.Now().AddDate(0, 0, -1)
	store.users[4] = &models.User{ID: 4, Role: models.RolePaid, SubscriptionEnd: &past}
	ledger := NewLedger(store, 5)

	today := time.Now().Format(models.DayFormat)
	store.usage[usageKey(4, today)] = 5

	allowed, _, err := ledger.CanProceed(4)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCanProceedUnknownUserTreatedAsFree(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store, 5)

	allowed, info, err := ledger.CanProceed(42)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, "Downloads remaining today: 5", info)
}

func TestIncrementChargesToday(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store, 5)

	require.NoError(t, ledger.Increment(7, 1))
	require.NoError(t, ledger.Increment(7, 1))

	today := time.Now().Format(models.DayFormat)
	count, err := ledger.GetUsage(7, today)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDateRolloverStartsFreshCounter(t *testing.T) {
	store := newFakeStore()
	store.users[8] = &models.User{ID: 8, Role: models.RoleFree}
	ledger := NewLedger(store, 5)

	// Pin the clock to one day, exhaust the quota
	day1 := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return day1 }
	require.NoError(t, ledger.Increment(8, 5))

	allowed, _, err := ledger.CanProceed(8)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Next day the counter implicitly resets
	ledger.now = func() time.Time { return day1.AddDate(0, 0, 1) }
	allowed, info, err := ledger.CanProceed(8)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, "Downloads remaining today: 5", info)
}
