package database

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savegram-io/savegram/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db, "sqlite"))
	return New(db, "sqlite")
}

func TestUpsertProfilePreservesAuthoritativeFields(t *testing.T) {
	store := newTestStore(t)

	err := store.UpsertProfile(100, models.ProfileHint{Username: "alice", FirstName: "Alice"})
	require.NoError(t, err)

	// Promote, ban and attach a session out of band
	require.NoError(t, store.SetRole(100, models.RolePaid, 30))
	require.NoError(t, store.SetBanned(100, true))
	ref := "session-abc"
	require.NoError(t, store.SetSessionRef(100, &ref))

	// Re-register with a changed display name
	err = store.UpsertProfile(100, models.ProfileHint{Username: "alice_new", FirstName: "Alice", LastName: "Smith"})
	require.NoError(t, err)

	user, err := store.GetUser(100)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", user.Username)
	assert.Equal(t, "Smith", user.LastName)
	assert.Equal(t, models.RolePaid, user.Role)
	assert.True(t, user.IsBanned)
	require.NotNil(t, user.SessionRef)
	assert.Equal(t, "session-abc", *user.SessionRef)
	assert.NotNil(t, user.SubscriptionEnd)
}

func TestUpsertProfileEmptyHintKeepsExistingName(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertProfile(101, models.ProfileHint{Username: "bob"}))
	require.NoError(t, store.UpsertProfile(101, models.ProfileHint{}))

	user, err := store.GetUser(101)
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
}

func TestGetUserNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetUser(999)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSetRoleSubscriptionWindow(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertProfile(102, models.ProfileHint{}))

	require.NoError(t, store.SetRole(102, models.RolePaid, 30))
	user, err := store.GetUser(102)
	require.NoError(t, err)
	require.NotNil(t, user.SubscriptionEnd)
	assert.True(t, user.SubscriptionEnd.After(time.Now().AddDate(0, 0, 29)))

	// Demoting back to free clears the window
	require.NoError(t, store.SetRole(102, models.RoleFree, 0))
	user, err = store.GetUser(102)
	require.NoError(t, err)
	assert.Nil(t, user.SubscriptionEnd)

	// Unknown user
	assert.ErrorIs(t, store.SetRole(55555, models.RolePaid, 30), sql.ErrNoRows)
}

func TestUsageDefaultsToZero(t *testing.T) {
	store := newTestStore(t)

	count, err := store.GetUsageForDay(103, "2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestIncrementUsageForDay(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertProfile(104, models.ProfileHint{}))

	day := "2026-08-29"
	require.NoError(t, store.IncrementUsageForDay(104, day, 1))
	require.NoError(t, store.IncrementUsageForDay(104, day, 2))

	count, err := store.GetUsageForDay(104, day)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// A different day starts a fresh row
	count, err = store.GetUsageForDay(104, "2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestIncrementUsageConcurrent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertProfile(105, models.ProfileHint{}))

	day := "2026-08-29"
	const workers = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.IncrementUsageForDay(105, day, 1)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	count, err := store.GetUsageForDay(105, day)
	require.NoError(t, err)
	assert.Equal(t, workers, count)
}

func TestAdminGrantAuditLog(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertProfile(106, models.ProfileHint{}))

	grant := &models.AdminGrant{ID: uuid.NewString(), UserID: 106, GrantedBy: 1}
	require.NoError(t, store.AppendAdminGrant(grant))

	grants, err := store.GetAdminGrants(106)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, int64(1), grants[0].GrantedBy)

	// Revocation stamps the row but keeps it
	require.NoError(t, store.RemoveAdminGrant(106))
	grants, err = store.GetAdminGrants(106)
	require.NoError(t, err)
	assert.Len(t, grants, 1)
}

func TestBroadcastRecordAndStats(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertProfile(107, models.ProfileHint{}))
	require.NoError(t, store.UpsertProfile(108, models.ProfileHint{}))
	require.NoError(t, store.SetRole(108, models.RolePaid, 30))
	require.NoError(t, store.SetBanned(107, true))

	rec := &models.BroadcastRecord{Message: "maintenance tonight", SentBy: 108, TotalRecipients: 2, SuccessCount: 1}
	require.NoError(t, store.AppendBroadcastRecord(rec))
	assert.NotZero(t, rec.ID)

	now := time.Now()
	require.NoError(t, store.IncrementUsageForDay(108, now.Format(models.DayFormat), 4))

	stats, err := store.GetStats(now)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 2, stats.ActiveUsers)
	assert.Equal(t, 1, stats.PaidUsers)
	assert.Equal(t, 0, stats.AdminCount)
	assert.Equal(t, 4, stats.TodayDownloads)

	// Banned users drop out of the broadcast recipient list
	ids, err := store.ListActiveUserIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{108}, ids)
}
