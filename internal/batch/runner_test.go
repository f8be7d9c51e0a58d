package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savegram-io/savegram/internal/auth"
	"github.com/savegram-io/savegram/internal/fetch"
	"github.com/savegram-io/savegram/internal/models"
	"github.com/savegram-io/savegram/internal/tasks"
)

type fakeService struct {
	mu          sync.Mutex
	descriptors map[int64]*fetch.Descriptor
	describeErr map[int64]error
	fetchErr    map[int64]error
	blockOn     int64      // Materialize for this item blocks until ctx is done
	started     chan int64 // signals when a blocking Materialize begins
	described   []int64
}

func newFakeService() *fakeService {
	return &fakeService{
		descriptors: make(map[int64]*fetch.Descriptor),
		describeErr: make(map[int64]error),
		fetchErr:    make(map[int64]error),
		started:     make(chan int64, 16),
	}
}

func (s *fakeService) Describe(_ context.Context, channelID string, itemID int64) (*fetch.Descriptor, error) {
	s.mu.Lock()
	s.described = append(s.described, itemID)
	s.mu.Unlock()
	if err, ok := s.describeErr[itemID]; ok {
		return nil, err
	}
	if d, ok := s.descriptors[itemID]; ok {
		return d, nil
	}
	return &fetch.Descriptor{ChannelID: channelID, ItemID: itemID, HasMedia: true, MediaKind: fetch.MediaVideo, SizeBytes: 100}, nil
}

func (s *fakeService) Materialize(ctx context.Context, desc *fetch.Descriptor) (*fetch.Artifact, error) {
	if err, ok := s.fetchErr[desc.ItemID]; ok {
		return nil, err
	}
	if s.blockOn == desc.ItemID {
		s.started <- desc.ItemID
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &fetch.Artifact{Path: "", SizeBytes: desc.SizeBytes, MediaKind: desc.MediaKind}, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	charges map[int64]int
	limit   int // 0 means unlimited
}

func (l *fakeLedger) CanProceed(userID int64) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit > 0 && l.charges[userID] >= l.limit {
		return false, "Daily limit reached", nil
	}
	return true, "", nil
}

func (l *fakeLedger) Increment(userID int64, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.charges == nil {
		l.charges = make(map[int64]int)
	}
	l.charges[userID] += n
	return nil
}

func (l *fakeLedger) total(userID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.charges[userID]
}

type sessionStub struct{ active bool }

func (s sessionStub) HasActiveSession(int64) bool { return s.active }

func (s sessionStub) ActiveClientFor(userID int64) (*auth.Client, bool) {
	if !s.active {
		return nil, false
	}
	return &auth.Client{UserID: userID, SessionRef: "test"}, true
}

func newTestRunner(svc *fakeService, ledger *fakeLedger, reg *tasks.Registry) *Runner {
	return NewRunner(svc, ledger, reg, nil, sessionStub{active: true}, Options{
		Pace:         2 * time.Millisecond,
		FreeCapBytes: 2048 << 20,
		PaidCapBytes: 4096 << 20,
	})
}

func freeUser(id int64) *models.User {
	return &models.User{ID: id, Role: models.RoleFree}
}

func TestValidateRange(t *testing.T) {
	_, err := ValidateRange(fetch.PostRef{ChannelID: "alpha", ItemID: 1}, fetch.PostRef{ChannelID: "beta", ItemID: 5})
	assert.Error(t, err)

	_, err = ValidateRange(fetch.PostRef{ChannelID: "alpha", ItemID: 9}, fetch.PostRef{ChannelID: "alpha", ItemID: 5})
	assert.Error(t, err)

	rng, err := ValidateRange(fetch.PostRef{ChannelID: "alpha", ItemID: 5}, fetch.PostRef{ChannelID: "alpha", ItemID: 9})
	require.NoError(t, err)
	assert.Equal(t, Range{Channel: "alpha", Start: 5, End: 9}, rng)

	// A single-item range is legal
	_, err = ValidateRange(fetch.PostRef{ChannelID: "alpha", ItemID: 5}, fetch.PostRef{ChannelID: "alpha", ItemID: 5})
	assert.NoError(t, err)
}

func TestRunMixedOutcomes(t *testing.T) {
	svc := newFakeService()
	svc.descriptors[100] = &fetch.Descriptor{ChannelID: "ch", ItemID: 100, HasMedia: true, MediaKind: fetch.MediaPhoto, SizeBytes: 10}
	svc.descriptors[101] = &fetch.Descriptor{ChannelID: "ch", ItemID: 101, HasText: true, TextContent: "hello"}
	svc.describeErr[102] = fetch.ErrContentAbsent
	svc.descriptors[103] = &fetch.Descriptor{ChannelID: "ch", ItemID: 103} // service message, nothing to save
	svc.descriptors[104] = &fetch.Descriptor{ChannelID: "ch", ItemID: 104, HasMedia: true, MediaKind: fetch.MediaVideo, SizeBytes: 10}

	ledger := &fakeLedger{}
	reg := tasks.NewRegistry()
	runner := newTestRunner(svc, ledger, reg)

	summary, err := runner.Run(context.Background(), freeUser(1), Range{Channel: "ch", Start: 100, End: 104})
	require.NoError(t, err)

	assert.Equal(t, Summary{Downloaded: 3, Skipped: 2, Failed: 0}, summary)
	assert.Equal(t, 3, ledger.total(1))
	assert.Equal(t, []int64{100, 101, 102, 103, 104}, svc.described)
	assert.Equal(t, 0, reg.Len())
}

func TestRunItemFailureDoesNotAbort(t *testing.T) {
	svc := newFakeService()
	svc.fetchErr[201] = fetch.ErrTransient

	ledger := &fakeLedger{}
	runner := newTestRunner(svc, ledger, tasks.NewRegistry())

	summary, err := runner.Run(context.Background(), freeUser(2), Range{Channel: "ch", Start: 200, End: 202})
	require.NoError(t, err)

	assert.Equal(t, Summary{Downloaded: 2, Skipped: 0, Failed: 1}, summary)
	// The failed item is never charged
	assert.Equal(t, 2, ledger.total(2))
}

func TestRunStopsWhenQuotaRunsOut(t *testing.T) {
	svc := newFakeService()

	// One download left before the cap
	ledger := &fakeLedger{limit: 5, charges: map[int64]int{8: 4}}
	runner := newTestRunner(svc, ledger, tasks.NewRegistry())

	summary, err := runner.Run(context.Background(), freeUser(8), Range{Channel: "ch", Start: 100, End: 109})
	assert.ErrorIs(t, err, fetch.ErrQuotaExceeded)

	// The last allowed item completed; nothing past the cap was charged
	assert.Equal(t, Summary{Downloaded: 1, Skipped: 0, Failed: 0}, summary)
	assert.Equal(t, 5, ledger.total(8))
}

func TestRunSkipsItemEmptyAtMaterialize(t *testing.T) {
	svc := newFakeService()
	svc.fetchErr[501] = fetch.ErrNoDownloadableContent

	ledger := &fakeLedger{}
	runner := newTestRunner(svc, ledger, tasks.NewRegistry())

	summary, err := runner.Run(context.Background(), freeUser(9), Range{Channel: "ch", Start: 500, End: 502})
	require.NoError(t, err)

	assert.Equal(t, Summary{Downloaded: 2, Skipped: 1, Failed: 0}, summary)
	assert.Equal(t, 2, ledger.total(9))
}

func TestDownloadOneQuotaExhausted(t *testing.T) {
	svc := newFakeService()

	ledger := &fakeLedger{limit: 5, charges: map[int64]int{8: 5}}
	runner := newTestRunner(svc, ledger, tasks.NewRegistry())

	_, err := runner.DownloadOne(context.Background(), freeUser(8), fetch.PostRef{ChannelID: "ch", ItemID: 1})
	assert.ErrorIs(t, err, fetch.ErrQuotaExceeded)
	assert.Equal(t, 5, ledger.total(8))
}

func TestRunSizeCapCountsAsFailed(t *testing.T) {
	svc := newFakeService()
	svc.descriptors[300] = &fetch.Descriptor{ChannelID: "ch", ItemID: 300, HasMedia: true, SizeBytes: 4096 << 20}

	ledger := &fakeLedger{}
	runner := newTestRunner(svc, ledger, tasks.NewRegistry())

	summary, err := runner.Run(context.Background(), freeUser(3), Range{Channel: "ch", Start: 300, End: 300})
	require.NoError(t, err)

	assert.Equal(t, Summary{Downloaded: 0, Skipped: 0, Failed: 1}, summary)
	assert.Equal(t, 0, ledger.total(3))
}

func TestRunPaidUserGetsLargerCap(t *testing.T) {
	svc := newFakeService()
	svc.descriptors[310] = &fetch.Descriptor{ChannelID: "ch", ItemID: 310, HasMedia: true, SizeBytes: 3000 << 20}

	ledger := &fakeLedger{}
	runner := newTestRunner(svc, ledger, tasks.NewRegistry())

	future := time.Now().Add(24 * time.Hour)
	paid := &models.User{ID: 4, Role: models.RolePaid, SubscriptionEnd: &future}
	summary, err := runner.Run(context.Background(), paid, Range{Channel: "ch", Start: 310, End: 310})
	require.NoError(t, err)

	assert.Equal(t, Summary{Downloaded: 1}, summary)
}

func TestRunCanceledMidBatch(t *testing.T) {
	svc := newFakeService()
	svc.blockOn = 102

	ledger := &fakeLedger{}
	reg := tasks.NewRegistry()
	runner := newTestRunner(svc, ledger, reg)

	type result struct {
		summary Summary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := runner.Run(context.Background(), freeUser(5), Range{Channel: "ch", Start: 100, End: 104})
		done <- result{s, err}
	}()

	select {
	case <-svc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("item 102 never started")
	}
	reg.CancelAll()

	select {
	case res := <-done:
		assert.ErrorIs(t, res.err, context.Canceled)
		// Items 100 and 101 finished before the cancel landed
		assert.Equal(t, Summary{Downloaded: 2, Skipped: 0, Failed: 0}, res.summary)
		assert.Equal(t, 2, ledger.total(5))
		assert.Equal(t, 0, reg.Len())
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRunRequiresSession(t *testing.T) {
	runner := NewRunner(newFakeService(), &fakeLedger{}, tasks.NewRegistry(), nil, sessionStub{active: false}, Options{})

	_, err := runner.Run(context.Background(), freeUser(6), Range{Channel: "ch", Start: 1, End: 1})
	assert.ErrorIs(t, err, fetch.ErrAuthExpired)

	_, err = runner.DownloadOne(context.Background(), freeUser(6), fetch.PostRef{ChannelID: "ch", ItemID: 1})
	assert.ErrorIs(t, err, fetch.ErrAuthExpired)
}

func TestDownloadOne(t *testing.T) {
	svc := newFakeService()
	svc.descriptors[400] = &fetch.Descriptor{ChannelID: "ch", ItemID: 400, HasMedia: true, MediaKind: fetch.MediaAudio, SizeBytes: 50}
	svc.descriptors[401] = &fetch.Descriptor{ChannelID: "ch", ItemID: 401}

	ledger := &fakeLedger{}
	reg := tasks.NewRegistry()
	runner := newTestRunner(svc, ledger, reg)

	res, err := runner.DownloadOne(context.Background(), freeUser(7), fetch.PostRef{ChannelID: "ch", ItemID: 400})
	require.NoError(t, err)
	assert.Equal(t, int64(400), res.Descriptor.ItemID)
	assert.Equal(t, 1, ledger.total(7))
	assert.Equal(t, 0, reg.Len())

	// Nothing downloadable at the target
	_, err = runner.DownloadOne(context.Background(), freeUser(7), fetch.PostRef{ChannelID: "ch", ItemID: 401})
	assert.ErrorIs(t, err, fetch.ErrNoDownloadableContent)
	assert.Equal(t, 1, ledger.total(7))
}
