package sessions

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fullwork/queue-bot/models"
	"fullwork/queue-bot/repositories"
	"fullwork/shared/storage"
)

type recordingNotifier struct {
	mu      sync.Mutex
	expired []*models.CodeSession
}

func (r *recordingNotifier) CodeExpired(_ context.Context, s *models.CodeSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, s)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expired)
}

type fixture struct {
	users    *repositories.UserRepository
	numbers  *repositories.NumberRepository
	manager  *Manager
	notifier *recordingNotifier
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	users, err := repositories.NewUserRepository(ctx, store)
	require.NoError(t, err)
	numbers, err := repositories.NewNumberRepository(ctx, store, users)
	require.NoError(t, err)

	m := NewManager(Config{TTL: ttl, Increase: 1.5, Decrease: 2}, users, numbers, zap.NewNop())
	n := &recordingNotifier{}
	m.SetNotifier(n)
	t.Cleanup(m.Close)

	return &fixture{users: users, numbers: numbers, manager: m, notifier: n}
}

func (f *fixture) queueNumber(t *testing.T, userID int64, number string) *models.NumberRecord {
	t.Helper()
	ctx := context.Background()
	_, err := f.users.GetOrCreate(ctx, userID, "")
	require.NoError(t, err)
	rec, err := f.numbers.Enqueue(ctx, userID, number)
	require.NoError(t, err)
	return rec
}

func TestGenerateCode(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestOpenRejectsSecondSession(t *testing.T) {
	f := newFixture(t, time.Hour)
	rec := f.queueNumber(t, 1, "79001234567")

	s, err := f.manager.Open(1, rec)
	require.NoError(t, err)
	assert.Len(t, s.Code, CodeLength)
	assert.NotEqual(t, uuid.Nil, s.ID)

	_, err = f.manager.Open(1, rec)
	assert.ErrorIs(t, err, ErrSessionAlreadyOpen)
	assert.Equal(t, 1, f.manager.Len())
}

func TestAcceptMovesToWorkAndRaisesReputation(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	rec := f.queueNumber(t, 1, "79001234567")

	_, err := f.manager.Open(1, rec)
	require.NoError(t, err)

	s, err := f.manager.Accept(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "79001234567", s.Number)

	u, err := f.users.Get(1)
	require.NoError(t, err)
	assert.InDelta(t, 11.5, u.Reputation, 1e-9)
	assert.Equal(t, []models.Partition{models.PartitionInWork}, f.numbers.Locate(rec.Number, 1))
	assert.Zero(t, f.manager.Len())

	_, err = f.manager.Accept(ctx, 1)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestSkipRemovesEverywhereAndLowersReputation(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	rec := f.queueNumber(t, 1, "79001234567")

	_, err := f.manager.Open(1, rec)
	require.NoError(t, err)
	_, err = f.manager.Skip(ctx, 1)
	require.NoError(t, err)

	u, err := f.users.Get(1)
	require.NoError(t, err)
	assert.InDelta(t, 8, u.Reputation, 1e-9)
	assert.Empty(t, f.numbers.Locate(rec.Number, 1))

	_, err = f.manager.Skip(ctx, 1)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestExpiryRemovesRecordAndNotifies(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	rec := f.queueNumber(t, 1, "79001234567")

	s, err := f.manager.Open(1, rec)
	require.NoError(t, err)
	require.True(t, f.manager.AttachMessage(1, s.ID, 77))

	require.Eventually(t, func() bool { return f.notifier.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, f.manager.Len())
	assert.Empty(t, f.numbers.Locate(rec.Number, 1))
	assert.Equal(t, 77, f.notifier.expired[0].MessageID)

	u, err := f.users.Get(1)
	require.NoError(t, err)
	assert.EqualValues(t, models.DefaultReputation, u.Reputation, "expiry does not touch reputation")
}

func TestExpiryAfterCloseIsNoop(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	rec := f.queueNumber(t, 1, "79001234567")

	s, err := f.manager.Open(1, rec)
	require.NoError(t, err)
	_, err = f.manager.Accept(ctx, 1)
	require.NoError(t, err)

	assert.False(t, f.manager.Expire(ctx, 1, s.ID))
	assert.Zero(t, f.notifier.count())
	assert.Equal(t, []models.Partition{models.PartitionInWork}, f.numbers.Locate(rec.Number, 1))

	other := f.queueNumber(t, 2, "79007654321")
	s2, err := f.manager.Open(2, other)
	require.NoError(t, err)
	_, err = f.manager.Skip(ctx, 2)
	require.NoError(t, err)
	assert.False(t, f.manager.Expire(ctx, 2, s2.ID))
	assert.Zero(t, f.notifier.count())
}

func TestStaleTimerDoesNotExpireNewerSession(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	first := f.queueNumber(t, 1, "79001111111")

	old, err := f.manager.Open(1, first)
	require.NoError(t, err)
	_, err = f.manager.Skip(ctx, 1)
	require.NoError(t, err)

	second := f.queueNumber(t, 1, "79002222222")
	current, err := f.manager.Open(1, second)
	require.NoError(t, err)

	assert.False(t, f.manager.Expire(ctx, 1, old.ID))
	active, ok := f.manager.Active(1)
	require.True(t, ok)
	assert.Equal(t, current.ID, active.ID)
	assert.Equal(t, []models.Partition{models.PartitionQueue}, f.numbers.Locate(second.Number, 1))
}

func TestAcceptRaceWithExpiry(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	rec := f.queueNumber(t, 1, "79001234567")

	s, err := f.manager.Open(1, rec)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var accepted, expired bool
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.manager.Accept(ctx, 1)
		accepted = err == nil
	}()
	go func() {
		defer wg.Done()
		expired = f.manager.Expire(ctx, 1, s.ID)
	}()
	wg.Wait()

	assert.True(t, accepted != expired, "exactly one outcome wins")
	assert.Len(t, f.numbers.Locate(rec.Number, 1), map[bool]int{true: 1, false: 0}[accepted])
}

func TestCancelAndAttach(t *testing.T) {
	f := newFixture(t, time.Hour)
	rec := f.queueNumber(t, 1, "79001234567")

	s, err := f.manager.Open(1, rec)
	require.NoError(t, err)
	assert.False(t, f.manager.AttachMessage(1, uuid.New(), 5))
	assert.False(t, f.manager.Cancel(1, uuid.New()))
	assert.True(t, f.manager.Cancel(1, s.ID))
	assert.False(t, f.manager.AttachMessage(1, s.ID, 5))

	assert.Equal(t, []models.Partition{models.PartitionQueue}, f.numbers.Locate(rec.Number, 1), "cancel leaves the record queued")
}

func TestAcceptAfterRecordFinalized(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	rec := f.queueNumber(t, 1, "79001234567")

	_, err := f.manager.Open(1, rec)
	require.NoError(t, err)
	_, err = f.numbers.MoveToBlocked(ctx, rec, "09:00")
	require.NoError(t, err)

	_, err = f.manager.Accept(ctx, 1)
	assert.ErrorIs(t, err, repositories.ErrNumberNotFound)
	assert.Zero(t, f.manager.Len())
	assert.Equal(t, []models.Partition{models.PartitionBlocked}, f.numbers.Locate(rec.Number, 1))

	u, err := f.users.Get(1)
	require.NoError(t, err)
	assert.EqualValues(t, models.DefaultReputation, u.Reputation)
}
