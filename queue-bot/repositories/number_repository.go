package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"fullwork/queue-bot/models"
	"fullwork/shared/storage"
)

var (
	ErrNumberNotFound = errors.New("номер не найден")
	ErrAlreadyQueued  = errors.New("номер уже в очереди")
)

// ReputationSource supplies the score snapshotted into new queue entries.
type ReputationSource interface {
	Reputation(userID int64) float64
}

// NumberRepository holds the queue and the three owner-keyed partitions.
// The queue is kept sorted by reputation snapshot, highest first; records
// with equal snapshots stay in insertion order.
//
// Records are matched by the exact (number, owner) pair. "+7 900 123 45 67"
// and "79001234567" are different records.
type NumberRepository struct {
	mu    sync.RWMutex
	store storage.Store
	rep   ReputationSource
	doc   *models.NumbersDocument
	now   func() time.Time
}

func NewNumberRepository(ctx context.Context, store storage.Store, rep ReputationSource) (*NumberRepository, error) {
	doc := models.NewNumbersDocument()
	if err := store.Load(ctx, storage.NumbersDocument, doc); err != nil {
		return nil, err
	}
	if doc.Queue == nil {
		doc.Queue = []*models.NumberRecord{}
	}
	for _, p := range []*map[string][]*models.NumberRecord{&doc.InWork, &doc.Successful, &doc.Blocked} {
		if *p == nil {
			*p = map[string][]*models.NumberRecord{}
		}
	}
	return &NumberRepository{store: store, rep: rep, doc: doc, now: time.Now}, nil
}

func (r *NumberRepository) Enqueue(ctx context.Context, userID int64, number string) (*models.NumberRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if indexOf(r.doc.Queue, number, userID) >= 0 {
		return nil, ErrAlreadyQueued
	}

	rec := &models.NumberRecord{
		Number:     number,
		UserID:     userID,
		Reputation: r.rep.Reputation(userID),
		AddedAt:    models.At(r.now()),
	}
	r.doc.Queue = append(r.doc.Queue, rec)
	sort.SliceStable(r.doc.Queue, func(i, j int) bool {
		return r.doc.Queue[i].Reputation > r.doc.Queue[j].Reputation
	})

	if err := r.save(ctx); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// PeekHighest returns the head of the queue without removing it.
func (r *NumberRepository) PeekHighest() (*models.NumberRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.doc.Queue) == 0 {
		return nil, false
	}
	return r.doc.Queue[0].Clone(), true
}

// RemoveFromQueue drops the matching queue entry. It reports whether one was
// removed; a missing entry is not an error.
func (r *NumberRepository) RemoveFromQueue(ctx context.Context, number string, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed bool
	r.doc.Queue, removed = without(r.doc.Queue, number, userID)
	if !removed {
		return false, nil
	}
	return true, r.save(ctx)
}

// MoveToWork moves a queued record into the owner's in-work partition.
func (r *NumberRepository) MoveToWork(ctx context.Context, rec *models.NumberRecord) (*models.NumberRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.doc.Queue, rec.Number, rec.UserID)
	if i < 0 {
		return nil, ErrNumberNotFound
	}

	moved := r.doc.Queue[i].Clone()
	now := models.At(r.now())
	moved.MovedToWorkAt = &now

	key := userKey(rec.UserID)
	r.doc.InWork[key] = append(r.doc.InWork[key], moved)
	r.doc.Queue, _ = without(r.doc.Queue, rec.Number, rec.UserID)

	if err := r.save(ctx); err != nil {
		return nil, err
	}
	return moved.Clone(), nil
}

func (r *NumberRepository) MoveToSuccessful(ctx context.Context, rec *models.NumberRecord, flightTime string) (*models.NumberRecord, error) {
	return r.finish(ctx, rec, flightTime, models.PartitionSuccessful)
}

func (r *NumberRepository) MoveToBlocked(ctx context.Context, rec *models.NumberRecord, flightTime string) (*models.NumberRecord, error) {
	return r.finish(ctx, rec, flightTime, models.PartitionBlocked)
}

// finish moves an active record into a terminal partition, clearing it from
// both the queue and in-work partitions.
func (r *NumberRepository) finish(ctx context.Context, rec *models.NumberRecord, flightTime string, to models.Partition) (*models.NumberRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := userKey(rec.UserID)
	var current *models.NumberRecord
	if i := indexOf(r.doc.InWork[key], rec.Number, rec.UserID); i >= 0 {
		current = r.doc.InWork[key][i]
	} else if i := indexOf(r.doc.Queue, rec.Number, rec.UserID); i >= 0 {
		current = r.doc.Queue[i]
	}
	if current == nil {
		return nil, ErrNumberNotFound
	}

	done := current.Clone()
	done.FlightTime = flightTime
	now := models.At(r.now())

	switch to {
	case models.PartitionSuccessful:
		done.MovedToSuccessfulAt = &now
		r.doc.Successful[key] = append(r.doc.Successful[key], done)
	case models.PartitionBlocked:
		done.MovedToBlockedAt = &now
		r.doc.Blocked[key] = append(r.doc.Blocked[key], done)
	default:
		return nil, fmt.Errorf("unsupported terminal partition %q", to)
	}

	r.doc.Queue, _ = without(r.doc.Queue, rec.Number, rec.UserID)
	if list, ok := r.doc.InWork[key]; ok {
		r.doc.InWork[key], _ = without(list, rec.Number, rec.UserID)
	}

	if err := r.save(ctx); err != nil {
		return nil, err
	}
	return done.Clone(), nil
}

// Queue returns a copy of the whole queue in priority order.
func (r *NumberRepository) Queue() []*models.NumberRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.doc.Queue)
}

func (r *NumberRepository) QueueLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.doc.Queue)
}

// Queued returns the user's records still waiting in the queue.
func (r *NumberRepository) Queued(userID int64) []*models.NumberRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.NumberRecord{}
	for _, rec := range r.doc.Queue {
		if rec.UserID == userID {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func (r *NumberRepository) InWork(userID int64) []*models.NumberRecord {
	return r.owned(func(d *models.NumbersDocument) map[string][]*models.NumberRecord { return d.InWork }, userID)
}

func (r *NumberRepository) Successful(userID int64) []*models.NumberRecord {
	return r.owned(func(d *models.NumbersDocument) map[string][]*models.NumberRecord { return d.Successful }, userID)
}

func (r *NumberRepository) Blocked(userID int64) []*models.NumberRecord {
	return r.owned(func(d *models.NumbersDocument) map[string][]*models.NumberRecord { return d.Blocked }, userID)
}

func (r *NumberRepository) owned(pick func(*models.NumbersDocument) map[string][]*models.NumberRecord, userID int64) []*models.NumberRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(pick(r.doc)[userKey(userID)])
}

// List returns the user's records in partition p.
func (r *NumberRepository) List(p models.Partition, userID int64) []*models.NumberRecord {
	switch p {
	case models.PartitionQueue:
		return r.Queued(userID)
	case models.PartitionInWork:
		return r.InWork(userID)
	case models.PartitionSuccessful:
		return r.Successful(userID)
	case models.PartitionBlocked:
		return r.Blocked(userID)
	}
	return nil
}

func (r *NumberRepository) FindQueued(number string, userID int64) (*models.NumberRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := indexOf(r.doc.Queue, number, userID); i >= 0 {
		return r.doc.Queue[i].Clone(), nil
	}
	return nil, ErrNumberNotFound
}

// FindActive looks the record up in the queue, then in the owner's in-work list.
func (r *NumberRepository) FindActive(number string, userID int64) (*models.NumberRecord, models.Partition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := indexOf(r.doc.Queue, number, userID); i >= 0 {
		return r.doc.Queue[i].Clone(), models.PartitionQueue, nil
	}
	list := r.doc.InWork[userKey(userID)]
	if i := indexOf(list, number, userID); i >= 0 {
		return list[i].Clone(), models.PartitionInWork, nil
	}
	return nil, "", ErrNumberNotFound
}

// Active lists records an operator can still report on: everything in work,
// oldest first, followed by the queue. limit <= 0 means no limit.
func (r *NumberRepository) Active(limit int) []*models.NumberRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var inWork []*models.NumberRecord
	for _, list := range r.doc.InWork {
		inWork = append(inWork, list...)
	}
	sort.SliceStable(inWork, func(i, j int) bool {
		return workedAt(inWork[i]).Before(workedAt(inWork[j]))
	})

	out := cloneAll(append(inWork, r.doc.Queue...))
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Locate lists every partition currently holding the (number, owner) pair.
func (r *NumberRepository) Locate(number string, userID int64) []models.Partition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []models.Partition
	if indexOf(r.doc.Queue, number, userID) >= 0 {
		found = append(found, models.PartitionQueue)
	}
	key := userKey(userID)
	if indexOf(r.doc.InWork[key], number, userID) >= 0 {
		found = append(found, models.PartitionInWork)
	}
	if indexOf(r.doc.Successful[key], number, userID) >= 0 {
		found = append(found, models.PartitionSuccessful)
	}
	if indexOf(r.doc.Blocked[key], number, userID) >= 0 {
		found = append(found, models.PartitionBlocked)
	}
	return found
}

// Stats builds the per-user statistics rows for the given users.
func (r *NumberRepository) Stats(users []*models.User) []models.UserStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queued := make(map[int64]int)
	for _, rec := range r.doc.Queue {
		queued[rec.UserID]++
	}

	out := make([]models.UserStats, 0, len(users))
	for _, u := range users {
		key := userKey(u.ID)
		out = append(out, models.UserStats{
			UserID:     u.ID,
			Username:   u.DisplayName(),
			Reputation: u.Reputation,
			Queued:     queued[u.ID],
			InWork:     len(r.doc.InWork[key]),
			Successful: len(r.doc.Successful[key]),
			Blocked:    len(r.doc.Blocked[key]),
		})
	}
	return out
}

func (r *NumberRepository) save(ctx context.Context) error {
	if err := r.store.Save(ctx, storage.NumbersDocument, r.doc); err != nil {
		return fmt.Errorf("persist numbers: %w", err)
	}
	return nil
}

func indexOf(list []*models.NumberRecord, number string, userID int64) int {
	for i, rec := range list {
		if rec.Same(number, userID) {
			return i
		}
	}
	return -1
}

func without(list []*models.NumberRecord, number string, userID int64) ([]*models.NumberRecord, bool) {
	out := make([]*models.NumberRecord, 0, len(list))
	removed := false
	for _, rec := range list {
		if rec.Same(number, userID) {
			removed = true
			continue
		}
		out = append(out, rec)
	}
	return out, removed
}

func cloneAll(list []*models.NumberRecord) []*models.NumberRecord {
	out := make([]*models.NumberRecord, 0, len(list))
	for _, rec := range list {
		out = append(out, rec.Clone())
	}
	return out
}

func workedAt(rec *models.NumberRecord) time.Time {
	if rec.MovedToWorkAt == nil {
		return rec.AddedAt.Time
	}
	return rec.MovedToWorkAt.Time
}
