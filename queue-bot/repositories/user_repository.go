package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"fullwork/queue-bot/models"
	"fullwork/shared/storage"
)

var ErrUserNotFound = errors.New("пользователь не найден")

// UserRepository is the reputation ledger. Every mutation rewrites the whole
// users document.
type UserRepository struct {
	mu    sync.RWMutex
	store storage.Store
	users map[string]*models.User
}

func NewUserRepository(ctx context.Context, store storage.Store) (*UserRepository, error) {
	users := make(map[string]*models.User)
	if err := store.Load(ctx, storage.UsersDocument, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = make(map[string]*models.User)
	}
	for key, u := range users {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("users document: bad user id %q: %w", key, err)
		}
		u.ID = id
	}
	return &UserRepository{store: store, users: users}, nil
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userKey(userID)]; ok {
		c := *u
		return &c, nil
	}

	u := models.NewUser(userID, username)
	r.users[userKey(userID)] = u
	if err := r.save(ctx); err != nil {
		return nil, err
	}
	c := *u
	return &c, nil
}

func (r *UserRepository) Get(userID int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userKey(userID)]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}

// Reputation returns the user's current score, or the default for unknown users.
func (r *UserRepository) Reputation(userID int64) float64 {
	u, err := r.Get(userID)
	if err != nil {
		return models.DefaultReputation
	}
	return u.Reputation
}

// Adjust adds delta to the user's reputation. There is no floor or ceiling.
func (r *UserRepository) Adjust(ctx context.Context, userID int64, delta float64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userKey(userID)]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Reputation += delta
	if err := r.save(ctx); err != nil {
		return nil, err
	}
	c := *u
	return &c, nil
}

// All returns every user ordered by id.
func (r *UserRepository) All() []*models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *UserRepository) save(ctx context.Context) error {
	if err := r.store.Save(ctx, storage.UsersDocument, r.users); err != nil {
		return fmt.Errorf("persist users: %w", err)
	}
	return nil
}
