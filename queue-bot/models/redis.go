package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStateTTL = time.Hour

// RedisStateStore keeps dialog state in redis so it survives restarts.
// Abandoned dialogs expire after the TTL.
type RedisStateStore struct {
	cli *redis.Client
	ttl time.Duration
}

func NewRedisStateStore(cli *redis.Client, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &RedisStateStore{cli: cli, ttl: ttl}
}

func stateKey(actorID int64) string {
	return "dialog_state:" + strconv.FormatInt(actorID, 10)
}

func (r *RedisStateStore) Get(ctx context.Context, actorID int64) (*ConversationState, error) {
	data, err := r.cli.Get(ctx, stateKey(actorID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get state from Redis: %w", err)
	}

	var state ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dialog state: %w", err)
	}
	return &state, nil
}

func (r *RedisStateStore) Set(ctx context.Context, state *ConversationState) error {
	st := *state
	st.UpdatedAt = time.Now()

	data, err := json.Marshal(&st)
	if err != nil {
		return fmt.Errorf("failed to marshal dialog state: %w", err)
	}
	if err := r.cli.Set(ctx, stateKey(st.ActorID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state to Redis: %w", err)
	}
	return nil
}

func (r *RedisStateStore) Clear(ctx context.Context, actorID int64) error {
	if err := r.cli.Del(ctx, stateKey(actorID)).Err(); err != nil {
		return fmt.Errorf("failed to delete state from Redis: %w", err)
	}
	return nil
}
