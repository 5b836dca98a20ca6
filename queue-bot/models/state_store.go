package models

import (
	"context"
	"time"

	"fullwork/shared/states"
)

// MemoryStateStore keeps dialog state for the lifetime of the process.
type MemoryStateStore struct {
	states *states.Store[ConversationState]
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: states.NewStore[ConversationState]()}
}

func (m *MemoryStateStore) Get(_ context.Context, actorID int64) (*ConversationState, error) {
	st, ok := m.states.Get(actorID)
	if !ok {
		return nil, nil
	}
	st.Record = st.Record.Clone()
	return &st, nil
}

func (m *MemoryStateStore) Set(_ context.Context, state *ConversationState) error {
	st := *state
	st.Record = state.Record.Clone()
	st.UpdatedAt = time.Now()
	m.states.Set(state.ActorID, st)
	return nil
}

func (m *MemoryStateStore) Clear(_ context.Context, actorID int64) error {
	m.states.Clear(actorID)
	return nil
}
