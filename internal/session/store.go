package session

import (
	"context"
	"sync"
)

// Store keeps the in-flight conversation of every user. Implementations return
// Idle for users without a stored state.
type Store interface {
	Get(ctx context.Context, userID int64) (State, error)
	Set(ctx context.Context, userID int64, s State) error
	Clear(ctx context.Context, userID int64) error
}

// MemoryStore is process-local; flows are lost on restart.
type MemoryStore struct {
	states sync.Map // int64 -> State
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Get(_ context.Context, userID int64) (State, error) {
	if v, ok := m.states.Load(userID); ok {
		return v.(State), nil
	}
	return Idle{}, nil
}

func (m *MemoryStore) Set(_ context.Context, userID int64, s State) error {
	if _, idle := s.(Idle); idle || s == nil {
		m.states.Delete(userID)
		return nil
	}
	m.states.Store(userID, s)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.states.Delete(userID)
	return nil
}
