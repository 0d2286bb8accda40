package usecase

import (
	"context"
	"sync"

	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/domain/ports/repository"
	"telegram-horoscope-bot/internal/infra/metrics"
)

var _ repository.StateRepository = (*memoryStateRepo)(nil)

// memoryStateRepo is the single-process state map used when redis is not configured.
type memoryStateRepo struct {
	mu     sync.RWMutex
	states map[int64]model.FlowState
}

func newMemoryStateRepo() *memoryStateRepo {
	return &memoryStateRepo{states: make(map[int64]model.FlowState)}
}

func (m *memoryStateRepo) SetState(_ context.Context, tgID int64, state model.FlowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state.Step == model.FlowIdle {
		delete(m.states, tgID)
		return nil
	}
	m.states[tgID] = state
	return nil
}

func (m *memoryStateRepo) GetState(_ context.Context, tgID int64) (model.FlowState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[tgID]
	if !ok {
		metrics.IncStateRequest("memory", "miss")
		return model.IdleState(), domain.ErrNotFound
	}
	metrics.IncStateRequest("memory", "hit")
	return st, nil
}

func (m *memoryStateRepo) ClearState(_ context.Context, tgID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, tgID)
	return nil
}
