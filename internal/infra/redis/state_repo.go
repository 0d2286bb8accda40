package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/domain/ports/repository"
	"telegram-horoscope-bot/internal/infra/metrics"
)

var _ repository.StateRepository = (*StateRepo)(nil)

// StateRepo keeps each user's flow state in Redis so replicas share it.
type StateRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewStateRepo(client RedisClient, ttl time.Duration) *StateRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &StateRepo{client: client, ttl: ttl}
}

func (s *StateRepo) stateKey(tgID int64) string {
	return fmt.Sprintf("flow_state:%d", tgID)
}

func (s *StateRepo) SetState(ctx context.Context, tgID int64, state model.FlowState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.stateKey(tgID), data, s.ttl)
}

func (s *StateRepo) GetState(ctx context.Context, tgID int64) (model.FlowState, error) {
	data, err := s.client.Get(ctx, s.stateKey(tgID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncStateRequest("redis", "miss")
			return model.IdleState(), domain.ErrNotFound
		}
		metrics.IncStateRequest("redis", "error")
		return model.IdleState(), err
	}

	var state model.FlowState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		metrics.IncStateRequest("redis", "error")
		return model.IdleState(), err
	}
	metrics.IncStateRequest("redis", "hit")
	return state, nil
}

func (s *StateRepo) ClearState(ctx context.Context, tgID int64) error {
	return s.client.Del(ctx, s.stateKey(tgID))
}
