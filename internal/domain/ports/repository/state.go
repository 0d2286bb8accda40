package repository

import (
	"context"

	"telegram-horoscope-bot/internal/domain/model"
)

// StateRepository is the port for a user's conversational state.
// GetState returns domain.ErrNotFound when nothing is stored; callers treat that as idle.
type StateRepository interface {
	SetState(ctx context.Context, tgID int64, state model.FlowState) error
	GetState(ctx context.Context, tgID int64) (model.FlowState, error)
	ClearState(ctx context.Context, tgID int64) error
}
