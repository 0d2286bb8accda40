package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/domain/ports/repository"
)

// HistoryUseCase serves read-only views of a user's stored data.
type HistoryUseCase interface {
	CurrentSign(ctx context.Context, userID int64) (*model.UserPreference, error)
	Recent(ctx context.Context, userID int64, limit int) ([]*model.PredictionRecord, error)
}

type historyUC struct {
	store repository.PreferenceStore
	log   *zerolog.Logger
}

func NewHistoryUseCase(store repository.PreferenceStore, logger *zerolog.Logger) HistoryUseCase {
	l := logger.With().Str("component", "HistoryUC").Logger()
	return &historyUC{store: store, log: &l}
}

func (uc *historyUC) CurrentSign(ctx context.Context, userID int64) (*model.UserPreference, error) {
	return uc.store.FindPreference(ctx, userID)
}

func (uc *historyUC) Recent(ctx context.Context, userID int64, limit int) ([]*model.PredictionRecord, error) {
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	recs, err := uc.store.ListPredictions(ctx, userID, limit)
	if err != nil {
		uc.log.Warn().Err(err).Int64("tg_id", userID).Msg("failed to load history")
		return nil, err
	}
	return recs, nil
}
