package repository

import (
	"context"

	"telegram-horoscope-bot/internal/domain/model"
)

// -----------------------------
// Preferences + prediction history
// -----------------------------

// PreferenceStore is the durable user -> sign mapping plus the append-only
// prediction history. Every failure is wrapped with domain.ErrStorage.
type PreferenceStore interface {
	// UpsertPreference inserts the row or replaces zodiac_sign and updated_at in place.
	UpsertPreference(ctx context.Context, userID int64, sign model.ZodiacSign) error
	// AppendPrediction never requires a preference row to exist.
	AppendPrediction(ctx context.Context, userID int64, sign model.ZodiacSign, text string) (int64, error)
	// ListSubscribers returns every user with a non-empty sign; order is unspecified.
	ListSubscribers(ctx context.Context) ([]model.Subscriber, error)

	// FindPreference returns domain.ErrNotFound when the user never picked a sign.
	FindPreference(ctx context.Context, userID int64) (*model.UserPreference, error)
	// ListPredictions returns the newest records first.
	ListPredictions(ctx context.Context, userID int64, limit int) ([]*model.PredictionRecord, error)

	Ping(ctx context.Context) error
	Close() error
}
