package model

import (
	"time"

	"telegram-horoscope-bot/internal/domain"
)

// UserPreference is the zodiac sign a Telegram user picked last.
// One row per user; the sign is replaced on every new selection.
type UserPreference struct {
	UserID     int64
	ZodiacSign ZodiacSign
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewUserPreference(userID int64, sign ZodiacSign) (*UserPreference, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidArgument
	}
	if !sign.Valid() {
		return nil, domain.ErrUnknownSign
	}
	now := time.Now()
	return &UserPreference{
		UserID:     userID,
		ZodiacSign: sign,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (p *UserPreference) HasSign() bool { return p != nil && p.ZodiacSign != "" }

// Subscriber is a user with a stored sign, eligible for the daily broadcast.
type Subscriber struct {
	UserID     int64
	ZodiacSign ZodiacSign
}
