package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/domain/ports/repository"
	"telegram-horoscope-bot/internal/infra/metrics"
)

var _ repository.PreferenceStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) UpsertPreference(ctx context.Context, userID int64, sign model.ZodiacSign) error {
	pref, err := model.NewUserPreference(userID, sign)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO users (user_id, zodiac_sign, created_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (user_id) DO UPDATE SET
  zodiac_sign = EXCLUDED.zodiac_sign,
  updated_at = EXCLUDED.updated_at;
`
	return s.withRetry(ctx, "upsert_preference", func() error {
		_, err := s.pool.Exec(ctx, q, pref.UserID, string(pref.ZodiacSign), pref.UpdatedAt.UTC())
		return err
	})
}

func (s *Store) AppendPrediction(ctx context.Context, userID int64, sign model.ZodiacSign, text string) (int64, error) {
	if userID == 0 {
		return 0, domain.ErrInvalidArgument
	}
	if !sign.Valid() {
		return 0, domain.ErrUnknownSign
	}
	const q = `
INSERT INTO horoscopes (user_id, zodiac_sign, prediction, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id;
`
	var id int64
	err := s.withRetry(ctx, "append_prediction", func() error {
		return s.pool.QueryRow(ctx, q, userID, string(sign), text, time.Now().UTC()).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := s.pool.Query(ctx, `
SELECT user_id, zodiac_sign
  FROM users
 WHERE zodiac_sign IS NOT NULL AND zodiac_sign <> '';`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []model.Subscriber
	for rows.Next() {
		var sub model.Subscriber
		var sign string
		if err := rows.Scan(&sub.UserID, &sign); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w: %w", domain.ErrStorage, err)
		}
		sub.ZodiacSign = model.ZodiacSign(sign)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscribers: %w: %w", domain.ErrStorage, err)
	}
	return out, nil
}

func (s *Store) FindPreference(ctx context.Context, userID int64) (*model.UserPreference, error) {
	const q = `SELECT user_id, zodiac_sign, created_at, updated_at FROM users WHERE user_id=$1;`
	var p model.UserPreference
	var sign *string
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&p.UserID, &sign, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find preference: %w: %w", domain.ErrStorage, err)
	}
	if sign == nil || *sign == "" {
		return nil, domain.ErrNotFound
	}
	p.ZodiacSign = model.ZodiacSign(*sign)
	return &p, nil
}

func (s *Store) ListPredictions(ctx context.Context, userID int64, limit int) ([]*model.PredictionRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, zodiac_sign, prediction, created_at
  FROM horoscopes
 WHERE user_id=$1
 ORDER BY id DESC
 LIMIT $2;`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []*model.PredictionRecord
	for rows.Next() {
		var r model.PredictionRecord
		var sign string
		if err := rows.Scan(&r.ID, &r.UserID, &sign, &r.Text, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w: %w", domain.ErrStorage, err)
		}
		r.ZodiacSign = model.ZodiacSign(sign)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list predictions: %w: %w", domain.ErrStorage, err)
	}
	return out, nil
}

// withRetry retries fn on serialization failures and deadlocks.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	var last error
	attempt := 0
	err := repeater.NewBackoff(3, 50*time.Millisecond, repeater.WithMaxDelay(time.Second)).Do(ctx, func() error {
		if attempt > 0 {
			metrics.IncDBRetry(op)
		}
		attempt++
		last = fn()
		if last != nil && !isTransient(last) {
			return nil // not retryable, surfaced below
		}
		return last
	})
	if last != nil {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, last)
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
	}
	return nil
}

// isTransient reports Postgres errors that succeed when retried.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
	}
	return false
}
