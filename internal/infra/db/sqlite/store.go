package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/domain/ports/repository"
	"telegram-horoscope-bot/internal/infra/metrics"
)

//go:embed schema.sql
var schemaFS embed.FS

var _ repository.PreferenceStore = (*Store)(nil)

// Config represents database configuration
type Config struct {
	DSN          string
	MaxOpenConns int
}

// Store is the SQLite implementation of the preference store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

type prefRow struct {
	UserID     int64          `db:"user_id"`
	ZodiacSign sql.NullString `db:"zodiac_sign"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

type predictionRow struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	ZodiacSign string    `db:"zodiac_sign"`
	Prediction string    `db:"prediction"`
	CreatedAt  time.Time `db:"created_at"`
}

// New opens the database, applies pragmas and creates the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		cfg.DSN = "file:horoscope_bot.db?cache=shared&mode=rwc&_txlock=immediate"
	}

	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w: %w", domain.ErrStorage, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %s: %w: %w", pragma, domain.ErrStorage, err)
		}
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("execute schema: %w: %w", domain.ErrStorage, err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
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
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			zodiac_sign = excluded.zodiac_sign,
			updated_at = excluded.updated_at
	`
	now := s.now().UTC()
	return s.withRetry(ctx, "upsert_preference", func() error {
		_, err := s.db.ExecContext(ctx, q, pref.UserID, string(pref.ZodiacSign), now, now)
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

	const q = `INSERT INTO horoscopes (user_id, zodiac_sign, prediction, created_at) VALUES (?, ?, ?, ?)`
	var id int64
	err := s.withRetry(ctx, "append_prediction", func() error {
		res, err := s.db.ExecContext(ctx, q, userID, string(sign), text, s.now().UTC())
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	var rows []prefRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, zodiac_sign, created_at, updated_at
		FROM users
		WHERE zodiac_sign IS NOT NULL AND zodiac_sign <> ''
	`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w: %w", domain.ErrStorage, err)
	}

	subs := make([]model.Subscriber, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, model.Subscriber{UserID: r.UserID, ZodiacSign: model.ZodiacSign(r.ZodiacSign.String)})
	}
	return subs, nil
}

func (s *Store) FindPreference(ctx context.Context, userID int64) (*model.UserPreference, error) {
	var r prefRow
	err := s.db.GetContext(ctx, &r, `
		SELECT user_id, zodiac_sign, created_at, updated_at
		FROM users WHERE user_id = ?
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find preference: %w: %w", domain.ErrStorage, err)
	}
	if !r.ZodiacSign.Valid || r.ZodiacSign.String == "" {
		return nil, domain.ErrNotFound
	}
	return &model.UserPreference{
		UserID:     r.UserID,
		ZodiacSign: model.ZodiacSign(r.ZodiacSign.String),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

func (s *Store) ListPredictions(ctx context.Context, userID int64, limit int) ([]*model.PredictionRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []predictionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, zodiac_sign, prediction, created_at
		FROM horoscopes
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w: %w", domain.ErrStorage, err)
	}

	out := make([]*model.PredictionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, &model.PredictionRecord{
			ID:         r.ID,
			UserID:     r.UserID,
			ZodiacSign: model.ZodiacSign(r.ZodiacSign),
			Text:       r.Prediction,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

// withRetry retries fn while SQLite reports a busy or locked database.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	var last error
	attempt := 0
	err := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second)).Do(ctx, func() error {
		if attempt > 0 {
			metrics.IncDBRetry(op)
		}
		attempt++
		last = fn()
		if last != nil && !isLockError(last) {
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

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}
