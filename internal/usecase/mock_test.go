//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/domain/ports/adapter"
	"telegram-horoscope-bot/internal/domain/ports/repository"
	"telegram-horoscope-bot/internal/infra/i18n"
)

// =============================
// Adapters
// =============================

type sentMessage struct {
	ChatID    int64
	MessageID int // non-zero for edits
	Text      string
	Rows      [][]adapter.InlineButton
}

// MockTelegramBot records every outbound call.
type MockTelegramBot struct {
	mu     sync.Mutex
	Sent   []sentMessage
	Edited []sentMessage

	SendMessageFunc func(ctx context.Context, chatID int64, text string) error
	EditMessageFunc func(ctx context.Context, chatID int64, messageID int, text string) error
}

var _ adapter.TelegramBotAdapter = (*MockTelegramBot)(nil)

func (m *MockTelegramBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if m.SendMessageFunc != nil {
		if err := m.SendMessageFunc(ctx, chatID, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *MockTelegramBot) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMessage{ChatID: chatID, Text: text, Rows: rows})
	return nil
}

func (m *MockTelegramBot) EditMessage(ctx context.Context, chatID int64, messageID int, text string, rows [][]adapter.InlineButton) error {
	if m.EditMessageFunc != nil {
		if err := m.EditMessageFunc(ctx, chatID, messageID, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edited = append(m.Edited, sentMessage{ChatID: chatID, MessageID: messageID, Text: text, Rows: rows})
	return nil
}

func (m *MockTelegramBot) sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.Sent))
	copy(out, m.Sent)
	return out
}

func (m *MockTelegramBot) sentTo(chatID int64) []sentMessage {
	var out []sentMessage
	for _, s := range m.sent() {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// MockAI answers through ChatFunc and counts calls.
type MockAI struct {
	mu       sync.Mutex
	Calls    [][]adapter.Message
	ChatFunc func(ctx context.Context, messages []adapter.Message) (string, adapter.Usage, error)
}

var _ adapter.AIServiceAdapter = (*MockAI)(nil)

func (m *MockAI) Provider() string { return "mock" }
func (m *MockAI) Model() string    { return "mock-1" }

func (m *MockAI) Chat(ctx context.Context, messages []adapter.Message) (string, adapter.Usage, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, messages)
	m.mu.Unlock()
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, messages)
	}
	return "Прогноз", adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

func (m *MockAI) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockGenerator stands in for the prediction use case.
type MockGenerator struct {
	mu           sync.Mutex
	Signs        []model.ZodiacSign
	GenerateFunc func(ctx context.Context, sign model.ZodiacSign) (string, error)
}

func (m *MockGenerator) Generate(ctx context.Context, sign model.ZodiacSign) (string, error) {
	m.mu.Lock()
	m.Signs = append(m.Signs, sign)
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, sign)
	}
	return "Гороскоп для " + string(sign), nil
}

func (m *MockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Signs)
}

// =============================
// Repositories
// =============================

// MockPreferenceStore is an in-memory store; the Func fields inject failures.
type MockPreferenceStore struct {
	mu      sync.Mutex
	prefs   map[int64]*model.UserPreference
	records []*model.PredictionRecord
	nextID  int64

	UpsertFunc          func(ctx context.Context, userID int64, sign model.ZodiacSign) error
	AppendFunc          func(ctx context.Context, userID int64, sign model.ZodiacSign, text string) error
	ListSubscribersFunc func(ctx context.Context) ([]model.Subscriber, error)
}

var _ repository.PreferenceStore = (*MockPreferenceStore)(nil)

func NewMockPreferenceStore() *MockPreferenceStore {
	return &MockPreferenceStore{prefs: map[int64]*model.UserPreference{}}
}

func (m *MockPreferenceStore) UpsertPreference(ctx context.Context, userID int64, sign model.ZodiacSign) error {
	if m.UpsertFunc != nil {
		if err := m.UpsertFunc(ctx, userID, sign); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if p, ok := m.prefs[userID]; ok {
		p.ZodiacSign = sign
		p.UpdatedAt = now
		return nil
	}
	m.prefs[userID] = &model.UserPreference{UserID: userID, ZodiacSign: sign, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (m *MockPreferenceStore) AppendPrediction(ctx context.Context, userID int64, sign model.ZodiacSign, text string) (int64, error) {
	if m.AppendFunc != nil {
		if err := m.AppendFunc(ctx, userID, sign, text); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.records = append(m.records, &model.PredictionRecord{
		ID: m.nextID, UserID: userID, ZodiacSign: sign, Text: text, CreatedAt: time.Now(),
	})
	return m.nextID, nil
}

func (m *MockPreferenceStore) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	if m.ListSubscribersFunc != nil {
		return m.ListSubscribersFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscriber
	for _, p := range m.prefs {
		if p.HasSign() {
			out = append(out, model.Subscriber{UserID: p.UserID, ZodiacSign: p.ZodiacSign})
		}
	}
	return out, nil
}

func (m *MockPreferenceStore) FindPreference(ctx context.Context, userID int64) (*model.UserPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPreferenceStore) ListPredictions(ctx context.Context, userID int64, limit int) ([]*model.PredictionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PredictionRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].UserID == userID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *MockPreferenceStore) Ping(ctx context.Context) error { return nil }
func (m *MockPreferenceStore) Close() error                   { return nil }

func (m *MockPreferenceStore) recordsFor(userID int64) []*model.PredictionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PredictionRecord
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

func (m *MockPreferenceStore) totalRecords() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// =============================
// Helpers
// =============================

// newTestLogger writes to io.Discard to keep test output clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestTranslator() *i18n.Translator {
	translator, err := i18n.NewTranslator(i18n.LocalesFS, "ru")
	if err != nil {
		panic(err)
	}
	return translator
}
