//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"telegram-horoscope-bot/internal/domain"
	"telegram-horoscope-bot/internal/domain/model"
	"telegram-horoscope-bot/internal/domain/ports/repository"
	"telegram-horoscope-bot/internal/usecase"
)

const (
	testUser = int64(555)
	testMsg  = 77
)

func newFlow(store *MockPreferenceStore, gen *MockGenerator, bot *MockTelegramBot) usecase.FlowUseCase {
	return usecase.NewFlowUseCase(store, gen, bot, nil, newTestTranslator(), time.Minute, newTestLogger())
}

func TestFlowUseCase_HappyPath(t *testing.T) {
	ctx := context.Background()
	store := NewMockPreferenceStore()
	gen := &MockGenerator{}
	bot := &MockTelegramBot{}
	flow := newFlow(store, gen, bot)

	t.Run("should greet with a single menu button", func(t *testing.T) {
		if err := flow.HandleStart(ctx, testUser, testUser, "Анна"); err != nil {
			t.Fatalf("HandleStart: %v", err)
		}
		sent := bot.sent()
		if len(sent) != 1 {
			t.Fatalf("expected 1 message, got %d", len(sent))
		}
		want := "✨ Приветствую, Анна! Я ваш персональный астролог.\nЯ могу составить для вас персональный гороскоп на сегодня.\nВыберите действие:"
		if sent[0].Text != want {
			t.Errorf("unexpected welcome %q", sent[0].Text)
		}
		if len(sent[0].Rows) != 1 || len(sent[0].Rows[0]) != 1 || sent[0].Rows[0][0].Data != usecase.CallbackOpenMenu {
			t.Errorf("unexpected keyboard %+v", sent[0].Rows)
		}
		if st := flow.State(ctx, testUser); st.Step != model.FlowAwaitingSignChoice {
			t.Errorf("expected awaiting sign choice, got %s", st.Step)
		}
	})

	t.Run("should edit the prompt into the twelve-sign menu", func(t *testing.T) {
		if err := flow.HandleOpenMenu(ctx, testUser, testUser, testMsg); err != nil {
			t.Fatalf("HandleOpenMenu: %v", err)
		}
		if len(bot.Edited) != 1 {
			t.Fatalf("expected one edit, got %d", len(bot.Edited))
		}
		edit := bot.Edited[0]
		if edit.MessageID != testMsg || edit.Text != "🔮 Выберите ваш знак зодиака:" {
			t.Errorf("unexpected edit %+v", edit)
		}
		if len(edit.Rows) != 12 {
			t.Fatalf("expected 12 sign rows, got %d", len(edit.Rows))
		}
		for i, s := range model.AllSigns() {
			if edit.Rows[i][0].Data != usecase.CallbackSignPrefix+string(s) {
				t.Errorf("row %d: unexpected data %q", i, edit.Rows[i][0].Data)
			}
		}
		if st := flow.State(ctx, testUser); st.Step != model.FlowAwaitingSignChoice {
			t.Errorf("expected awaiting sign choice, got %s", st.Step)
		}
	})

	t.Run("should deliver, record and return to idle", func(t *testing.T) {
		if err := flow.HandleSignSelected(ctx, testUser, testUser, testMsg, "Лев"); err != nil {
			t.Fatalf("HandleSignSelected: %v", err)
		}
		if len(bot.Edited) != 2 || bot.Edited[1].Text != "🔍 Составляю гороскоп для Лев..." {
			t.Errorf("expected placeholder edit, got %+v", bot.Edited)
		}
		sent := bot.sent()
		last := sent[len(sent)-1]
		if last.Text != "♉ Ваш гороскоп на сегодня (Лев):\n\nГороскоп для Лев" {
			t.Errorf("unexpected reply %q", last.Text)
		}

		pref, err := store.FindPreference(ctx, testUser)
		if err != nil || pref.ZodiacSign != model.Leo {
			t.Errorf("expected stored sign Лев, got %+v (%v)", pref, err)
		}
		recs := store.recordsFor(testUser)
		if len(recs) != 1 || recs[0].ZodiacSign != model.Leo || recs[0].Text != "Гороскоп для Лев" {
			t.Errorf("unexpected history %+v", recs)
		}
		if st := flow.State(ctx, testUser); st.Step != model.FlowIdle {
			t.Errorf("expected idle, got %s", st.Step)
		}
	})

	t.Run("should replace the sign on a later selection", func(t *testing.T) {
		if err := flow.HandleSignSelected(ctx, testUser, testUser, testMsg, "Рыбы"); err != nil {
			t.Fatalf("HandleSignSelected: %v", err)
		}
		pref, _ := store.FindPreference(ctx, testUser)
		if pref.ZodiacSign != model.Pisces {
			t.Errorf("expected Рыбы, got %s", pref.ZodiacSign)
		}
		subs, _ := store.ListSubscribers(ctx)
		if len(subs) != 1 {
			t.Errorf("expected one subscriber, got %d", len(subs))
		}
		if n := len(store.recordsFor(testUser)); n != 2 {
			t.Errorf("expected 2 history rows, got %d", n)
		}
	})
}

func TestFlowUseCase_Failures(t *testing.T) {
	ctx := context.Background()
	apology := "⚠️ Произошла ошибка. Попробуйте позже."

	t.Run("should apologize and write nothing when generation fails", func(t *testing.T) {
		store := NewMockPreferenceStore()
		gen := &MockGenerator{GenerateFunc: func(ctx context.Context, sign model.ZodiacSign) (string, error) {
			return "", fmt.Errorf("generate: %w: %w", domain.ErrGeneration, errors.New("timeout"))
		}}
		bot := &MockTelegramBot{}
		flow := newFlow(store, gen, bot)

		if err := flow.HandleSignSelected(ctx, testUser, testUser, testMsg, "Рак"); err != nil {
			t.Fatalf("flow must not surface generation errors, got %v", err)
		}
		sent := bot.sent()
		if len(sent) != 1 || sent[0].Text != apology {
			t.Errorf("expected a single apology, got %+v", sent)
		}
		if _, err := store.FindPreference(ctx, testUser); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("preference must not be written, got %v", err)
		}
		if store.totalRecords() != 0 {
			t.Errorf("history must stay empty, got %d", store.totalRecords())
		}
		if st := flow.State(ctx, testUser); st.Step != model.FlowIdle {
			t.Errorf("expected idle, got %s", st.Step)
		}
	})

	t.Run("should apologize when storage fails", func(t *testing.T) {
		store := NewMockPreferenceStore()
		store.AppendFunc = func(ctx context.Context, userID int64, sign model.ZodiacSign, text string) error {
			return fmt.Errorf("append: %w: %w", domain.ErrStorage, errors.New("disk full"))
		}
		bot := &MockTelegramBot{}
		flow := newFlow(store, &MockGenerator{}, bot)

		if err := flow.HandleSignSelected(ctx, testUser, testUser, testMsg, "Дева"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sent := bot.sent()
		if len(sent) != 1 || sent[0].Text != apology {
			t.Errorf("expected apology, got %+v", sent)
		}
		if st := flow.State(ctx, testUser); st.Step != model.FlowIdle {
			t.Errorf("expected idle, got %s", st.Step)
		}
	})

	t.Run("should keep going when the placeholder edit fails", func(t *testing.T) {
		store := NewMockPreferenceStore()
		bot := &MockTelegramBot{EditMessageFunc: func(ctx context.Context, chatID int64, messageID int, text string) error {
			return errors.New("message is not modified")
		}}
		flow := newFlow(store, &MockGenerator{}, bot)

		if err := flow.HandleSignSelected(ctx, testUser, testUser, testMsg, "Весы"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := len(store.recordsFor(testUser)); n != 1 {
			t.Errorf("expected the prediction to be recorded, got %d rows", n)
		}
	})

	t.Run("should report delivery errors of the final message", func(t *testing.T) {
		bot := &MockTelegramBot{SendMessageFunc: func(ctx context.Context, chatID int64, text string) error {
			return errors.New("bot was blocked by the user")
		}}
		flow := newFlow(NewMockPreferenceStore(), &MockGenerator{}, bot)

		err := flow.HandleSignSelected(ctx, testUser, testUser, testMsg, "Овен")
		if !errors.Is(err, domain.ErrDelivery) {
			t.Errorf("expected ErrDelivery, got %v", err)
		}
	})
}

func TestFlowUseCase_UnknownSign(t *testing.T) {
	ctx := context.Background()
	store := NewMockPreferenceStore()
	gen := &MockGenerator{}
	bot := &MockTelegramBot{}
	flow := newFlow(store, gen, bot)

	if err := flow.HandleStart(ctx, testUser, testUser, "Иван"); err != nil {
		t.Fatalf("HandleStart: %v", err)
	}
	before := len(bot.sent())

	for _, token := range []string{"Змееносец", "", "get_horoscope", "sign:Лев"} {
		if err := flow.HandleSignSelected(ctx, testUser, testUser, testMsg, token); err != nil {
			t.Errorf("token %q: unexpected error %v", token, err)
		}
	}

	if gen.calls() != 0 {
		t.Errorf("generator must not be called, got %d calls", gen.calls())
	}
	if store.totalRecords() != 0 {
		t.Errorf("storage must not be touched, got %d records", store.totalRecords())
	}
	if len(bot.sent()) != before || len(bot.Edited) != 0 {
		t.Error("no message may be emitted for unknown tokens")
	}
	if st := flow.State(ctx, testUser); st.Step != model.FlowAwaitingSignChoice {
		t.Errorf("state must not change, got %s", st.Step)
	}
}

func TestFlowUseCase_DuplicateTap(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	gen := &MockGenerator{GenerateFunc: func(ctx context.Context, sign model.ZodiacSign) (string, error) {
		entered <- struct{}{}
		<-release
		return "текст", nil
	}}
	store := NewMockPreferenceStore()
	bot := &MockTelegramBot{}
	flow := newFlow(store, gen, bot)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = flow.HandleSignSelected(ctx, testUser, testUser, testMsg, "Телец")
	}()
	<-entered

	if st := flow.State(ctx, testUser); st.Step != model.FlowAwaitingGeneration || st.Sign != model.Taurus {
		t.Errorf("expected awaiting generation for Телец, got %+v", st)
	}
	if err := flow.HandleSignSelected(ctx, testUser, testUser, testMsg, "Телец"); err != nil {
		t.Fatalf("second tap: %v", err)
	}
	close(release)
	wg.Wait()

	if gen.calls() != 1 {
		t.Errorf("expected a single generation, got %d", gen.calls())
	}
	if n := len(store.recordsFor(testUser)); n != 1 {
		t.Errorf("expected a single record, got %d", n)
	}
	var busy int
	for _, s := range bot.sent() {
		if s.Text == "⏳ Гороскоп уже составляется, подождите немного." {
			busy++
		}
	}
	if busy != 1 {
		t.Errorf("expected one busy notice, got %d", busy)
	}
}

func TestFlowUseCase_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMockPreferenceStore()
	gen := &MockGenerator{GenerateFunc: func(ctx context.Context, sign model.ZodiacSign) (string, error) {
		if sign == model.Scorpio {
			return "", domain.ErrGeneration
		}
		return "ok", nil
	}}
	bot := &MockTelegramBot{}
	flow := newFlow(store, gen, bot)

	var wg sync.WaitGroup
	for i, s := range model.AllSigns() {
		wg.Add(1)
		go func(uid int64, sign model.ZodiacSign) {
			defer wg.Done()
			_ = flow.HandleSignSelected(ctx, uid, uid, 0, string(sign))
		}(int64(i+1), s)
	}
	wg.Wait()

	if got := store.totalRecords(); got != 11 {
		t.Errorf("expected 11 records, got %d", got)
	}
	for i := range model.AllSigns() {
		uid := int64(i + 1)
		if st := flow.State(ctx, uid); st.Step != model.FlowIdle {
			t.Errorf("user %d: expected idle, got %s", uid, st.Step)
		}
	}
}

// slowStateRepo blocks GetState for one user until release is closed.
type slowStateRepo struct {
	mu      sync.Mutex
	states  map[int64]model.FlowState
	cleared []int64

	slowUser int64
	entered  chan struct{}
	release  chan struct{}
}

var _ repository.StateRepository = (*slowStateRepo)(nil)

func newSlowStateRepo(slowUser int64) *slowStateRepo {
	return &slowStateRepo{
		states:   map[int64]model.FlowState{},
		slowUser: slowUser,
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
}

func (r *slowStateRepo) GetState(ctx context.Context, tgID int64) (model.FlowState, error) {
	if tgID == r.slowUser {
		select {
		case r.entered <- struct{}{}:
		default:
		}
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[tgID]
	if !ok {
		return model.IdleState(), domain.ErrNotFound
	}
	return st, nil
}

func (r *slowStateRepo) SetState(ctx context.Context, tgID int64, st model.FlowState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[tgID] = st
	return nil
}

func (r *slowStateRepo) ClearState(ctx context.Context, tgID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, tgID)
	r.cleared = append(r.cleared, tgID)
	return nil
}

func TestFlowUseCase_SlowStateDoesNotBlockOtherUsers(t *testing.T) {
	ctx := context.Background()
	const slowUser, fastUser = int64(1), int64(2)
	states := newSlowStateRepo(slowUser)
	store := NewMockPreferenceStore()
	flow := usecase.NewFlowUseCase(store, &MockGenerator{}, &MockTelegramBot{}, states, newTestTranslator(), time.Minute, newTestLogger())

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_ = flow.HandleStart(ctx, slowUser, slowUser, "Анна")
	}()
	<-states.entered

	fastDone := make(chan error, 1)
	go func() {
		fastDone <- flow.HandleSignSelected(ctx, fastUser, fastUser, 0, "Лев")
	}()

	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("HandleSignSelected: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("another user's state lookup blocked this user")
	}
	if n := len(store.recordsFor(fastUser)); n != 1 {
		t.Errorf("expected one record for the fast user, got %d", n)
	}

	close(states.release)
	<-slowDone

	states.mu.Lock()
	defer states.mu.Unlock()
	if len(states.cleared) != 1 || states.cleared[0] != fastUser {
		t.Errorf("expected the finished generation to clear its state, got %v", states.cleared)
	}
	if states.states[slowUser].Step != model.FlowAwaitingSignChoice {
		t.Errorf("expected slow user awaiting sign choice, got %+v", states.states[slowUser])
	}
}
