//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"telegram-horoscope-bot/internal/domain"
)

// --- ZodiacSign Tests ---

func TestParseSign(t *testing.T) {
	t.Run("should accept every menu sign", func(t *testing.T) {
		signs := AllSigns()
		if len(signs) != 12 {
			t.Fatalf("expected 12 signs, got %d", len(signs))
		}
		for _, s := range signs {
			got, ok := ParseSign(string(s))
			if !ok {
				t.Errorf("expected %q to parse", s)
			}
			if got != s {
				t.Errorf("expected %q, got %q", s, got)
			}
		}
	})

	t.Run("should trim surrounding spaces", func(t *testing.T) {
		got, ok := ParseSign("  Лев ")
		if !ok || got != Leo {
			t.Errorf("expected Лев, got %q (ok=%v)", got, ok)
		}
	})

	t.Run("should reject unknown tokens", func(t *testing.T) {
		for _, token := range []string{"", "Змееносец", "get_horoscope", "лев"} {
			if _, ok := ParseSign(token); ok {
				t.Errorf("expected %q to be rejected", token)
			}
		}
	})

	t.Run("AllSigns returns a copy", func(t *testing.T) {
		signs := AllSigns()
		signs[0] = "mutated"
		if AllSigns()[0] != Aries {
			t.Error("AllSigns must not expose the internal slice")
		}
	})
}

// --- UserPreference Tests ---

func TestNewUserPreference(t *testing.T) {
	t.Run("should create a preference with equal timestamps", func(t *testing.T) {
		p, err := NewUserPreference(42, Virgo)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.UserID != 42 || p.ZodiacSign != Virgo {
			t.Errorf("unexpected preference: %+v", p)
		}
		if !p.CreatedAt.Equal(p.UpdatedAt) {
			t.Error("expected created_at == updated_at for a new preference")
		}
		if !p.HasSign() {
			t.Error("expected HasSign to be true")
		}
	})

	t.Run("should fail with zero user id", func(t *testing.T) {
		_, err := NewUserPreference(0, Virgo)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should fail with unknown sign", func(t *testing.T) {
		_, err := NewUserPreference(1, ZodiacSign("Змееносец"))
		if !errors.Is(err, domain.ErrUnknownSign) {
			t.Errorf("expected ErrUnknownSign, got %v", err)
		}
	})
}

// --- PredictionRecord Tests ---

func TestPredictionRecordPreview(t *testing.T) {
	r := &PredictionRecord{Text: "Сегодня удачный день"}
	if got := r.Preview(7); got != "Сегодня…" {
		t.Errorf("unexpected preview %q", got)
	}
	if got := r.Preview(100); got != r.Text {
		t.Errorf("expected full text, got %q", got)
	}
}

// --- FlowState Tests ---

func TestFlowStateCanSelectSign(t *testing.T) {
	cases := map[FlowStep]bool{
		FlowIdle:               true,
		FlowAwaitingSignChoice: true,
		FlowAwaitingGeneration: false,
	}
	for step, want := range cases {
		if got := (FlowState{Step: step}).CanSelectSign(); got != want {
			t.Errorf("step %s: expected %v, got %v", step, want, got)
		}
	}
}

// --- BroadcastReport Tests ---

func TestBroadcastReportCounts(t *testing.T) {
	start := time.Now()
	r := &BroadcastReport{
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Outcomes: []DeliveryOutcome{
			{UserID: 1, Status: DeliveryDelivered},
			{UserID: 2, Status: DeliveryGenerationFailed},
			{UserID: 3, Status: DeliveryUnrecorded},
			{UserID: 4, Status: DeliveryDelivered},
		},
	}
	if r.Attempted() != 4 {
		t.Errorf("expected 4 attempted, got %d", r.Attempted())
	}
	if r.Count(DeliveryDelivered) != 2 {
		t.Errorf("expected 2 delivered, got %d", r.Count(DeliveryDelivered))
	}
	if !r.Outcomes[2].Delivered() {
		t.Error("unrecorded outcome still counts as delivered")
	}
	if r.Outcomes[1].Delivered() {
		t.Error("generation failure must not count as delivered")
	}
	if r.Duration() != 3*time.Second {
		t.Errorf("unexpected duration %s", r.Duration())
	}
}
