package model

import "time"

type FlowStep string

const (
	FlowIdle               FlowStep = "idle"
	FlowAwaitingSignChoice FlowStep = "awaiting_sign_choice"
	FlowAwaitingGeneration FlowStep = "awaiting_generation"
)

// FlowState is the conversation position of a single user.
type FlowState struct {
	Step      FlowStep   `json:"step"`
	Sign      ZodiacSign `json:"sign,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func IdleState() FlowState {
	return FlowState{Step: FlowIdle, UpdatedAt: time.Now()}
}

// CanSelectSign reports whether a sign callback may start a generation.
// A second tap while a prediction is being generated is dropped.
func (s FlowState) CanSelectSign() bool {
	return s.Step != FlowAwaitingGeneration
}
