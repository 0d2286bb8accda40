package model

import "time"

type DeliveryStatus string

const (
	DeliveryDelivered        DeliveryStatus = "delivered"
	DeliveryGenerationFailed DeliveryStatus = "generation_failed"
	DeliveryFailed           DeliveryStatus = "delivery_failed"
	// DeliveryUnrecorded means the user got the message but the history write failed.
	DeliveryUnrecorded DeliveryStatus = "unrecorded"
)

// DeliveryOutcome is the tagged result of one subscriber's iteration in a run.
type DeliveryOutcome struct {
	UserID     int64
	ZodiacSign ZodiacSign
	Status     DeliveryStatus
	RecordID   int64
	Err        error
}

func (o DeliveryOutcome) Delivered() bool {
	return o.Status == DeliveryDelivered || o.Status == DeliveryUnrecorded
}

// BroadcastReport summarizes one daily run.
type BroadcastReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []DeliveryOutcome
	// Err is set when the run could not start, e.g. the subscriber list failed to load.
	Err error
}

func (r *BroadcastReport) Count(status DeliveryStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func (r *BroadcastReport) Attempted() int { return len(r.Outcomes) }

func (r *BroadcastReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
