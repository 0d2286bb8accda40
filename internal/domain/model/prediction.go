package model

import "time"

// PredictionRecord is one entry of the append-only horoscope history.
type PredictionRecord struct {
	ID         int64
	UserID     int64
	ZodiacSign ZodiacSign
	Text       string
	CreatedAt  time.Time
}

// Preview returns at most n runes of the prediction text.
func (r *PredictionRecord) Preview(n int) string {
	rs := []rune(r.Text)
	if n <= 0 || len(rs) <= n {
		return r.Text
	}
	return string(rs[:n]) + "…"
}
