package ai

import (
	"context"

	"telegram-horoscope-bot/internal/domain/ports/adapter"
	"telegram-horoscope-bot/internal/infra/metrics"
)

// Compile-time check
var _ adapter.AIServiceAdapter = (*limitedAI)(nil)

type limitedAI struct {
	inner adapter.AIServiceAdapter
	sem   chan struct{}
}

// NewLimitedAI caps concurrent Chat calls; waiting callers give up when ctx ends.
func NewLimitedAI(inner adapter.AIServiceAdapter, maxConcurrent int) adapter.AIServiceAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) Provider() string { return l.inner.Provider() }
func (l *limitedAI) Model() string    { return l.inner.Model() }

func (l *limitedAI) Chat(ctx context.Context, messages []adapter.Message) (string, adapter.Usage, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}
	metrics.AIInflightInc()
	defer func() {
		metrics.AIInflightDec()
		<-l.sem
	}()
	return l.inner.Chat(ctx, messages)
}
