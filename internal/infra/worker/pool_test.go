//go:build !integration

package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(3, testLogger())
	p.Start(ctx)
	defer p.Stop()

	var done int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		if err := p.Submit(ctx, func(ctx context.Context) error {
			defer wg.Done()
			atomic.AddInt32(&done, 1)
			return nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()
	if done != 20 {
		t.Errorf("expected 20 tasks, got %d", done)
	}
}

func TestPool_SurvivesFailingTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(1, testLogger())
	p.Start(ctx)
	defer p.Stop()

	_ = p.Submit(ctx, func(ctx context.Context) error { return errors.New("boom") })
	_ = p.Submit(ctx, func(ctx context.Context) error { panic("kaboom") })

	ran := make(chan struct{})
	_ = p.Submit(ctx, func(ctx context.Context) error { close(ran); return nil })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive a failing task")
	}
}

func TestPool_Submit(t *testing.T) {
	t.Run("should reject nil task", func(t *testing.T) {
		p := NewPool(1, testLogger())
		if err := p.Submit(context.Background(), nil); !errors.Is(err, ErrNilTask) {
			t.Errorf("expected ErrNilTask, got %v", err)
		}
	})

	t.Run("should honor context while the queue is full", func(t *testing.T) {
		p := NewPool(1, testLogger()) // not started, queue holds 4
		for i := 0; i < 4; i++ {
			if err := p.Submit(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
				t.Fatalf("Submit %d: %v", i, err)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := p.Submit(ctx, func(ctx context.Context) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("should refuse work after stop", func(t *testing.T) {
		p := NewPool(1, testLogger())
		p.Start(context.Background())
		p.Stop()
		p.Stop()
		if err := p.Submit(context.Background(), func(ctx context.Context) error { return nil }); !errors.Is(err, ErrPoolStopped) {
			t.Errorf("expected ErrPoolStopped, got %v", err)
		}
	})
}
