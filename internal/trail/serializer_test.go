package trail

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitIdle(t *testing.T, s *serializer) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		idle := !s.draining && len(s.queue) == 0
		s.mu.Unlock()
		if idle {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("serializer did not drain")
}

func TestSerializerRunsInSubmissionOrder(t *testing.T) {
	s := newSerializer(discardLogger())
	var mu sync.Mutex
	var order []int

	for i := 0; i < 20; i++ {
		i := i
		s.submit("cmd", func(ctx context.Context) error {
			// Stagger the early commands so later submissions pile up behind
			// a running command instead of racing an empty queue.
			if i < 3 {
				time.Sleep(5 * time.Millisecond)
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	waitIdle(t, s)
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 20 {
		t.Fatalf("ran %d commands, want 20", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestSerializerSwallowsFailures(t *testing.T) {
	s := newSerializer(discardLogger())
	ran := make(chan struct{})

	s.submit("boom", func(ctx context.Context) error {
		return errors.New("boom")
	})
	s.submit("after", func(ctx context.Context) error {
		close(ran)
		return nil
	})

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("command after a failure never ran")
	}
}

func TestSerializerAllowsSubmitFromCommand(t *testing.T) {
	s := newSerializer(discardLogger())
	inner := make(chan struct{})

	s.submit("outer", func(ctx context.Context) error {
		s.submit("inner", func(ctx context.Context) error {
			close(inner)
			return nil
		})
		return nil
	})

	select {
	case <-inner:
	case <-time.After(5 * time.Second):
		t.Fatal("nested command never ran")
	}
}
