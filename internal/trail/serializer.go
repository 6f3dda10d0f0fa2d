package trail

import (
	"context"
	"log/slog"
	"sync"
)

// serializer is a single-consumer FIFO command queue. Commands run one at a
// time, in submission order, each to completion before the next starts. A
// command body is the only legal place to read-modify-write the trail state:
// loads and saves suspend at I/O, and two uncoordinated call chains
// interleaving around those suspension points would lose updates.
//
// A failing command is logged and swallowed; it neither aborts the queue nor
// blocks the commands behind it. Submitting from inside a running command is
// allowed (the tab layer's event callbacks do exactly that).
type serializer struct {
	log *slog.Logger

	mu       sync.Mutex
	queue    []command
	draining bool
}

type command struct {
	name string
	run  func(ctx context.Context) error
}

func newSerializer(log *slog.Logger) *serializer {
	return &serializer{log: log}
}

// submit appends a command and starts the drain loop if it is not running.
// It never blocks.
func (s *serializer) submit(name string, run func(ctx context.Context) error) {
	s.mu.Lock()
	s.queue = append(s.queue, command{name: name, run: run})
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	go s.drain()
}

func (s *serializer) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		cmd := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := cmd.run(context.Background()); err != nil {
			s.log.Error("trail command failed", "command", cmd.name, "err", err)
		}
	}
}
