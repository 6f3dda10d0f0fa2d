package trail

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultHistoryLimit bounds the trail length; the oldest entries are
// dropped first when it is exceeded.
const DefaultHistoryLimit = 1000

// Options configures an Engine.
type Options struct {
	// HistoryLimit caps the trail length. Zero or negative means
	// DefaultHistoryLimit.
	HistoryLimit int
	// Throttle rejects back/forward commands issued within this window of the
	// last accepted one. A best-effort guard against key repeat, not a
	// correctness mechanism. Zero disables it.
	Throttle time.Duration
	// Logger receives command failures. Nil means discard.
	Logger *slog.Logger
}

// Engine owns the activation trail. It is constructed once per process; all
// state lives on the instance and every mutation runs through its serializer.
type Engine struct {
	store Store
	tabs  TabAPI
	log   *slog.Logger

	limit    int
	throttle time.Duration

	sz      *serializer
	tracker *suppressTracker

	// records and cursor are only touched from inside serialized command
	// bodies, and are reloaded from the store at the start of each one.
	records []TabRecord
	cursor  int

	throttleMu   sync.Mutex
	lastAccepted time.Time

	obsMu     sync.Mutex
	observers []func(Snapshot)
}

// New creates an engine over the given store and tab primitive.
func New(store Store, tabs TabAPI, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Engine{
		store:    store,
		tabs:     tabs,
		log:      log,
		limit:    limit,
		throttle: opts.Throttle,
		sz:       newSerializer(log),
		tracker:  newSuppressTracker(),
		cursor:   -1,
	}
}

// Subscribe registers an observer called with a snapshot after every
// committed mutation. Observers run on the serializer goroutine and must not
// block.
func (e *Engine) Subscribe(fn func(Snapshot)) {
	e.obsMu.Lock()
	e.observers = append(e.observers, fn)
	e.obsMu.Unlock()
}

func (e *Engine) notify() {
	snap := e.snapshot()
	e.obsMu.Lock()
	observers := make([]func(Snapshot), len(e.observers))
	copy(observers, e.observers)
	e.obsMu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

// Snapshot returns the current trail on demand. It round-trips through the
// command queue, so it observes a fully committed state.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	ch := make(chan Snapshot, 1)
	e.sz.submit("snapshot", func(ctx context.Context) error {
		if err := e.reload(ctx); err != nil {
			return err
		}
		ch <- e.snapshot()
		return nil
	})
	select {
	case snap := <-ch:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// submit wraps a mutating command with the mandatory reload.
func (e *Engine) submit(name string, run func(ctx context.Context) error) {
	e.sz.submit(name, func(ctx context.Context) error {
		if err := e.reload(ctx); err != nil {
			return err
		}
		return run(ctx)
	})
}

/// accept applies the navigation throttle: commands inside the window of the
// last accepted command are rejected, not queued.
func (e *Engine) accept() bool {
	if e.throttle <= 0 {
		return true
	}
	e.throttleMu.Lock()
	defer e.throttleMu.Unlock()
	now := time.Now()
	if now.Sub(e.lastAccepted) < e.throttle {
		return false
	}
	e.lastAccepted = now
	return true
}

// GoBack steps the cursor one entry further back in the trail and activates
// that tab. Entries whose tabs are gone are pruned on the way, discovered at
// activation time rather than from a snapshot: a tab can close between any
// two suspension points.
func (e *Engine) GoBack() {
	if !e.accept() {
		return
	}
	e.submit("goBack", func(ctx context.Context) error {
		return e.step(ctx, +1)
	})
}

// GoForward steps the cursor one entry toward the front, symmetric to GoBack.
func (e *Engine) GoForward() {
	if !e.accept() {
		return
	}
	e.submit("goForward", func(ctx context.Context) error {
		return e.step(ctx, -1)
	})
}

// step walks the trail from the cursor in the given direction (+1 back,
// -1 forward), pruning stale or degenerate-duplicate candidates, until an
// activation succeeds or the trail runs out. A bounded loop rather than
// recursion: an all-stale trail would otherwise grow the stack one frame per
// dead entry.
func (e *Engine) step(ctx context.Context, dir int) error {
	base := e.cursor
	cand := base + dir
	dirty := false

	for {
		if cand < 0 || cand >= len(e.records) {
			// Already at the oldest (or newest) surviving entry.
			if dirty {
				return e.persist(ctx)
			}
			return nil
		}

		// Degenerate duplicate: stepping onto an entry for the tab the user
		// is already on. Drop it and keep walking.
		if base >= 0 && base < len(e.records) && e.records[cand].TabID == e.records[base].TabID {
			e.removeAt(cand)
			dirty = true
			if dir < 0 {
				base--
				cand--
			}
			continue
		}

		id := e.records[cand].TabID
		e.tracker.markProgrammatic(id)
		if err := e.tabs.ActivateTab(ctx, id); err != nil {
			// No activation event will arrive for a failed call.
			e.tracker.unmark(id)
			e.log.Debug("pruning stale trail entry", "tab", id, "err", err)
			e.removeAt(cand)
			dirty = true
			if dir < 0 {
				base--
				cand--
			}
			continue
		}

		e.cursor = cand
		return e.persist(ctx)
	}
}

// OpenByIndex activates the trail entry at the given index directly. Out of
// range indexes are ignored. Stale entries at the index are pruned and the
// entry that shifts into their place is tried next.
func (e *Engine) OpenByIndex(index int) {
	e.submit("openByIndex", func(ctx context.Context) error {
		dirty := false
		for index >= 0 && index < len(e.records) {
			id := e.records[index].TabID
			e.tracker.markProgrammatic(id)
			if err := e.tabs.ActivateTab(ctx, id); err != nil {
				e.tracker.unmark(id)
				e.log.Debug("pruning stale trail entry", "tab", id, "err", err)
				e.removeAt(index)
				// Pruning can expose a consecutive duplicate around the gap;
				// collapse it before retrying.
				if index > 0 && index < len(e.records) &&
					e.records[index].TabID == e.records[index-1].TabID {
					e.removeAt(index)
				}
				dirty = true
				continue
			}
			e.cursor = index
			return e.persist(ctx)
		}
		if dirty {
			return e.persist(ctx)
		}
		return nil
	})
}

// Clear collapses the trail to the current entry (or to nothing).
func (e *Engine) Clear() {
	e.submit("clear", e.clear)
}

// Reconcile drops entries for tabs that are no longer open.
func (e *Engine) Reconcile() {
	e.submit("reconcile", func(ctx context.Context) error {
		open, err := e.tabs.ListOpenTabIDs(ctx)
		if err != nil {
			return err
		}
		return e.reconcile(ctx, open)
	})
}
