package trail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeStore is an in-memory Store that keeps the persisted pair.
type fakeStore struct {
	mu       sync.Mutex
	records  []TabRecord
	cursor   int
	saves    int
	failSave error
}

func newFakeStore() *fakeStore {
	return &fakeStore{cursor: -1}
}

func (s *fakeStore) Load(ctx context.Context) ([]TabRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]TabRecord, len(s.records))
	copy(records, s.records)
	return records, s.cursor, nil
}

func (s *fakeStore) Save(ctx context.Context, records []TabRecord, cursor int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	s.records = make([]TabRecord, len(records))
	copy(s.records, records)
	s.cursor = cursor
	s.saves++
	return nil
}

func (s *fakeStore) setFailSave(err error) {
	s.mu.Lock()
	s.failSave = err
	s.mu.Unlock()
}

// fakeTabs simulates the tab primitive. ActivateTab raises the same
// activation notification a user switch raises, by calling onActivate;
// tests wire that to the engine to recreate the feedback loop.
type fakeTabs struct {
	mu         sync.Mutex
	open       map[int]TabInfo
	activated  []int
	onActivate func(id int)
}

func newFakeTabs(ids ...int) *fakeTabs {
	ft := &fakeTabs{open: make(map[int]TabInfo)}
	for _, id := range ids {
		ft.open[id] = TabInfo{ID: id, Title: titleFor(id)}
	}
	return ft
}

func titleFor(id int) string {
	return "tab-" + string(rune('a'+id))
}

func (f *fakeTabs) GetTab(ctx context.Context, id int) (TabInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.open[id]
	if !ok {
		return TabInfo{}, ErrTabNotFound
	}
	return info, nil
}

func (f *fakeTabs) ActivateTab(ctx context.Context, id int) error {
	f.mu.Lock()
	_, ok := f.open[id]
	if ok {
		f.activated = append(f.activated, id)
	}
	cb := f.onActivate
	f.mu.Unlock()
	if !ok {
		return ErrTabNotFound
	}
	if cb != nil {
		cb(id)
	}
	return nil
}

func (f *fakeTabs) ListOpenTabIDs(ctx context.Context) (map[int]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	open := make(map[int]struct{}, len(f.open))
	for id := range f.open {
		open[id] = struct{}{}
	}
	return open, nil
}

func (f *fakeTabs) close(id int) {
	f.mu.Lock()
	delete(f.open, id)
	f.mu.Unlock()
}

func newTestEngine(t *testing.T, store *fakeStore, tabs *fakeTabs, opts Options) *Engine {
	t.Helper()
	e := New(store, tabs, opts)
	tabs.mu.Lock()
	tabs.onActivate = e.NotifyActivated
	tabs.mu.Unlock()
	return e
}

// drain waits for the queue to settle, including commands enqueued by the
// activation feedback of commands already in flight.
func drain(t *testing.T, e *Engine) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var snap Snapshot
	var err error
	for i := 0; i < 2; i++ {
		snap, err = e.Snapshot(ctx)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	}
	return snap
}

func tabIDs(snap Snapshot) []int {
	ids := make([]int, len(snap.Records))
	for i, r := range snap.Records {
		ids[i] = r.TabID
	}
	return ids
}

func sameIDs(a []int, b ...int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func checkInvariants(t *testing.T, snap Snapshot) {
	t.Helper()
	if len(snap.Records) == 0 {
		if snap.CurrentIndex != -1 {
			t.Errorf("empty trail must have cursor -1, got %d", snap.CurrentIndex)
		}
		return
	}
	if snap.CurrentIndex < 0 || snap.CurrentIndex >= len(snap.Records) {
		t.Errorf("cursor %d out of range for %d records", snap.CurrentIndex, len(snap.Records))
	}
	for i := 1; i < len(snap.Records); i++ {
		if snap.Records[i].TabID == snap.Records[i-1].TabID {
			t.Errorf("adjacent duplicate tab %d at index %d", snap.Records[i].TabID, i)
		}
	}
}

func TestRecordActivation(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1, 2)
	e := newTestEngine(t, store, tabs, Options{})

	e.NotifyActivated(0)
	e.NotifyActivated(1)
	e.NotifyActivated(2)

	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 2, 1, 0) {
		t.Fatalf("records = %v, want [2 1 0]", tabIDs(snap))
	}
	if snap.CurrentIndex != 0 {
		t.Errorf("cursor = %d, want 0", snap.CurrentIndex)
	}
	if snap.Records[0].Title != titleFor(2) {
		t.Errorf("title = %q, want %q", snap.Records[0].Title, titleFor(2))
	}
}

func TestDuplicateActivationIsIdempotent(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1)
	e := newTestEngine(t, store, tabs, Options{})

	e.NotifyActivated(0)
	e.NotifyActivated(1)
	drain(t, e)

	// The OS refocusing the already-front tab must not grow the trail.
	e.NotifyActivated(1)
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 1, 0) {
		t.Fatalf("records = %v, want [1 0]", tabIDs(snap))
	}
}

func TestActivationDiscardsSkippedBranch(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1, 2, 3, 4)
	// Seed [A B C D] = ids [0 1 2 3], cursor at C (index 2).
	store.records = []TabRecord{{TabID: 0}, {TabID: 1}, {TabID: 2}, {TabID: 3}}
	store.cursor = 2
	e := newTestEngine(t, store, tabs, Options{})

	e.NotifyActivated(4)
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 4, 2, 3) {
		t.Fatalf("records = %v, want [4 2 3]", tabIDs(snap))
	}
	if snap.CurrentIndex != 0 {
		t.Errorf("cursor = %d, want 0", snap.CurrentIndex)
	}
}

func TestHistoryLimit(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1, 2, 3, 4)
	e := newTestEngine(t, store, tabs, Options{HistoryLimit: 3})

	for id := 0; id < 5; id++ {
		e.NotifyActivated(id)
	}
	snap := drain(t, e)
	checkInvariants(t, snap)
	// Only the oldest tail entries are dropped; order of the rest holds.
	if !sameIDs(tabIDs(snap), 4, 3, 2) {
		t.Fatalf("records = %v, want [4 3 2]", tabIDs(snap))
	}
}

func TestRemoveTabAdjustsCursor(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1, 2)
	store.records = []TabRecord{{TabID: 0}, {TabID: 1}, {TabID: 2}}
	store.cursor = 2
	e := newTestEngine(t, store, tabs, Options{})

	// Removing an entry before the cursor keeps it on the same logical tab.
	e.NotifyRemoved(1)
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 0, 2) {
		t.Fatalf("records = %v, want [0 2]", tabIDs(snap))
	}
	if snap.CurrentIndex != 1 {
		t.Errorf("cursor = %d, want 1 (still on tab 2)", snap.CurrentIndex)
	}
}

func TestRemoveTabCollapsesExposedDuplicate(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1)
	store.records = []TabRecord{{TabID: 0}, {TabID: 1}, {TabID: 0}}
	store.cursor = 0
	e := newTestEngine(t, store, tabs, Options{})

	e.NotifyRemoved(1)
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 0) {
		t.Fatalf("records = %v, want [0]", tabIDs(snap))
	}
}

func TestRemoveUnknownTabIsNoop(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0)
	drain(t, e)
	saves := store.saves

	e.NotifyRemoved(99)
	drain(t, e)
	if store.saves != saves {
		t.Errorf("no-op removal persisted: saves %d -> %d", saves, store.saves)
	}
}

func TestUpdateMetadata(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0)
	e.NotifyActivated(1)
	drain(t, e)

	title := "renamed"
	icon := "https://example.com/favicon.ico"
	e.NotifyUpdated(0, &title, &icon)
	snap := drain(t, e)
	checkInvariants(t, snap)
	rec := snap.Records[1]
	if rec.Title != "renamed" || rec.FaviconURL != icon {
		t.Errorf("record = %+v, want patched title and favicon", rec)
	}
	// The other entry is untouched.
	if snap.Records[0].Title != titleFor(1) {
		t.Errorf("unrelated record patched: %+v", snap.Records[0])
	}
}

func TestClearCollapsesToCurrentEntry(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1, 2)
	store.records = []TabRecord{{TabID: 0}, {TabID: 1}, {TabID: 2}}
	store.cursor = 1
	e := newTestEngine(t, store, tabs, Options{})

	e.Clear()
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 1) {
		t.Fatalf("records = %v, want [1]", tabIDs(snap))
	}
	if snap.CurrentIndex != 0 {
		t.Errorf("cursor = %d, want 0", snap.CurrentIndex)
	}
}

func TestClearEmptyTrail(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs()
	e := newTestEngine(t, store, tabs, Options{})

	e.Clear()
	snap := drain(t, e)
	if len(snap.Records) != 0 || snap.CurrentIndex != -1 {
		t.Errorf("clear on empty trail = %v cursor %d, want empty and -1", tabIDs(snap), snap.CurrentIndex)
	}
}

func TestBackForwardRoundTrip(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1, 2)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0)
	e.NotifyActivated(1)
	e.NotifyActivated(2)
	drain(t, e)

	e.GoBack()
	snap := drain(t, e)
	checkInvariants(t, snap)
	if snap.CurrentIndex != 1 {
		t.Fatalf("after goBack cursor = %d, want 1", snap.CurrentIndex)
	}

	e.GoForward()
	snap = drain(t, e)
	checkInvariants(t, snap)
	if snap.CurrentIndex != 0 {
		t.Fatalf("after goForward cursor = %d, want 0", snap.CurrentIndex)
	}
	// The programmatic activations must not have re-appended entries.
	if !sameIDs(tabIDs(snap), 2, 1, 0) {
		t.Errorf("records = %v, want [2 1 0]", tabIDs(snap))
	}
}

func TestGoBackAtOldestIsNoop(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0)
	drain(t, e)

	e.GoBack()
	snap := drain(t, e)
	if snap.CurrentIndex != 0 || len(snap.Records) != 1 {
		t.Errorf("goBack at oldest mutated trail: %v cursor %d", tabIDs(snap), snap.CurrentIndex)
	}
	tabs.mu.Lock()
	activations := len(tabs.activated)
	tabs.mu.Unlock()
	if activations != 0 {
		t.Errorf("goBack at oldest activated %d tabs, want 0", activations)
	}
}

func TestGoBackPrunesStaleEntries(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1, 2)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0) // C
	e.NotifyActivated(1) // B
	e.NotifyActivated(2) // A -> trail [2 1 0], cursor 0
	drain(t, e)

	// Tab 1 closes without the engine hearing about it.
	tabs.close(1)

	e.GoBack()
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 2, 0) {
		t.Fatalf("records = %v, want [2 0] (stale 1 pruned)", tabIDs(snap))
	}
	if snap.CurrentIndex != 1 {
		t.Errorf("cursor = %d, want 1 (landed on tab 0)", snap.CurrentIndex)
	}
}

func TestGoBackAllStaleTerminates(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1, 2)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0)
	e.NotifyActivated(1)
	e.NotifyActivated(2)
	drain(t, e)

	tabs.close(0)
	tabs.close(1)

	e.GoBack()
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 2) {
		t.Fatalf("records = %v, want [2]", tabIDs(snap))
	}
	if snap.CurrentIndex != 0 {
		t.Errorf("cursor = %d, want 0", snap.CurrentIndex)
	}
}

func TestGoBackSkipsDegenerateDuplicate(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1)
	// A stale middle entry hides a duplicate of the current tab behind it.
	store.records = []TabRecord{{TabID: 0}, {TabID: 1}, {TabID: 0}}
	store.cursor = 0
	e := newTestEngine(t, store, tabs, Options{})
	tabs.close(1)

	e.GoBack()
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 0) {
		t.Fatalf("records = %v, want [0]", tabIDs(snap))
	}
	if snap.CurrentIndex != 0 {
		t.Errorf("cursor = %d, want 0", snap.CurrentIndex)
	}
}

func TestForwardBeyondFrontIsNoop(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0)
	e.NotifyActivated(1)
	drain(t, e)

	e.GoForward()
	snap := drain(t, e)
	if snap.CurrentIndex != 0 {
		t.Errorf("goForward at front moved cursor to %d", snap.CurrentIndex)
	}
}

func TestSelfTriggeredActivationIsSuppressed(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0)
	e.NotifyActivated(1)
	drain(t, e)

	// GoBack activates tab 0 programmatically; the fake raises the same
	// activation event a user switch would. It must not be recorded.
	e.GoBack()
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 1, 0) {
		t.Fatalf("records = %v, want [1 0] (no re-append)", tabIDs(snap))
	}
	if snap.CurrentIndex != 1 {
		t.Errorf("cursor = %d, want 1", snap.CurrentIndex)
	}
}

func TestOpenByIndex(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1, 2)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0)
	e.NotifyActivated(1)
	e.NotifyActivated(2)
	drain(t, e)

	e.OpenByIndex(2)
	snap := drain(t, e)
	checkInvariants(t, snap)
	if snap.CurrentIndex != 2 {
		t.Errorf("cursor = %d, want 2", snap.CurrentIndex)
	}
	if !sameIDs(tabIDs(snap), 2, 1, 0) {
		t.Errorf("records = %v, want [2 1 0]", tabIDs(snap))
	}
}

func TestOpenByIndexOutOfBoundsIgnored(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0)
	drain(t, e)

	e.OpenByIndex(5)
	e.OpenByIndex(-1)
	snap := drain(t, e)
	if snap.CurrentIndex != 0 || len(snap.Records) != 1 {
		t.Errorf("out-of-bounds open mutated trail: %v cursor %d", tabIDs(snap), snap.CurrentIndex)
	}
}

func TestOpenByIndexPrunesStaleEntry(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1, 2)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0)
	e.NotifyActivated(1)
	e.NotifyActivated(2)
	drain(t, e)

	tabs.close(1)

	// Index 1 is stale; the entry behind it shifts into the slot and is tried.
	e.OpenByIndex(1)
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 2, 0) {
		t.Fatalf("records = %v, want [2 0]", tabIDs(snap))
	}
	if snap.CurrentIndex != 1 {
		t.Errorf("cursor = %d, want 1", snap.CurrentIndex)
	}
}

func TestOpenByIndexCollapsesExposedDuplicate(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1)
	// A stale middle entry hides a duplicate of the current tab behind it.
	store.records = []TabRecord{{TabID: 0}, {TabID: 1}, {TabID: 0}}
	store.cursor = 0
	e := newTestEngine(t, store, tabs, Options{})
	tabs.close(1)

	e.OpenByIndex(1)
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 0) {
		t.Fatalf("records = %v, want [0]", tabIDs(snap))
	}
	if snap.CurrentIndex != 0 {
		t.Errorf("cursor = %d, want 0", snap.CurrentIndex)
	}
}

func TestReconcileWithOpenTabs(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 2)
	store.records = []TabRecord{{TabID: 0}, {TabID: 1}, {TabID: 2}, {TabID: 3}}
	store.cursor = 3
	e := newTestEngine(t, store, tabs, Options{})

	e.Reconcile()
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 0, 2) {
		t.Fatalf("records = %v, want [0 2]", tabIDs(snap))
	}
	if snap.CurrentIndex != 1 {
		t.Errorf("cursor = %d, want 1 (clamped)", snap.CurrentIndex)
	}
}

func TestThrottleRejectsRapidNavigation(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1, 2)
	e := newTestEngine(t, store, tabs, Options{Throttle: time.Hour})
	e.NotifyActivated(0)
	e.NotifyActivated(1)
	e.NotifyActivated(2)
	drain(t, e)

	e.GoBack()
	e.GoBack() // inside the window of the first: rejected, not queued
	snap := drain(t, e)
	if snap.CurrentIndex != 1 {
		t.Errorf("cursor = %d, want 1 (second goBack rejected)", snap.CurrentIndex)
	}
}

func TestStateSurvivesEngineRestart(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0)
	e.NotifyActivated(1)
	e.GoBack()
	drain(t, e)

	// A fresh engine over the same store sees the committed state.
	e2 := newTestEngine(t, store, tabs, Options{})
	snap := drain(t, e2)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 1, 0) {
		t.Fatalf("records = %v, want [1 0]", tabIDs(snap))
	}
	if snap.CurrentIndex != 1 {
		t.Errorf("cursor = %d, want 1", snap.CurrentIndex)
	}
}

func TestSaveFailureLeavesCommittedState(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1, 2)
	e := newTestEngine(t, store, tabs, Options{})
	e.NotifyActivated(0)
	e.NotifyActivated(1)
	drain(t, e)

	store.setFailSave(errors.New("disk full"))
	e.NotifyActivated(2)
	snap := drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 1, 0) {
		t.Fatalf("records after failed save = %v, want committed [1 0]", tabIDs(snap))
	}

	// The engine keeps serving commands once the store recovers.
	store.setFailSave(nil)
	e.NotifyActivated(2)
	snap = drain(t, e)
	checkInvariants(t, snap)
	if !sameIDs(tabIDs(snap), 2, 1, 0) {
		t.Fatalf("records = %v, want [2 1 0]", tabIDs(snap))
	}
}

func TestSubscribersReceiveCommittedSnapshots(t *testing.T) {
	store := newFakeStore()
	tabs := newFakeTabs(0, 1)
	e := newTestEngine(t, store, tabs, Options{})

	var mu sync.Mutex
	var seen [][]int
	e.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, tabIDs(s))
		mu.Unlock()
	})

	e.NotifyActivated(0)
	e.NotifyActivated(1)
	drain(t, e)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("subscriber saw no snapshots")
	}
	last := seen[len(seen)-1]
	if !sameIDs(last, 1, 0) {
		t.Fatalf("last snapshot = %v, want [1 0]", last)
	}
}
