package tabs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vidyasagar/tabtrail/internal/trail"
)

func nextEvent(t *testing.T, m *Manager) Event {
	t.Helper()
	select {
	case ev := <-m.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func TestNewManagerActivatesInitialTab(t *testing.T) {
	m := NewManager()
	ev := nextEvent(t, m)
	if ev.Kind != EventActivated || ev.TabID != 1 {
		t.Errorf("event = %+v, want activation of tab 1", ev)
	}
	if m.Count() != 1 {
		t.Errorf("count = %d, want 1", m.Count())
	}
}

func TestCreateInsertsAfterActiveAndActivates(t *testing.T) {
	m := NewManager()
	nextEvent(t, m)

	id := m.Create()
	ev := nextEvent(t, m)
	if ev.Kind != EventActivated || ev.TabID != id {
		t.Errorf("event = %+v, want activation of %d", ev, id)
	}
	active, ok := m.Active()
	if !ok || active.ID != id {
		t.Errorf("active = %+v, want id %d", active, id)
	}
}

func TestCloseActiveActivatesNeighbor(t *testing.T) {
	m := NewManager()
	nextEvent(t, m)
	second := m.Create()
	nextEvent(t, m)

	if !m.Close(second) {
		t.Fatal("close failed")
	}
	ev := nextEvent(t, m)
	if ev.Kind != EventRemoved || ev.TabID != second {
		t.Fatalf("event = %+v, want removal of %d", ev, second)
	}
	ev = nextEvent(t, m)
	if ev.Kind != EventActivated || ev.TabID != 1 {
		t.Errorf("event = %+v, want activation of neighbor 1", ev)
	}
}

func TestCloseLastTabRefused(t *testing.T) {
	m := NewManager()
	nextEvent(t, m)
	if m.Close(1) {
		t.Error("closed the last tab")
	}
}

func TestActivateUnknownTab(t *testing.T) {
	m := NewManager()
	nextEvent(t, m)
	if err := m.Activate(42); !errors.Is(err, trail.ErrTabNotFound) {
		t.Errorf("err = %v, want ErrTabNotFound", err)
	}
}

func TestSetMetadataEmitsOnlyChanges(t *testing.T) {
	m := NewManager()
	nextEvent(t, m)

	m.SetMetadata(1, "Go Blog", "https://go.dev/blog", "")
	ev := nextEvent(t, m)
	if ev.Kind != EventUpdated || ev.Title == nil || *ev.Title != "Go Blog" {
		t.Errorf("event = %+v, want title update", ev)
	}
	if ev.FaviconURL != nil {
		t.Errorf("favicon reported changed: %+v", ev)
	}

	// Same title again: nothing changed, nothing emitted.
	m.SetMetadata(1, "Go Blog", "", "")
	select {
	case ev := <-m.Events():
		t.Errorf("unexpected event %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestTabAPI(t *testing.T) {
	m := NewManager()
	nextEvent(t, m)
	second := m.Create()
	nextEvent(t, m)
	ctx := context.Background()

	info, err := m.GetTab(ctx, second)
	if err != nil || info.ID != second {
		t.Errorf("GetTab = %+v, %v", info, err)
	}
	if _, err := m.GetTab(ctx, 99); !errors.Is(err, trail.ErrTabNotFound) {
		t.Errorf("GetTab unknown = %v, want ErrTabNotFound", err)
	}

	open, err := m.ListOpenTabIDs(ctx)
	if err != nil {
		t.Fatalf("ListOpenTabIDs: %v", err)
	}
	if len(open) != 2 {
		t.Errorf("open = %v, want 2 ids", open)
	}

	if err := m.ActivateTab(ctx, 1); err != nil {
		t.Fatalf("ActivateTab: %v", err)
	}
	ev := nextEvent(t, m)
	if ev.Kind != EventActivated || ev.TabID != 1 {
		t.Errorf("event = %+v, want activation of 1", ev)
	}
}
