// Package tabs owns the set of open tabs: identity, order, which one is
// active, and the notification stream other components consume. It is the
// tab primitive the trail engine navigates with, and it deliberately does
// not distinguish user-driven from programmatic activation: both raise the
// same event, which is exactly the ambiguity the engine's suppression
// tracker exists to resolve.
package tabs

import (
	"context"
	"sync"

	"github.com/vidyasagar/tabtrail/internal/trail"
)

// EventKind classifies tab notifications.
type EventKind int

const (
	EventActivated EventKind = iota
	EventRemoved
	EventUpdated
)

// Event is a tab notification. Title and FaviconURL are only set for
// EventUpdated; nil means the field did not change.
type Event struct {
	Kind       EventKind
	TabID      int
	Title      *string
	FaviconURL *string
}

// Tab is one open tab.
type Tab struct {
	ID         int
	Title      string
	URL        string
	FaviconURL string
}

// Manager tracks open tabs and the active tab.
type Manager struct {
	mu     sync.Mutex
	order  []int
	byID   map[int]*Tab
	active int // tab id; 0 when no tab exists
	nextID int
	events chan Event
}

// NewManager creates a manager with a single empty tab, already active.
func NewManager() *Manager {
	m := &Manager{
		byID: make(map[int]*Tab),
		// Sized so bursts (close + neighbor activation + metadata updates)
		// never block a sender while the router catches up.
		events: make(chan Event, 256),
	}
	id := m.createLocked()
	m.active = id
	m.emit(Event{Kind: EventActivated, TabID: id})
	return m
}

// Events returns the notification stream. Consume it from a dedicated
// goroutine; senders block once the buffer fills.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) emit(ev Event) {
	m.events <- ev
}

func (m *Manager) createLocked() int {
	m.nextID++
	t := &Tab{ID: m.nextID, Title: "New Tab"}
	m.byID[t.ID] = t

	// Insert after the active tab, like every browser does.
	at := len(m.order)
	for i, id := range m.order {
		if id == m.active {
			at = i + 1
			break
		}
	}
	m.order = append(m.order[:at], append([]int{t.ID}, m.order[at:]...)...)
	return t.ID
}

// Create opens a new tab after the active one and activates it.
func (m *Manager) Create() int {
	m.mu.Lock()
	id := m.createLocked()
	m.active = id
	m.mu.Unlock()

	m.emit(Event{Kind: EventActivated, TabID: id})
	return id
}

// Close removes a tab. The neighbor that takes its place becomes active when
// the closed tab was the active one. Returns false for an unknown tab or
// when it is the last tab left.
func (m *Manager) Close(id int) bool {
	m.mu.Lock()
	if _, ok := m.byID[id]; !ok || len(m.order) <= 1 {
		m.mu.Unlock()
		return false
	}

	idx := m.indexLocked(id)
	m.order = append(m.order[:idx], m.order[idx+1:]...)
	delete(m.byID, id)

	var activated int
	if m.active == id {
		if idx >= len(m.order) {
			idx = len(m.order) - 1
		}
		m.active = m.order[idx]
		activated = m.active
	}
	m.mu.Unlock()

	m.emit(Event{Kind: EventRemoved, TabID: id})
	if activated != 0 {
		m.emit(Event{Kind: EventActivated, TabID: activated})
	}
	return true
}

// Activate makes the tab with the given id the active tab.
func (m *Manager) Activate(id int) error {
	m.mu.Lock()
	if _, ok := m.byID[id]; !ok {
		m.mu.Unlock()
		return trail.ErrTabNotFound
	}
	m.active = id
	m.mu.Unlock()

	m.emit(Event{Kind: EventActivated, TabID: id})
	return nil
}

// ActivateNext cycles to the next tab in visual order.
func (m *Manager) ActivateNext() {
	m.activateNeighbor(+1)
}

// ActivatePrev cycles to the previous tab in visual order.
func (m *Manager) ActivatePrev() {
	m.activateNeighbor(-1)
}

func (m *Manager) activateNeighbor(dir int) {
	m.mu.Lock()
	if len(m.order) < 2 {
		m.mu.Unlock()
		return
	}
	idx := m.indexLocked(m.active)
	idx = (idx + dir + len(m.order)) % len(m.order)
	m.active = m.order[idx]
	id := m.active
	m.mu.Unlock()

	m.emit(Event{Kind: EventActivated, TabID: id})
}

// SetMetadata patches a tab's title, URL, and favicon. Empty strings leave
// the field unchanged. Raises EventUpdated when something changed.
func (m *Manager) SetMetadata(id int, title, url, faviconURL string) {
	m.mu.Lock()
	t, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	ev := Event{Kind: EventUpdated, TabID: id}
	if title != "" && t.Title != title {
		t.Title = title
		ev.Title = &title
	}
	if url != "" {
		t.URL = url
	}
	if faviconURL != "" && t.FaviconURL != faviconURL {
		t.FaviconURL = faviconURL
		ev.FaviconURL = &faviconURL
	}
	m.mu.Unlock()

	if ev.Title != nil || ev.FaviconURL != nil {
		m.emit(ev)
	}
}

// Get returns a copy of the tab with the given id.
func (m *Manager) Get(id int) (Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return Tab{}, false
	}
	return *t, true
}

// Active returns the active tab.
func (m *Manager) Active() (Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[m.active]
	if !ok {
		return Tab{}, false
	}
	return *t, true
}

// List returns all tabs in visual order.
func (m *Manager) List() []Tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Tab, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.byID[id])
	}
	return out
}

// Count returns the number of open tabs.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

func (m *Manager) indexLocked(id int) int {
	for i, v := range m.order {
		if v == id {
			return i
		}
	}
	return 0
}

// GetTab implements trail.TabAPI.
func (m *Manager) GetTab(ctx context.Context, id int) (trail.TabInfo, error) {
	t, ok := m.Get(id)
	if !ok {
		return trail.TabInfo{}, trail.ErrTabNotFound
	}
	return trail.TabInfo{ID: t.ID, Title: t.Title, FaviconURL: t.FaviconURL}, nil
}

// ActivateTab implements trail.TabAPI.
func (m *Manager) ActivateTab(ctx context.Context, id int) error {
	return m.Activate(id)
}

// ListOpenTabIDs implements trail.TabAPI.
func (m *Manager) ListOpenTabIDs(ctx context.Context) (map[int]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	open := make(map[int]struct{}, len(m.order))
	for _, id := range m.order {
		open[id] = struct{}{}
	}
	return open, nil
}
