// Package trail maintains the activation trail: an ordered, bounded record of
// tab activations with a cursor that supports back/forward/jump navigation.
// All mutation of the trail runs through a single-consumer command queue so
// that concurrent tab events, user commands, and the engine's own programmatic
// activations never interleave their read-modify-write cycles.
package trail

import (
	"context"
	"errors"
)

// ErrTabNotFound is reported by a TabAPI when the requested tab no longer
// exists. It is expected and recoverable: the engine prunes the stale entry
// and retries.
var ErrTabNotFound = errors.New("tab not found")

// TabRecord is one entry in the activation trail. TabID is immutable; Title
// and FaviconURL are patched in place when the tab's metadata changes.
type TabRecord struct {
	TabID      int    `json:"tabId"`
	Title      string `json:"title"`
	FaviconURL string `json:"faviconUrl,omitempty"`
}

// TabInfo is the metadata the tab layer reports for an open tab.
type TabInfo struct {
	ID         int
	Title      string
	FaviconURL string
}

// Snapshot is a read-only view of the trail, pushed to observers after every
// committed mutation. Index 0 is the most recent activation; CurrentIndex is
// -1 only when Records is empty.
type Snapshot struct {
	Records      []TabRecord
	CurrentIndex int
}

// Store persists the trail. Records and cursor are written together as one
// atomic unit; Load on first run reports an empty trail with cursor -1.
// The persisted copy is the source of truth: the engine reloads it before
// every command rather than trusting its in-memory copy.
type Store interface {
	Load(ctx context.Context) ([]TabRecord, int, error)
	Save(ctx context.Context, records []TabRecord, currentIndex int) error
}

// TabAPI is the tab primitive the engine navigates with. ActivateTab raises
// the same activation event a user-driven switch raises, which is why the
// engine marks its own calls programmatic before issuing them.
type TabAPI interface {
	GetTab(ctx context.Context, id int) (TabInfo, error)
	ActivateTab(ctx context.Context, id int) error
	ListOpenTabIDs(ctx context.Context) (map[int]struct{}, error)
}
