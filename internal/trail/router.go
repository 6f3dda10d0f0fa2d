package trail

import "context"

// TabEventKind classifies notifications from the tab layer.
type TabEventKind int

const (
	TabActivated TabEventKind = iota
	TabRemoved
	TabUpdated
)

// TabEvent is a notification from the tab layer. Title and FaviconURL are
// only set for TabUpdated, and nil means "unchanged".
type TabEvent struct {
	Kind       TabEventKind
	TabID      int
	Title      *string
	FaviconURL *string
}

// Route maps a tab event onto the matching serialized command. Safe to call
// from any goroutine, including from inside a running command: routing only
// enqueues.
func (e *Engine) Route(ev TabEvent) {
	switch ev.Kind {
	case TabActivated:
		e.NotifyActivated(ev.TabID)
	case TabRemoved:
		e.NotifyRemoved(ev.TabID)
	case TabUpdated:
		e.NotifyUpdated(ev.TabID, ev.Title, ev.FaviconURL)
	}
}

// NotifyActivated records a tab activation. Activations the engine itself
// caused are consumed by the suppression tracker instead of being recorded;
// the event source cannot distinguish cause, so the engine has to.
func (e *Engine) NotifyActivated(tabID int) {
	e.submit("activated", func(ctx context.Context) error {
		if e.tracker.shouldSuppress(tabID) {
			return nil
		}
		return e.recordActivation(ctx, tabID)
	})
}

// NotifyRemoved drops the closed tab's entries from the trail.
func (e *Engine) NotifyRemoved(tabID int) {
	e.submit("removed", func(ctx context.Context) error {
		return e.removeTab(ctx, tabID)
	})
}

// NotifyUpdated patches the tab's title and favicon in place.
func (e *Engine) NotifyUpdated(tabID int, title, faviconURL *string) {
	e.submit("updated", func(ctx context.Context) error {
		return e.updateMetadata(ctx, tabID, title, faviconURL)
	})
}
