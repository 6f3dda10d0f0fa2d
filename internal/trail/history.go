package trail

import (
	"context"
	"fmt"
)

// The methods in this file mutate the in-memory trail and its persisted
// mirror. They must only be called from inside a serialized command body.

// reload replaces the in-memory trail with the persisted copy. Every command
// starts with a reload: the process may have been suspended since the last
// command ran, and the store gives no read-your-writes guarantee across such
// gaps.
func (e *Engine) reload(ctx context.Context) error {
	records, cursor, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading trail: %w", err)
	}
	e.records = records
	e.cursor = cursor
	e.revalidate()
	return nil
}

// persist writes records and cursor as one atomic unit, then notifies
// observers. Mutations are never visible outward before they are persisted.
func (e *Engine) persist(ctx context.Context) error {
	if err := e.store.Save(ctx, e.records, e.cursor); err != nil {
		return fmt.Errorf("saving trail: %w", err)
	}
	e.notify()
	return nil
}

// recordActivation appends a genuine (user-driven) activation at the front.
func (e *Engine) recordActivation(ctx context.Context, tabID int) error {
	dirty := false

	// Activating a new tab while positioned behind the front abandons the
	// skipped-forward branch: keep the suffix from the cursor onward, exactly
	// like a page-history stack discards its future on a new navigation.
	if e.cursor > 0 {
		e.records = append([]TabRecord(nil), e.records[e.cursor:]...)
		e.cursor = 0
		dirty = true
	}

	// Consecutive duplicate (the OS refocusing the tab already at the front).
	if len(e.records) > 0 && e.records[0].TabID == tabID {
		if dirty {
			return e.persist(ctx)
		}
		return nil
	}

	info, err := e.tabs.GetTab(ctx, tabID)
	if err != nil {
		// The tab vanished between the event firing and this command running.
		// Recording a dead entry would only create work for the pruner.
		e.log.Debug("activation for unknown tab dropped", "tab", tabID, "err", err)
		if dirty {
			return e.persist(ctx)
		}
		return nil
	}

	rec := TabRecord{TabID: tabID, Title: info.Title, FaviconURL: info.FaviconURL}
	e.records = append([]TabRecord{rec}, e.records...)
	if len(e.records) > e.limit {
		e.records = e.records[:e.limit]
	}
	e.cursor = 0
	return e.persist(ctx)
}

// removeTab filters every entry for the closed tab out of the trail, keeping
// the cursor on the same logical entry.
func (e *Engine) removeTab(ctx context.Context, tabID int) error {
	kept := e.records[:0:0]
	removedBefore := 0
	removed := false
	for i, r := range e.records {
		drop := r.TabID == tabID
		// Filtering can expose a consecutive duplicate; collapse it so the
		// adjacency invariant survives the removal.
		if !drop && len(kept) > 0 && kept[len(kept)-1].TabID == r.TabID {
			drop = true
		}
		if drop {
			removed = true
			if i < e.cursor {
				removedBefore++
			}
			continue
		}
		kept = append(kept, r)
	}
	if !removed {
		return nil
	}
	e.records = kept
	e.cursor -= removedBefore
	e.revalidate()
	return e.persist(ctx)
}

// updateMetadata patches title and favicon of every entry for the tab.
// nil means "leave unchanged". No-op when the tab has no entries.
func (e *Engine) updateMetadata(ctx context.Context, tabID int, title, faviconURL *string) error {
	changed := false
	for i := range e.records {
		if e.records[i].TabID != tabID {
			continue
		}
		if title != nil && e.records[i].Title != *title {
			e.records[i].Title = *title
			changed = true
		}
		if faviconURL != nil && e.records[i].FaviconURL != *faviconURL {
			e.records[i].FaviconURL = *faviconURL
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return e.persist(ctx)
}

// clear collapses the trail to the current entry, or to nothing when there is
// no current entry.
func (e *Engine) clear(ctx context.Context) error {
	if e.cursor >= 0 && e.cursor < len(e.records) {
		e.records = []TabRecord{e.records[e.cursor]}
		e.cursor = 0
	} else {
		e.records = nil
		e.cursor = -1
	}
	return e.persist(ctx)
}

// reconcile drops entries whose tabs are no longer open. Cleanup for trails
// reloaded after a restart, when tabs may have closed while no process was
// listening for their removal events.
func (e *Engine) reconcile(ctx context.Context, open map[int]struct{}) error {
	kept := e.records[:0:0]
	removed := false
	for _, r := range e.records {
		if _, ok := open[r.TabID]; !ok {
			removed = true
			continue
		}
		if len(kept) > 0 && kept[len(kept)-1].TabID == r.TabID {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	if !removed {
		return nil
	}
	e.records = kept
	e.revalidate()
	return e.persist(ctx)
}

// removeAt drops the entry at index i, adjusting the cursor the same way
// removeTab does. Used by the navigation pruner.
func (e *Engine) removeAt(i int) {
	e.records = append(e.records[:i], e.records[i+1:]...)
	if i < e.cursor {
		e.cursor--
	}
	e.revalidate()
}

// revalidate clamps the cursor back into [-1, len) after a bulk mutation:
// -1 iff the trail is empty, otherwise within the slice.
func (e *Engine) revalidate() {
	switch {
	case len(e.records) == 0:
		e.cursor = -1
	case e.cursor < 0:
		e.cursor = 0
	case e.cursor >= len(e.records):
		e.cursor = len(e.records) - 1
	}
}

// snapshot returns a defensive copy of the current trail.
func (e *Engine) snapshot() Snapshot {
	records := make([]TabRecord, len(e.records))
	copy(records, e.records)
	return Snapshot{Records: records, CurrentIndex: e.cursor}
}
