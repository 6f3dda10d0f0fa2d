package trail

// suppressTracker distinguishes tab activations the engine caused from
// activations a user caused. Every programmatic ActivateTab call raises the
// same activation event a real switch raises; recording it again would
// re-append the entry the trail already has at the cursor.
//
// The pending count must be a counter, not a flag: a burst of programmatic
// activations (stale-entry pruning during goBack can issue several) queues
// more than one suppression before the matching events arrive.
type suppressTracker struct {
	pending map[int]int
}

func newSuppressTracker() *suppressTracker {
	return &suppressTracker{pending: make(map[int]int)}
}

// markProgrammatic records one pending suppression for the tab. Call it
// before the activation call is issued, never after.
func (t *suppressTracker) markProgrammatic(tabID int) {
	t.pending[tabID]++
}

// unmark cancels one pending suppression. Used when an activation call fails:
// no event will be delivered for it, so the count would otherwise leak and
// swallow a future genuine activation of a reused id.
func (t *suppressTracker) unmark(tabID int) {
	if t.pending[tabID] > 1 {
		t.pending[tabID]--
	} else {
		delete(t.pending, tabID)
	}
}

// shouldSuppress consumes one pending suppression for the tab if any exists.
func (t *suppressTracker) shouldSuppress(tabID int) bool {
	if t.pending[tabID] > 0 {
		t.unmark(tabID)
		return true
	}
	return false
}
