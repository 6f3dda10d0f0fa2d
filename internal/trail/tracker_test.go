package trail

import "testing"

func TestTrackerCountsPerTab(t *testing.T) {
	tr := newSuppressTracker()

	// A burst of programmatic activations queues multiple suppressions.
	tr.markProgrammatic(7)
	tr.markProgrammatic(7)
	tr.markProgrammatic(9)

	if !tr.shouldSuppress(7) {
		t.Error("first pending suppression for tab 7 not consumed")
	}
	if !tr.shouldSuppress(7) {
		t.Error("second pending suppression for tab 7 not consumed")
	}
	if tr.shouldSuppress(7) {
		t.Error("tab 7 suppressed beyond its pending count")
	}
	if !tr.shouldSuppress(9) {
		t.Error("tab 9 suppression not consumed")
	}
	if tr.shouldSuppress(3) {
		t.Error("tab with no pending count suppressed")
	}
}

func TestTrackerUnmark(t *testing.T) {
	tr := newSuppressTracker()
	tr.markProgrammatic(1)
	tr.unmark(1)
	if tr.shouldSuppress(1) {
		t.Error("unmarked suppression still consumed")
	}
	// unmark on an empty count must not underflow into a sticky state.
	tr.unmark(1)
	tr.markProgrammatic(1)
	if !tr.shouldSuppress(1) {
		t.Error("mark after spurious unmark lost")
	}
}
