package app

import (
	"testing"

	"github.com/vidyasagar/tabtrail/internal/trail"
)

func TestPushSnapshotDeliversWhenRoom(t *testing.T) {
	ch := make(chan trail.Snapshot, 2)
	pushSnapshot(ch, trail.Snapshot{CurrentIndex: 7})

	got := <-ch
	if got.CurrentIndex != 7 {
		t.Fatalf("CurrentIndex = %d, want 7", got.CurrentIndex)
	}
}

func TestPushSnapshotReplacesStaleWhenFull(t *testing.T) {
	ch := make(chan trail.Snapshot, 2)
	for i := 0; i < cap(ch); i++ {
		pushSnapshot(ch, trail.Snapshot{CurrentIndex: i})
	}

	// The channel is full; the newest snapshot must still land, at the
	// expense of a stale queued one.
	pushSnapshot(ch, trail.Snapshot{CurrentIndex: 9})

	var last trail.Snapshot
	seen := false
	for {
		select {
		case s := <-ch:
			last, seen = s, true
			continue
		default:
		}
		break
	}
	if !seen {
		t.Fatal("channel was empty after push")
	}
	if last.CurrentIndex != 9 {
		t.Fatalf("last queued CurrentIndex = %d, want 9", last.CurrentIndex)
	}
}
