package polling

import (
	"sync"
	"testing"
	"time"
)

func TestTracker_Defaults(t *testing.T) {
	tracker := NewTracker(time.Second)

	if !tracker.IsForeground() {
		t.Error("Expected tracker to start in the foreground")
	}
	if tracker.IsDialogOpen() {
		t.Error("Expected no dialog open")
	}
	if tracker.TimeSinceLastActivity() > time.Second {
		t.Errorf("Expected fresh activity, got %v", tracker.TimeSinceLastActivity())
	}
}

func TestTracker_ActivityThrottled(t *testing.T) {
	tracker := NewTracker(50 * time.Millisecond)
	now := time.Now()
	var mu sync.Mutex
	tracker.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	tracker.RecordActivity() // first call always lands
	advance(10 * time.Second)
	tracker.RecordActivity() // within the throttle window of the first, dropped

	if got := tracker.TimeSinceLastActivity(); got != 10*time.Second {
		t.Errorf("Expected throttled update to be dropped, got %v since activity", got)
	}

	time.Sleep(60 * time.Millisecond)
	tracker.RecordActivity()
	if got := tracker.TimeSinceLastActivity(); got != 0 {
		t.Errorf("Expected activity after the window to land, got %v", got)
	}
}

func TestTracker_VisibilityListeners(t *testing.T) {
	tracker := NewTracker(time.Second)

	var changes []bool
	tracker.OnVisibilityChange(func(fg bool) { changes = append(changes, fg) })

	tracker.SetForeground(true) // no change
	tracker.SetForeground(false)
	tracker.SetForeground(false) // no change
	tracker.SetForeground(true)

	if len(changes) != 2 || changes[0] != false || changes[1] != true {
		t.Errorf("Unexpected listener calls: %v", changes)
	}
}

func TestTracker_DialogState(t *testing.T) {
	tracker := NewTracker(time.Second)
	tracker.SetDialogOpen(true)
	if !tracker.IsDialogOpen() {
		t.Error("Expected dialog open")
	}
	tracker.SetDialogOpen(false)
	if tracker.IsDialogOpen() {
		t.Error("Expected dialog closed")
	}
}
