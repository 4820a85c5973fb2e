package traffic

import (
	"testing"
	"time"
)

// TestFailureRate_Empty verifies that an unused tracker reports no runs.
func TestFailureRate_Empty(t *testing.T) {
	Reset()
	if f, n := FailureRate(time.Minute); f != 0 || n != 0 {
		t.Errorf("FailureRate() = (%d, %d), want (0, 0)", f, n)
	}
}

// TestFailureRate_SuccessAndFailure verifies both outcomes count as runs.
func TestFailureRate_SuccessAndFailure(t *testing.T) {
	Reset()
	RecordSuccess()
	RecordSuccess()
	RecordFailure()
	f, n := FailureRate(time.Minute)
	if f != 1 || n != 3 {
		t.Errorf("FailureRate() = (%d, %d), want (1, 3)", f, n)
	}
}

// TestFailureRate_DeniedExcluded verifies that rate-limit denials are not runs.
func TestFailureRate_DeniedExcluded(t *testing.T) {
	Reset()
	RecordSuccess()
	RecordDenied()
	RecordDenied()
	f, n := FailureRate(time.Minute)
	if f != 0 || n != 1 {
		t.Errorf("FailureRate() = (%d, %d), want (0, 1)", f, n)
	}
	if d := DenialCount(time.Minute); d != 2 {
		t.Errorf("DenialCount() = %d, want 2", d)
	}
}

// TestTracker_Window verifies that outcomes outside the window are ignored and
// outcomes older than retention are pruned.
func TestTracker_Window(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	tr := &Tracker{now: func() time.Time { return now }}

	tr.RecordFailure()
	now = now.Add(2 * time.Minute)
	tr.RecordSuccess()

	if f, n := tr.FailureRate(time.Minute); f != 0 || n != 1 {
		t.Errorf("FailureRate(1m) = (%d, %d), want (0, 1)", f, n)
	}
	if f, n := tr.FailureRate(5 * time.Minute); f != 1 || n != 2 {
		t.Errorf("FailureRate(5m) = (%d, %d), want (1, 2)", f, n)
	}

	now = now.Add(10 * time.Minute)
	tr.RecordSuccess()
	if len(tr.failure) != 0 || len(tr.success) != 1 {
		t.Errorf("after prune: failure=%d success=%d, want 0 and 1", len(tr.failure), len(tr.success))
	}
}

// TestTracker_Reset verifies that Reset clears every window.
func TestTracker_Reset(t *testing.T) {
	var tr Tracker
	tr.RecordSuccess()
	tr.RecordFailure()
	tr.RecordDenied()
	tr.Reset()
	if f, n := tr.FailureRate(time.Minute); f != 0 || n != 0 {
		t.Errorf("FailureRate() after Reset = (%d, %d)", f, n)
	}
	if d := tr.DenialCount(time.Minute); d != 0 {
		t.Errorf("DenialCount() after Reset = %d", d)
	}
}
