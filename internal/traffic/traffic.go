package traffic

import (
	"sync"
	"time"
)

// retention bounds how far back any window can look.
const retention = 5 * time.Minute

var defaultTracker Tracker

// RecordSuccess records a run that ended with a recommendation.
func RecordSuccess() { defaultTracker.RecordSuccess() }

// RecordFailure records a run that ended on the error path.
func RecordFailure() { defaultTracker.RecordFailure() }

// RecordDenied records a request rejected by the rate limiter.
func RecordDenied() { defaultTracker.RecordDenied() }

// FailureRate returns (failures, runs) within the window.
func FailureRate(window time.Duration) (failures, runs int) {
	return defaultTracker.FailureRate(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int { return defaultTracker.DenialCount(window) }

// Reset clears all recorded outcomes. For tests only.
func Reset() { defaultTracker.Reset() }

// Tracker keeps sliding windows of workflow outcome timestamps. The health
// endpoint reads FailureRate to report degraded.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	success []time.Time
	failure []time.Time
	denied  []time.Time
}

func (t *Tracker) RecordSuccess() { t.record(&t.success) }

func (t *Tracker) RecordFailure() { t.record(&t.failure) }

func (t *Tracker) RecordDenied() { t.record(&t.denied) }

// FailureRate returns (failures, runs) within the window. Denials never reached
// the workflow and are not counted as runs.
func (t *Tracker) FailureRate(window time.Duration) (failures, runs int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	failures = countSince(t.failure, cutoff)
	return failures, failures + countSince(t.success, cutoff)
}

func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.denied, t.clock().Add(-window))
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.success, t.failure, t.denied = nil, nil, nil
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Caller holds mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.success)
	prune(&t.failure)
	prune(&t.denied)
}
