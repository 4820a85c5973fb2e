package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	drainStart   atomic.Int64
)

// BeginShutdown marks the process as draining. Health reports shutting-down from
// here on so load balancers stop sending new queries while runs finish.
func BeginShutdown() {
	drainStart.CompareAndSwap(0, time.Now().UnixNano())
	shuttingDown.Store(true)
}

func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// DrainingFor reports how long the process has been draining, or 0.
func DrainingFor() time.Duration {
	start := drainStart.Load()
	if !shuttingDown.Load() || start == 0 {
		return 0
	}
	return time.Since(time.Unix(0, start))
}

// Reset clears the draining state. For tests only.
func Reset() {
	shuttingDown.Store(false)
	drainStart.Store(0)
}
