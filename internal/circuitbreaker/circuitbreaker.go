package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds circuit breaker parameters.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of probe calls allowed (and required to succeed) in half-open.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before allowing probes.
	Timeout       time.Duration
	Component     string
	OnStateChange func(component string, from, to gobreaker.State)
	// IsCallerError reports errors caused by the caller rather than the upstream,
	// such as a bad per-request key. They never count toward opening the circuit.
	IsCallerError func(err error) bool
}

// New creates a breaker that opens after FailureThreshold consecutive upstream failures.
// Cancellations and caller errors count as successes. It only fails fast and never retries.
func New(cfg Config) *gobreaker.CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	threshold := uint32(cfg.FailureThreshold)
	settings := gobreaker.Settings{
		Name:        cfg.Component,
		MaxRequests: uint32(cfg.SuccessThreshold),
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return cfg.IsCallerError != nil && cfg.IsCallerError(err)
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from, to)
		}
	}
	return gobreaker.NewCircuitBreaker(settings)
}
