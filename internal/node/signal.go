// Package node manages the local bee node: its process lifecycle and the
// readiness probe that bridges startup latency.
package node

import "sync"

// StopSignal tells the supervision loop to begin shutting the node down.
// The transition from unset to set happens at most once and is never
// reversed; Set is idempotent and safe from any goroutine.
type StopSignal struct {
	once sync.Once
	done chan struct{}
}

func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

// Set marks the signal. Calls after the first are no-ops.
func (s *StopSignal) Set() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Done returns a channel that is closed once the signal is set.
func (s *StopSignal) Done() <-chan struct{} {
	return s.done
}

// IsSet reports whether the signal has been set.
func (s *StopSignal) IsSet() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
