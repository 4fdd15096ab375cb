package node

import (
	"context"
	"net"
	"time"

	"github.com/darkobas2/util-beeget/internal/bee"
	"github.com/darkobas2/util-beeget/internal/logctx"
	"github.com/darkobas2/util-beeget/internal/telemetry"
)

// DialFunc matches net.DialTimeout so tests can substitute the dialer.
type DialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

// Prober waits for the node's gateway port to start accepting connections.
// The policy is a deliberately plain fixed-interval bounded retry: node
// startup latency is the only thing being bridged here, so there is nothing
// for a backoff to adapt to.
type Prober struct {
	addr     string
	attempts int
	interval time.Duration
	timeout  time.Duration
	dial     DialFunc
	tel      *telemetry.Telemetry
}

// NewProber builds a prober for addr with the given attempt budget, sleep
// interval between attempts, and per-dial timeout. tel may be nil.
func NewProber(addr string, attempts int, interval, timeout time.Duration, tel *telemetry.Telemetry) *Prober {
	return &Prober{
		addr:     addr,
		attempts: attempts,
		interval: interval,
		timeout:  timeout,
		dial:     net.DialTimeout,
		tel:      tel,
	}
}

// WithDial replaces the dial function. Tests use it to simulate a node that
// becomes reachable on the Nth attempt.
func (p *Prober) WithDial(dial DialFunc) *Prober {
	p.dial = dial

	return p
}

// WaitReady blocks until a dial succeeds, returning after the successful
// attempt with no further delay. Once the attempt budget is exhausted it
// returns NodeStartTimeoutError. The sleep sits between attempts only.
func (p *Prober) WaitReady(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	for attempt := 1; attempt <= p.attempts; attempt++ {
		conn, err := p.dial("tcp", p.addr, p.timeout)
		if err == nil {
			conn.Close()
			logger.InfoContext(ctx, "bee node is reachable", "addr", p.addr, "attempt", attempt)
			p.tel.RecordProbeAttempts(attempt, "success")

			return nil
		}

		logger.DebugContext(ctx, "bee node not reachable yet", "addr", p.addr, "attempt", attempt, "err", err)

		if attempt == p.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}

	p.tel.RecordProbeAttempts(p.attempts, "timeout")

	return &bee.NodeStartTimeoutError{Attempts: p.attempts}
}
