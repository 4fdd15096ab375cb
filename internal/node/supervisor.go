package node

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/darkobas2/util-beeget/internal/logctx"
	"github.com/darkobas2/util-beeget/internal/telemetry"
)

// startArgs are the fixed flags the node runs with: swap accounting off,
// light mode, empty blockchain RPC endpoint, fixed password.
var startArgs = []string{
	"start",
	"--swap-enable=false",
	"--full-node=false",
	"--blockchain-rpc-endpoint=",
	"--password=beeget",
}

// Supervisor owns one bee child process: it spawns it, waits for the stop
// signal on a background goroutine, and takes the process down again.
type Supervisor struct {
	binPath string
	stop    *StopSignal
	tel     *telemetry.Telemetry

	cmd    *exec.Cmd
	exited chan struct{}
	forced atomic.Bool
}

// NewSupervisor builds a supervisor for the binary at binPath. tel may be nil.
func NewSupervisor(binPath string, stop *StopSignal, tel *telemetry.Telemetry) *Supervisor {
	return &Supervisor{
		binPath: binPath,
		stop:    stop,
		tel:     tel,
		exited:  make(chan struct{}),
	}
}

// Start launches the node process and begins supervising it in the
// background. A spawn failure is returned synchronously and no supervision
// starts; once Start returns nil, the child runs until the stop signal is
// set or it exits on its own.
func (s *Supervisor) Start(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	// Stdout and Stderr stay nil so the child's output goes to the null
	// device; the node is chatty and beeget's own output must stay clean.
	cmd := exec.Command(s.binPath, startArgs...)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start bee node: %w", err)
	}

	s.cmd = cmd
	s.tel.RecordNodeStart()

	logger.InfoContext(ctx, "bee node started", "pid", cmd.Process.Pid, "binary", s.binPath)

	go s.supervise(ctx)

	return nil
}

func (s *Supervisor) supervise(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- s.cmd.Wait()
	}()

	select {
	case err := <-waitCh:
		// The child exited before anyone asked it to.
		logger.WarnContext(ctx, "bee node exited on its own", "err", err)
		s.tel.RecordNodeStop(false)
		close(s.exited)

		return
	case <-s.stop.Done():
	}

	logger.InfoContext(ctx, "stopping bee node", "pid", s.cmd.Process.Pid)

	if err := s.terminate(); err != nil {
		logger.WarnContext(ctx, "graceful termination request failed, killing", "err", err)

		_ = s.cmd.Process.Kill()
	}

	if err := <-waitCh; err != nil {
		// Expected: dying from a signal reports a non-zero exit.
		logger.DebugContext(ctx, "bee node exited", "err", err)
	}

	s.tel.RecordNodeStop(s.forced.Load())
	close(s.exited)
}

// terminate asks the child to shut down. Windows has no soft termination
// signal for arbitrary processes, so the request is a hard kill there.
func (s *Supervisor) terminate() error {
	if runtime.GOOS == "windows" {
		return s.cmd.Process.Kill()
	}

	return s.cmd.Process.Signal(syscall.SIGTERM)
}

// Join blocks until the supervision loop has observed the child exit. If the
// timeout elapses first, the child is force-killed and Join waits for the
// loop to finish.
func (s *Supervisor) Join(timeout time.Duration) error {
	select {
	case <-s.exited:
		return nil
	case <-time.After(timeout):
	}

	s.forced.Store(true)

	if err := s.cmd.Process.Kill(); err != nil {
		<-s.exited

		return fmt.Errorf("failed to kill bee node: %w", err)
	}

	<-s.exited

	return nil
}
