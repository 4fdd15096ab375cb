// Package fetch sequences a whole retrieval run: resolve the bee release,
// install the binary, run a node, wait for it, pull the content, stop the
// node again.
package fetch

import (
	"context"
	"os"
	"time"

	"github.com/darkobas2/util-beeget/internal/bee"
	"github.com/darkobas2/util-beeget/internal/logctx"
	"github.com/darkobas2/util-beeget/internal/node"
	"github.com/darkobas2/util-beeget/internal/notifier"
	"github.com/darkobas2/util-beeget/internal/storage"
	"github.com/darkobas2/util-beeget/internal/telemetry"
	"github.com/google/uuid"
)

// Locator resolves the bee release asset to run.
type Locator interface {
	LatestAsset(ctx context.Context) (*bee.Asset, error)
}

// Installer places the asset on disk and returns the binary path.
type Installer interface {
	Install(ctx context.Context, asset *bee.Asset) (string, error)
}

// Node is one supervised node process.
type Node interface {
	Start(ctx context.Context) error
	Join(timeout time.Duration) error
}

// NodeFactory builds a supervisor for an installed binary and a stop signal.
type NodeFactory func(binPath string, stop *node.StopSignal) Node

// Prober waits for the node to become reachable.
type Prober interface {
	WaitReady(ctx context.Context) error
}

// Retriever pulls content from the node gateway to a local file.
type Retriever interface {
	Retrieve(ctx context.Context, hash string) (string, error)
}

// Fetcher drives one retrieval run end to end.
type Fetcher struct {
	locator   Locator
	installer Installer
	newNode   NodeFactory
	prober    Prober
	retriever Retriever

	// Optional collaborators; nil disables them.
	History   storage.RetrievalRepository
	Notifier  notifier.Notifier
	Telemetry *telemetry.Telemetry

	// JoinTimeout bounds the wait for the node to exit after the stop
	// signal; past it the process is killed.
	JoinTimeout time.Duration
}

func New(locator Locator, installer Installer, newNode NodeFactory, prober Prober, retriever Retriever) *Fetcher {
	return &Fetcher{
		locator:     locator,
		installer:   installer,
		newNode:     newNode,
		prober:      prober,
		retriever:   retriever,
		JoinTimeout: time.Second,
	}
}

// Fetch retrieves the content behind hash and returns the path of the
// written file. Component failures propagate unchanged; cleanup of the node
// process happens on every path once it has been started.
func (f *Fetcher) Fetch(ctx context.Context, hash string) (string, error) {
	runID := uuid.NewString()
	ctx = logctx.With(ctx, "run_id", runID, "swarm_hash", hash)

	start := time.Now()
	filename, err := f.run(ctx, hash)

	status := storage.StatusDownloaded
	if err != nil {
		status = storage.StatusFailed
	}

	f.Telemetry.RecordFetch(status, time.Since(start))
	f.recordHistory(ctx, runID, hash, filename, status)
	f.notify(ctx, hash, filename, err)

	return filename, err
}

func (f *Fetcher) run(ctx context.Context, hash string) (string, error) {
	logger := logctx.LoggerFromContext(ctx)

	var asset *bee.Asset

	if err := f.Telemetry.InstrumentStage(ctx, "locate_release", func(ctx context.Context) error {
		var err error
		asset, err = f.locator.LatestAsset(ctx)

		return err
	}); err != nil {
		return "", err
	}

	var binPath string

	if err := f.Telemetry.InstrumentStage(ctx, "install", func(ctx context.Context) error {
		var err error
		binPath, err = f.installer.Install(ctx, asset)

		return err
	}); err != nil {
		return "", err
	}

	stop := node.NewStopSignal()
	n := f.newNode(binPath, stop)

	if err := f.Telemetry.InstrumentStage(ctx, "start_node", func(ctx context.Context) error {
		return n.Start(ctx)
	}); err != nil {
		return "", err
	}

	// The node is running from here on: whatever the outcome below, it is
	// told to stop exactly once and gets a bounded window to exit.
	filename, err := f.probeAndRetrieve(ctx, hash)

	stop.Set()

	if joinErr := n.Join(f.JoinTimeout); joinErr != nil {
		logger.WarnContext(ctx, "failed to shut down bee node cleanly", "err", joinErr)
	}

	return filename, err
}

func (f *Fetcher) probeAndRetrieve(ctx context.Context, hash string) (string, error) {
	if err := f.Telemetry.InstrumentStage(ctx, "probe", func(ctx context.Context) error {
		return f.prober.WaitReady(ctx)
	}); err != nil {
		return "", err
	}

	var filename string

	err := f.Telemetry.InstrumentStage(ctx, "retrieve", func(ctx context.Context) error {
		var err error
		filename, err = f.retriever.Retrieve(ctx, hash)

		return err
	})

	return filename, err
}

func (f *Fetcher) recordHistory(ctx context.Context, runID, hash, filename, status string) {
	if f.History == nil {
		return
	}

	var size int64

	if filename != "" {
		if info, err := os.Stat(filename); err == nil {
			size = info.Size()
		}
	}

	record := storage.RetrievalRecord{
		RunID:       runID,
		SwarmHash:   hash,
		FilePath:    filename,
		Bytes:       size,
		Status:      status,
		RetrievedAt: time.Now(),
	}

	if err := f.History.TrackRetrieval(record); err != nil {
		logctx.LoggerFromContext(ctx).WarnContext(ctx, "failed to record retrieval history", "err", err)
	}
}

func (f *Fetcher) notify(ctx context.Context, hash, filename string, fetchErr error) {
	if f.Notifier == nil {
		return
	}

	message := "✅ Swarm retrieval finished: " + filename + " (" + hash + ")"
	if fetchErr != nil {
		message = "❌ Swarm retrieval failed for " + hash + ": " + fetchErr.Error()
	}

	if err := f.Notifier.Notify(ctx, message); err != nil {
		logctx.LoggerFromContext(ctx).WarnContext(ctx, "failed to send notification", "err", err)
	}
}
