package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/darkobas2/util-beeget/internal/config"
	"github.com/darkobas2/util-beeget/internal/fetch"
	"github.com/darkobas2/util-beeget/internal/gateway"
	"github.com/darkobas2/util-beeget/internal/logctx"
	"github.com/darkobas2/util-beeget/internal/node"
	"github.com/darkobas2/util-beeget/internal/notifier"
	"github.com/darkobas2/util-beeget/internal/release"
	"github.com/darkobas2/util-beeget/internal/storage"
	"github.com/darkobas2/util-beeget/internal/storage/sqlite"
	"github.com/darkobas2/util-beeget/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <swarm-hash>\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	hash := os.Args[1]

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr: stdout carries only the result line.
	logger := slog.New(logctx.NewTraceHandler(
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("beeget starting...", "log_level", cfg.LogLevel)

	filename, err := run(logctx.WithLogger(ctx, logger), cfg, hash)
	if err != nil {
		slog.Error("fatal error", "err", err)
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Downloaded file: %s\n", filename)
}

func run(ctx context.Context, cfg *config.Config, hash string) (string, error) {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.MetricsBindAddress != "",
		ServiceName: "beeget",
	})
	if err != nil {
		return "", fmt.Errorf("failed to set up telemetry: %w", err)
	}

	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shut down telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start History Database
	var history storage.RetrievalRepository

	if cfg.HistoryDBPath != "" {
		database, err := sqlite.InitDB(cfg.HistoryDBPath)
		if err != nil {
			return "", fmt.Errorf("failed to open history db: %w", err)
		}
		defer database.Close()

		history = sqlite.NewRetrievalRepository(database)
	}

	// =========================================================================
	// Start Notification
	var notif notifier.Notifier
	if cfg.DiscordWebhookURL != "" {
		notif = &notifier.DiscordNotifier{WebhookURL: cfg.DiscordWebhookURL}
	}

	// =========================================================================
	// Start Fetcher
	installDir := cfg.InstallDir
	if installDir == "" {
		installDir, err = release.InstallDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve install dir: %w", err)
		}
	}

	locator := release.NewLocator(cfg.ReleaseAPIBaseURL, cfg.ReleaseRepo, cfg.GitHubToken)
	installer := release.NewInstaller(installDir, tel)
	prober := node.NewProber(cfg.ProbeAddress, cfg.ProbeAttempts, cfg.ProbeInterval, cfg.ProbeTimeout, tel)
	retriever := gateway.NewClient(cfg.GatewayURL, cfg.OutputDir, tel)

	newNode := func(binPath string, stop *node.StopSignal) fetch.Node {
		return node.NewSupervisor(binPath, stop, tel)
	}

	fetcher := fetch.New(locator, installer, newNode, prober, retriever)
	fetcher.History = history
	fetcher.Notifier = notif
	fetcher.Telemetry = tel
	fetcher.JoinTimeout = cfg.JoinTimeout

	// =========================================================================
	// Start Metrics Service
	group, gctx := errgroup.WithContext(ctx)

	var server *http.Server

	if cfg.MetricsBindAddress != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", tel.Handler())

		server = &http.Server{
			Addr:        cfg.MetricsBindAddress,
			Handler:     r,
			ReadTimeout: 10 * time.Second,
			BaseContext: func(net.Listener) context.Context {
				return ctx
			},
		}

		group.Go(func() error {
			logger.Info("serving metrics", "bind_address", cfg.MetricsBindAddress)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server error: %w", err)
			}

			return nil
		})
	}

	// =========================================================================
	// Fetch
	filename, fetchErr := fetcher.Fetch(gctx, hash)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the metrics server", "err", err)

			if err := server.Close(); err != nil {
				logger.Error("could not stop metrics server", "err", err)
			}
		}
	}

	if err := group.Wait(); err != nil {
		logger.Error("metrics server failed", "err", err)
	}

	return filename, fetchErr
}
