// Command mirrord is the mirror daemon: it wires configuration, logging,
// the state actor, the sync loop and the telemetry actor together and runs
// until signalled to stop. The HTTP/JSON endpoint layer, CLI and config
// loading beyond this daemon's own flags are out of scope (spec.md §1) —
// this entrypoint exists only to exercise the core subsystems end to end,
// the same "construct dependencies, start background loop, block on a
// signal channel" shape as cmd/explorer/main.go.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledgermirror/internal/config"
	"ledgermirror/internal/logging"
	"ledgermirror/internal/query"
	"ledgermirror/internal/stateactor"
	syncloop "ledgermirror/internal/sync"
	"ledgermirror/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults merged with MIRROR_* env vars)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New(cfg.Logging.Level).Fatalf("load config: %v", err)
	}

	root := logging.New(cfg.Logging.Level)
	stateLog := logging.Component(root, "stateactor")
	syncLog := logging.Component(root, "sync")
	telemetryLog := logging.Component(root, "telemetry")

	telemetryActor := telemetry.Start(telemetry.Options{
		PeerURLs:         cfg.Telemetry.PeerURLs,
		Client:           telemetry.NewHTTPPeerClient(5 * time.Second),
		Geo:              telemetry.NewHTTPGeoClient(5 * time.Second),
		Logger:           telemetryLog,
		CommitTimeWindow: cfg.Telemetry.CommitTimeWindow,
	})

	actor, err := stateactor.Start(stateactor.Options{
		StoreDir:  cfg.Store.Dir,
		CacheSize: cfg.Store.CacheSize,
		Logger:    stateLog,
		MetricsSink: func(m stateactor.IncrementalMetrics) {
			telemetryActor.ObserveLocal(telemetry.LocalMetrics{
				Height:              m.Height,
				BlockCount:          m.BlockCount,
				LastBlockTime:       m.LastBlockTime,
				LastInterBlockDelta: m.LastInterBlockDelta,
			})
		},
	})
	if err != nil {
		root.Fatalf("start state actor: %v", err)
	}

	upstream := syncloop.NewHTTPUpstream(cfg.Upstream.URL, 10*time.Second)
	loop := syncloop.New(actor, upstream, syncLog, cfg.Sync.Backoff)

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	timeouts := telemetry.Timeouts{
		StatusPollInterval:       cfg.Telemetry.StatusInterval,
		StatusLivenessWindow:     cfg.Telemetry.StatusLiveness,
		PeersPollInterval:        cfg.Telemetry.PeersInterval,
		TelemetryUnsupportedWait: cfg.Telemetry.UnsupportedRecheck,
		ConfigBackoffInitial:     cfg.Telemetry.ConfigBackoffMin,
		ConfigBackoffMax:         cfg.Telemetry.ConfigBackoffMax,
		ConfigBackoffMultiplier:  1.67,
		GeoBackoffFixed:          cfg.Telemetry.GeoBackoff,
		CommitTimeWindow:         cfg.Telemetry.CommitTimeWindow,
	}
	go func() {
		if err := telemetry.RunMonitors(ctx, telemetryActor, telemetry.NewHTTPPeerClient(5*time.Second), telemetry.NewHTTPGeoClient(5*time.Second), timeouts); err != nil {
			telemetryLog.WithError(err).Error("peer monitors exited")
		}
	}()

	// A query executor is available to any in-process caller (e.g. an HTTP
	// handler built outside this core) by acquiring a read guard and
	// calling query.New over it; nothing in this daemon consumes it since
	// the endpoint layer is out of scope, but it is wired here so the
	// dependency graph matches spec.md §2's data flow.
	_ = func(ctx context.Context) (*query.Executor, func(), error) {
		guard, err := actor.AcquireReadGuard(ctx)
		if err != nil {
			return nil, nil, err
		}
		return query.New(guard), func() { guard.Close() }, nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	root.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := actor.Shutdown(shutdownCtx); err != nil {
		root.WithError(err).Warn("state actor shutdown")
	}
}
