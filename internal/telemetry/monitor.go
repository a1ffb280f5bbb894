package telemetry

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Timeouts holds the tunables spec.md §5 fixes: "Status liveness window:
// 60 s. Status poll: 5 s. Peers poll: 60 s. Telemetry-unsupported
// recheck: 300 s. Config backoff: 15 s -> 120 s (x1.67). Geo backoff:
// 60 s fixed." Exposed as a struct (rather than package constants) so
// internal/config's Telemetry section can override them per deployment.
type Timeouts struct {
	StatusPollInterval       time.Duration
	StatusLivenessWindow     time.Duration
	PeersPollInterval        time.Duration
	TelemetryUnsupportedWait time.Duration
	ConfigBackoffInitial     time.Duration
	ConfigBackoffMax         time.Duration
	ConfigBackoffMultiplier  float64
	GeoBackoffFixed          time.Duration
	CommitTimeWindow         int
}

// DefaultTimeouts returns the exact values spec.md §5 specifies.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		StatusPollInterval:       5 * time.Second,
		StatusLivenessWindow:     60 * time.Second,
		PeersPollInterval:        60 * time.Second,
		TelemetryUnsupportedWait: 300 * time.Second,
		ConfigBackoffInitial:     15 * time.Second,
		ConfigBackoffMax:         120 * time.Second,
		ConfigBackoffMultiplier:  1.67,
		GeoBackoffFixed:          60 * time.Second,
		CommitTimeWindow:         defaultCommitTimeWindow,
	}
}

// Monitor runs the per-peer probing lifecycle for one configured URL: a
// one-shot geo lookup, a config handshake with exponential backoff, and
// (once connected) periodic status and peers polling. Every probe result
// is fed to the telemetry Actor via its notify* methods, which send on
// buffered channels (a sender waits only once 64 messages are queued), so
// a slow or wedged peer never stalls the actor (spec.md's "telemetry actor
// must not block on any monitor").
//
// The geo one-shot and the connect cycle run as a
// golang.org/x/sync/errgroup.Group — the Go idiom for the "join set"
// spec.md describes, grounded on the pack's use of errgroup for worker
// supervision (e.g. the N42 miner's worker.go); each connected session's
// status and peers loops run in a second, per-session errgroup.
type Monitor struct {
	url      string
	actor    *Actor
	client   PeerClient
	geo      GeoClient
	logger   *logrus.Entry
	timeouts Timeouts
}

// NewMonitor builds a monitor for one peer URL.
func NewMonitor(peerURL string, actor *Actor, client PeerClient, geo GeoClient, logger *logrus.Entry, timeouts Timeouts) *Monitor {
	return &Monitor{url: peerURL, actor: actor, client: client, geo: geo, logger: logger.WithField("peer", peerURL), timeouts: timeouts}
}

// Run blocks until ctx is cancelled or a sub-task panics past recovery
// (spec.md: "a monitor task panic is fatal, not recoverable" — left
// unrecovered here so it propagates like the state actor's fatal path).
func (m *Monitor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.runGeo(gctx) })
	g.Go(func() error { return m.runConnectCycle(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (m *Monitor) runGeo(ctx context.Context) error {
	host := m.url
	if u, err := url.Parse(m.url); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.timeouts.GeoBackoffFixed
	bo.Multiplier = 1
	bo.MaxInterval = m.timeouts.GeoBackoffFixed
	bo.MaxElapsedTime = 0

	op := func() error {
		geo, err := m.geo.Lookup(ctx, host)
		if err != nil {
			if errors.Is(err, ErrGeoPermanentFailure) {
				return backoff.Permanent(err)
			}
			return err
		}
		m.actor.notifyGeo(m.url, geo)
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		m.logger.WithError(err).Warn("telemetry geo lookup gave up permanently")
	}
	return nil
}

func (m *Monitor) runConnectCycle(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cfg, err := m.connectWithBackoff(ctx)
		if err != nil {
			return ctx.Err()
		}
		m.actor.notifyConnected(m.url, cfg)

		sessionCtx, cancel := context.WithCancel(ctx)
		g, sessionCtx := errgroup.WithContext(sessionCtx)
		g.Go(func() error { return m.statusLoop(sessionCtx, cancel) })
		g.Go(func() error { return m.peersLoop(sessionCtx) })
		_ = g.Wait()
		cancel()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		// session ended in a disconnect; loop back and re-run the config
		// handshake before resuming periodic polling.
	}
}

func (m *Monitor) connectWithBackoff(ctx context.Context) (PeerConfig, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.timeouts.ConfigBackoffInitial
	bo.Multiplier = m.timeouts.ConfigBackoffMultiplier
	bo.MaxInterval = m.timeouts.ConfigBackoffMax
	bo.MaxElapsedTime = 0

	var cfg PeerConfig
	op := func() error {
		c, err := m.client.Configuration(ctx, m.url)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	return cfg, err
}

// statusLoop polls /status every statusPollInterval. On success it
// resets the liveness window and reports metrics. On a 501 it reports
// TelemetryUnsupported and pauses for telemetryUnsupportedWait. If
// statusLivenessWindow elapses with no success, it reports Disconnected
// and ends the session (triggering a fresh config handshake).
func (m *Monitor) statusLoop(ctx context.Context, endSession context.CancelFunc) error {
	ticker := time.NewTicker(m.timeouts.StatusPollInterval)
	defer ticker.Stop()
	lastSuccess := time.Now()

	poll := func() bool {
		metrics, err := m.client.Status(ctx, m.url)
		if err == nil {
			lastSuccess = time.Now()
			m.actor.notifyStatus(m.url, metrics, lastSuccess)
			return true
		}
		if errors.Is(err, ErrTelemetryUnsupported) {
			m.actor.notifyUnsupported(m.url)
			select {
			case <-time.After(m.timeouts.TelemetryUnsupportedWait):
			case <-ctx.Done():
				return false
			}
			lastSuccess = time.Now() // unsupported is not a liveness failure
			return true
		}
		if time.Since(lastSuccess) > m.timeouts.StatusLivenessWindow {
			m.actor.notifyDisconnected(m.url)
			endSession()
			return false
		}
		return true
	}

	if !poll() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !poll() {
				return nil
			}
		}
	}
}

func (m *Monitor) peersLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.timeouts.PeersPollInterval)
	defer ticker.Stop()

	poll := func() {
		peers, err := m.client.Peers(ctx, m.url)
		if err != nil {
			m.logger.WithError(err).Debug("telemetry peers poll failed")
			return
		}
		m.actor.notifyPeers(m.url, peers)
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			poll()
		}
	}
}
