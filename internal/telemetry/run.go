package telemetry

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunMonitors launches one Monitor per peer URL known to the actor and
// blocks until every monitor has exited, which in practice means until ctx
// is cancelled; it always returns nil. Monitors run
// as an independent cooperative set (spec.md's "Telemetry actor and peer
// monitors run until their own join set drains"): one monitor's fatal
// error does not stop the others, it is only logged.
func RunMonitors(ctx context.Context, a *Actor, client PeerClient, geo GeoClient, timeouts Timeouts) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, peerURL := range a.peerURLs {
		url := peerURL
		mon := NewMonitor(url, a, client, geo, a.logger, timeouts)
		g.Go(func() error {
			if err := mon.Run(gctx); err != nil {
				a.logger.WithError(err).WithField("peer", url).Error("telemetry monitor exited")
			}
			return nil
		})
	}
	return g.Wait()
}
