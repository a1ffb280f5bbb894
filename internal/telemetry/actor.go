package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Options configures a telemetry Actor.
type Options struct {
	// PeerURLs is the configured set of upstream peer telemetry endpoints.
	// Its length is N in spec.md's supermajority/total-peers formulas.
	PeerURLs []string
	Client   PeerClient
	Geo      GeoClient
	Logger   *logrus.Entry
	// CommitTimeWindow is N in the per-peer running commit-time average.
	// Zero defaults to defaultCommitTimeWindow (spec.md's N=16).
	CommitTimeWindow int
}

// Actor aggregates per-peer telemetry into a network-wide status and
// broadcasts incremental updates, mirroring internal/stateactor's
// actor-over-channels shape (one goroutine owns all mutable state; every
// external access is a channel request/reply).
type Actor struct {
	peerURLs []string
	logger   *logrus.Entry

	connectedCh   chan connectedMsg
	geoCh         chan geoMsg
	unsupportedCh chan telemetryUnsupportedMsg
	disconnectCh  chan disconnectedMsg
	statusCh      chan statusMsg
	peersCh       chan peersMsg
	subscribeCh   chan subscribeRequest
	unsubCh       chan unsubscribeRequest
	snapshotCh    chan snapshotRequest
	localCh       chan LocalMetrics
	doneCh        chan struct{}

	peers   map[string]PeerRecord
	avgs    map[string]*commitAverage
	lastNet NetworkStatus
	local   *LocalMetrics
	bcast   *broadcaster
}

// Start launches the telemetry actor's goroutine and returns immediately.
func Start(opts Options) *Actor {
	window := opts.CommitTimeWindow
	if window == 0 {
		window = defaultCommitTimeWindow
	}
	a := &Actor{
		peerURLs:      opts.PeerURLs,
		logger:        opts.Logger,
		connectedCh:   make(chan connectedMsg, 64),
		geoCh:         make(chan geoMsg, 64),
		unsupportedCh: make(chan telemetryUnsupportedMsg, 64),
		disconnectCh:  make(chan disconnectedMsg, 64),
		statusCh:      make(chan statusMsg, 64),
		peersCh:       make(chan peersMsg, 64),
		subscribeCh:   make(chan subscribeRequest),
		unsubCh:       make(chan unsubscribeRequest),
		snapshotCh:    make(chan snapshotRequest),
		localCh:       make(chan LocalMetrics, 64),
		doneCh:        make(chan struct{}),
		peers:         make(map[string]PeerRecord, len(opts.PeerURLs)),
		avgs:          make(map[string]*commitAverage, len(opts.PeerURLs)),
		bcast:         newBroadcaster(opts.Logger),
	}
	for _, url := range opts.PeerURLs {
		a.peers[url] = newPeerRecord(url)
		a.avgs[url] = newCommitAverage(window)
	}
	go a.run()
	return a
}

// Done reports when the actor's goroutine has exited.
func (a *Actor) Done() <-chan struct{} { return a.doneCh }

func (a *Actor) run() {
	defer close(a.doneCh)
	for {
		select {
		case msg := <-a.connectedCh:
			a.handleConnected(msg)
		case msg := <-a.geoCh:
			a.handleGeo(msg)
		case msg := <-a.unsupportedCh:
			a.handleUnsupported(msg)
		case msg := <-a.disconnectCh:
			a.handleDisconnected(msg)
		case msg := <-a.statusCh:
			a.handleStatus(msg)
		case msg := <-a.peersCh:
			a.handlePeers(msg)
		case req := <-a.subscribeCh:
			a.handleSubscribe(req)
		case req := <-a.unsubCh:
			a.bcast.Unsubscribe(req.id)
		case req := <-a.snapshotCh:
			req.reply <- a.snapshot()
		case m := <-a.localCh:
			local := m
			a.local = &local
			a.recomputeAndPublish()
		}
	}
}

func (a *Actor) transition(rec *PeerRecord) {
	rec.LastTransitionAt = time.Now()
}

func (a *Actor) handleConnected(msg connectedMsg) {
	rec := a.peers[msg.url]
	cfg := msg.config
	rec.Config = &cfg
	rec.Connected = true
	rec.TelemetryUnsupported = false
	a.transition(&rec)
	a.peers[msg.url] = rec
	a.logger.WithFields(logrus.Fields{"peer": msg.url, "since": rec.LastTransitionAt}).Info("telemetry peer connected")
	a.publishPeerInfo(rec)
	a.recomputeAndPublish()
}

func (a *Actor) handleGeo(msg geoMsg) {
	rec := a.peers[msg.url]
	geo := msg.geo
	rec.Geo = &geo
	a.peers[msg.url] = rec
	a.publishPeerInfo(rec)
}

func (a *Actor) handleUnsupported(msg telemetryUnsupportedMsg) {
	rec := a.peers[msg.url]
	if rec.TelemetryUnsupported {
		return
	}
	rec.TelemetryUnsupported = true
	rec.Connected = false
	a.transition(&rec)
	a.peers[msg.url] = rec
	a.logger.WithFields(logrus.Fields{"peer": msg.url, "since": rec.LastTransitionAt}).Info("telemetry unsupported by peer")
	a.publishPeerStatus(rec)
	a.recomputeAndPublish()
}

func (a *Actor) handleDisconnected(msg disconnectedMsg) {
	rec := a.peers[msg.url]
	if !rec.Connected {
		return
	}
	rec.Connected = false
	rec.Metrics = nil
	a.transition(&rec)
	a.peers[msg.url] = rec
	a.logger.WithFields(logrus.Fields{"peer": msg.url, "since": rec.LastTransitionAt}).Warn("telemetry peer disconnected")
	a.publishPeerStatus(rec)
	a.recomputeAndPublish()
}

func (a *Actor) handleStatus(msg statusMsg) {
	rec := a.peers[msg.url]
	avg := a.avgs[msg.url]
	avg.observe(msg.metrics.Block, msg.metrics.BlockCommitTime)
	if mean, ok := avg.mean(); ok {
		msg.metrics.AvgCommitTime = mean
	}
	metrics := msg.metrics
	rec.Metrics = &metrics
	if !rec.Connected {
		rec.Connected = true
		a.transition(&rec)
	}
	a.peers[msg.url] = rec
	a.publishPeerStatus(rec)
	a.recomputeAndPublish()
}

func (a *Actor) handlePeers(msg peersMsg) {
	rec := a.peers[msg.url]
	if peerSetsEqual(rec.ConnectedPeers, msg.peers) {
		return
	}
	rec.ConnectedPeers = msg.peers
	a.peers[msg.url] = rec
	a.publishPeerInfo(rec)
	a.recomputeAndPublish()
}

func peerSetsEqual(a, b map[PublicKey]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func (a *Actor) publishPeerStatus(rec PeerRecord) {
	r := rec
	a.bcast.Publish(Event{PeerStatus: &r})
}

func (a *Actor) publishPeerInfo(rec PeerRecord) {
	r := rec
	a.bcast.Publish(Event{PeerInfo: &r})
}

func (a *Actor) recomputeAndPublish() {
	status := a.computeNetworkStatus()
	a.lastNet = status
	s := status
	a.bcast.Publish(Event{NetworkStatus: &s})
}

func (a *Actor) computeNetworkStatus() NetworkStatus {
	var heights []uint64
	var avgs []int64
	for _, rec := range a.peers {
		if rec.Metrics == nil {
			continue
		}
		heights = append(heights, rec.Metrics.Block)
		avgs = append(avgs, int64(rec.Metrics.AvgCommitTime))
	}
	status := NetworkStatus{TotalPeers: totalPeers(a.peers)}
	status.FinalizedBlock = finalizedBlock(len(a.peerURLs), heights)
	if mean, ok := averageCommitTime(avgs); ok {
		d := time.Duration(mean)
		status.AvgCommitTime = &d
	}
	status.Local = a.local
	return status
}

func (a *Actor) snapshot() First {
	peersInfo := make(map[string]PeerRecord, len(a.peers))
	peersStatus := make(map[string]PeerRecord, len(a.peers))
	for url, rec := range a.peers {
		peersInfo[url] = rec
		peersStatus[url] = rec
	}
	return First{PeersInfo: peersInfo, PeersStatus: peersStatus, NetworkStatus: a.lastNet}
}

func (a *Actor) handleSubscribe(req subscribeRequest) {
	id, ch := a.bcast.Subscribe()
	req.reply <- subscribeReply{id: id, first: a.snapshot(), ch: ch}
}

// Subscribe registers a new telemetry subscriber. It returns the
// subscription id (for Unsubscribe), the initial First snapshot, and the
// channel on which subsequent Events arrive.
func (a *Actor) Subscribe(ctx context.Context) (uuid.UUID, First, <-chan Event, error) {
	reply := make(chan subscribeReply, 1)
	select {
	case a.subscribeCh <- subscribeRequest{reply: reply}:
	case <-ctx.Done():
		return uuid.UUID{}, First{}, nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.id, r.first, r.ch, nil
	case <-ctx.Done():
		return uuid.UUID{}, First{}, nil, ctx.Err()
	}
}

// Unsubscribe removes a subscriber. Fire-and-forget; safe after the actor
// has already removed the subscriber for any other reason.
func (a *Actor) Unsubscribe(id uuid.UUID) {
	a.unsubCh <- unsubscribeRequest{id: id}
}

// ObserveLocal records the mirror's own blockchain-metrics snapshot,
// pushed by the state actor's MetricsSink after every apply (spec.md §3).
// Fire-and-forget over a 64-slot buffered channel; the caller waits only
// when that buffer is full.
func (a *Actor) ObserveLocal(m LocalMetrics) {
	a.localCh <- m
}

// Snapshot returns the current aggregated telemetry state.
func (a *Actor) Snapshot(ctx context.Context) (First, error) {
	reply := make(chan First, 1)
	select {
	case a.snapshotCh <- snapshotRequest{reply: reply}:
	case <-ctx.Done():
		return First{}, ctx.Err()
	}
	select {
	case f := <-reply:
		return f, nil
	case <-ctx.Done():
		return First{}, ctx.Err()
	}
}

// --- monitor-facing senders (fire-and-forget, never block the actor) ---

func (a *Actor) notifyConnected(url string, cfg PeerConfig) { a.connectedCh <- connectedMsg{url, cfg} }
func (a *Actor) notifyGeo(url string, geo PeerGeo)          { a.geoCh <- geoMsg{url, geo} }
func (a *Actor) notifyUnsupported(url string) {
	a.unsupportedCh <- telemetryUnsupportedMsg{url}
}
func (a *Actor) notifyDisconnected(url string) { a.disconnectCh <- disconnectedMsg{url} }
func (a *Actor) notifyStatus(url string, m PeerMetrics, at time.Time) {
	a.statusCh <- statusMsg{url, m, at}
}
func (a *Actor) notifyPeers(url string, peers map[PublicKey]struct{}) {
	a.peersCh <- peersMsg{url, peers}
}
