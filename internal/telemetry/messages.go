package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// The following are the messages a peer monitor sends to the telemetry
// actor as its probes complete. Each is fire-and-forget from the
// monitor's perspective (spec.md's "the telemetry actor must not block on
// any monitor") — monitors send on a buffered channel and move on.

type connectedMsg struct {
	url    string
	config PeerConfig
}

type geoMsg struct {
	url string
	geo PeerGeo
}

type telemetryUnsupportedMsg struct {
	url string
}

type disconnectedMsg struct {
	url string
}

type statusMsg struct {
	url     string
	metrics PeerMetrics
	at      time.Time
}

type peersMsg struct {
	url   string
	peers map[PublicKey]struct{}
}

type subscribeRequest struct {
	reply chan subscribeReply
}

type subscribeReply struct {
	id    uuid.UUID
	first First
	ch    <-chan Event
}

type unsubscribeRequest struct {
	id uuid.UUID
}

type snapshotRequest struct {
	reply chan First
}
