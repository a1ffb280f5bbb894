// Package telemetry implements the peer-telemetry aggregator (spec.md
// §4.6): one monitor task per configured peer URL feeds a central
// telemetry actor, which aggregates network-wide status and broadcasts
// incremental updates to subscribers. Grounded on the teacher's
// core/chain_fork_manager.go for the "independent task reports state
// transitions via logrus" texture, generalized from a single mutex-guarded
// map to a dedicated actor loop matching internal/stateactor's shape.
package telemetry

import "time"

// PublicKey identifies a peer, as reported by its own /configuration.
type PublicKey string

// PeerConfig is the result of a peer's /configuration call.
type PeerConfig struct {
	PublicKey PublicKey
}

// PeerGeo is the result of the one-shot IP-geolocation lookup.
type PeerGeo struct {
	Latitude  float64
	Longitude float64
	Country   string
	City      string
}

// PeerMetrics is the per-peer status snapshot reported by /status.
type PeerMetrics struct {
	Block           uint64
	BlockCommitTime time.Duration
	AvgCommitTime   time.Duration
	QueueSize       uint64
	Uptime          time.Duration
}

// PeerRecord is the telemetry actor's full view of one configured peer
// (spec.md §3's "Telemetry peer record"). LastTransitionAt supplements the
// distilled spec with the original iroha2-block-explorer-backend's
// per-peer connection-state timestamp, used for diagnostics logging.
type PeerRecord struct {
	URL                  string
	Connected            bool
	TelemetryUnsupported bool
	Config               *PeerConfig
	Geo                  *PeerGeo
	ConnectedPeers       map[PublicKey]struct{}
	Metrics              *PeerMetrics
	LastTransitionAt     time.Time
}

func newPeerRecord(url string) PeerRecord {
	return PeerRecord{URL: url}
}

// LocalMetrics mirrors stateactor.IncrementalMetrics's shape without this
// package importing internal/stateactor (same Source-style decoupling as
// internal/query's Source interface) — cmd/mirrord converts one to the
// other when wiring the state actor's MetricsSink into ObserveLocal.
type LocalMetrics struct {
	Height              uint64
	BlockCount          uint64
	LastBlockTime       time.Time
	LastInterBlockDelta time.Duration
}

// NetworkStatus is the aggregated, network-wide view (spec.md's state
// aggregation rules). Local carries the mirror's own blockchain-metrics
// snapshot (spec.md §3's "a blockchain-metrics snapshot is pushed from the
// state actor into the telemetry actor after each apply") alongside the
// peer-derived fields; nil until the state actor's first apply.
type NetworkStatus struct {
	FinalizedBlock *uint64
	AvgCommitTime  *time.Duration
	TotalPeers     int
	Local          *LocalMetrics
}

// First is the snapshot sent to every new subscriber immediately on
// subscribe, before any incremental update.
type First struct {
	PeersInfo     map[string]PeerRecord
	PeersStatus   map[string]PeerRecord
	NetworkStatus NetworkStatus
}

// Event is the broadcast payload after the initial First snapshot: exactly
// the segment that changed.
type Event struct {
	NetworkStatus *NetworkStatus
	PeerStatus    *PeerRecord
	PeerInfo      *PeerRecord
}
