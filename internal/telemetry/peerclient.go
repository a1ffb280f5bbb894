package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrTelemetryUnsupported is returned by PeerClient.Status when the peer
// answers /status with 501 Not Implemented.
var ErrTelemetryUnsupported = errors.New("telemetry: peer does not support /status")

// ErrGeoPermanentFailure is returned by GeoClient.Lookup when the service
// answers with an explicit {status:"fail"} response — a permanent error
// the geo one-shot gives up on rather than retrying (spec.md §4.6).
var ErrGeoPermanentFailure = errors.New("telemetry: geo lookup permanently failed")

// PeerClient fetches a single peer's telemetry endpoints. The default
// implementation is a thin net/http wrapper: this is a plain fetch, not a
// client framework any repo in the pack specializes, so the standard
// library is the idiomatic choice here (see DESIGN.md).
type PeerClient interface {
	Status(ctx context.Context, peerURL string) (PeerMetrics, error)
	Peers(ctx context.Context, peerURL string) (map[PublicKey]struct{}, error)
	Configuration(ctx context.Context, peerURL string) (PeerConfig, error)
}

// GeoClient looks up a host's approximate location.
type GeoClient interface {
	Lookup(ctx context.Context, host string) (PeerGeo, error)
}

type httpPeerClient struct {
	client *http.Client
}

// NewHTTPPeerClient builds a PeerClient backed by the standard library
// HTTP client, with the given per-request timeout.
func NewHTTPPeerClient(requestTimeout time.Duration) PeerClient {
	return &httpPeerClient{client: &http.Client{Timeout: requestTimeout}}
}

type statusResponse struct {
	Block           uint64  `json:"block"`
	BlockCommitTime float64 `json:"block_commit_time_ms"`
	QueueSize       uint64  `json:"queue_size"`
	UptimeSeconds   float64 `json:"uptime_s"`
}

func (c *httpPeerClient) Status(ctx context.Context, peerURL string) (PeerMetrics, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peerURL+"/status", nil)
	if err != nil {
		return PeerMetrics{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return PeerMetrics{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotImplemented {
		return PeerMetrics{}, ErrTelemetryUnsupported
	}
	if resp.StatusCode != http.StatusOK {
		return PeerMetrics{}, fmt.Errorf("telemetry: /status returned %d", resp.StatusCode)
	}
	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return PeerMetrics{}, err
	}
	return PeerMetrics{
		Block:           body.Block,
		BlockCommitTime: time.Duration(body.BlockCommitTime * float64(time.Millisecond)),
		QueueSize:       body.QueueSize,
		Uptime:          time.Duration(body.UptimeSeconds * float64(time.Second)),
	}, nil
}

type peerIdentity struct {
	PublicKey PublicKey `json:"public_key"`
}

func (c *httpPeerClient) Peers(ctx context.Context, peerURL string) (map[PublicKey]struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peerURL+"/peers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telemetry: /peers returned %d", resp.StatusCode)
	}
	var identities []peerIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identities); err != nil {
		return nil, err
	}
	set := make(map[PublicKey]struct{}, len(identities))
	for _, id := range identities {
		set[id.PublicKey] = struct{}{}
	}
	return set, nil
}

func (c *httpPeerClient) Configuration(ctx context.Context, peerURL string) (PeerConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peerURL+"/configuration", nil)
	if err != nil {
		return PeerConfig{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return PeerConfig{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return PeerConfig{}, fmt.Errorf("telemetry: /configuration returned %d", resp.StatusCode)
	}
	var cfg PeerConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return PeerConfig{}, err
	}
	return cfg, nil
}

type geoResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	City    string  `json:"city"`
}

type httpGeoClient struct {
	client *http.Client
}

// NewHTTPGeoClient builds a GeoClient against ip-api.com (spec.md §6).
func NewHTTPGeoClient(requestTimeout time.Duration) GeoClient {
	return &httpGeoClient{client: &http.Client{Timeout: requestTimeout}}
}

func (c *httpGeoClient) Lookup(ctx context.Context, host string) (PeerGeo, error) {
	u := fmt.Sprintf("http://ip-api.com/json/%s?fields=status,message,lat,lon,country,city", url.PathEscape(host))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return PeerGeo{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return PeerGeo{}, err
	}
	defer resp.Body.Close()
	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return PeerGeo{}, err
	}
	if body.Status != "success" {
		return PeerGeo{}, fmt.Errorf("%w: %s", ErrGeoPermanentFailure, body.Message)
	}
	return PeerGeo{Latitude: body.Lat, Longitude: body.Lon, Country: body.Country, City: body.City}, nil
}
