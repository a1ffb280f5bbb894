package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ledgermirror/internal/ledgertypes"
)

// HTTPUpstream is the default UpstreamClient: a plain net/http wrapper over
// the upstream's block-hash index and NDJSON block stream. Like
// internal/telemetry's httpPeerClient, this is a thin fetch no pack repo
// specializes a client library for, so the standard library is the
// idiomatic choice (see DESIGN.md).
type HTTPUpstream struct {
	baseURL string
	client  *http.Client
}

// NewHTTPUpstream builds an HTTPUpstream against baseURL (e.g.
// "http://localhost:8081") with the given per-request timeout. The block
// stream itself is long-lived and not subject to this timeout.
func NewHTTPUpstream(baseURL string, requestTimeout time.Duration) *HTTPUpstream {
	return &HTTPUpstream{baseURL: baseURL, client: &http.Client{Timeout: requestTimeout}}
}

type hashResponse struct {
	Hash ledgertypes.Hash `json:"hash"`
	OK   bool             `json:"ok"`
}

func (u *HTTPUpstream) getHash(ctx context.Context, path string) (ledgertypes.Hash, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+path, nil)
	if err != nil {
		return ledgertypes.Hash{}, false, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return ledgertypes.Hash{}, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ledgertypes.Hash{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return ledgertypes.Hash{}, false, fmt.Errorf("upstream: %s returned %d", path, resp.StatusCode)
	}
	var body hashResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ledgertypes.Hash{}, false, err
	}
	return body.Hash, body.OK, nil
}

// GenesisHash implements UpstreamClient.
func (u *HTTPUpstream) GenesisHash(ctx context.Context) (ledgertypes.Hash, error) {
	hash, ok, err := u.getHash(ctx, "/blocks/1/hash")
	if err != nil {
		return ledgertypes.Hash{}, err
	}
	if !ok {
		return ledgertypes.Hash{}, fmt.Errorf("upstream: no genesis block yet")
	}
	return hash, nil
}

// HashAt implements UpstreamClient.
func (u *HTTPUpstream) HashAt(ctx context.Context, height uint64) (ledgertypes.Hash, bool, error) {
	return u.getHash(ctx, fmt.Sprintf("/blocks/%d/hash", height))
}

// StreamFrom implements UpstreamClient by opening a chunked NDJSON response
// at /blocks/stream?from=N and decoding one ledgertypes.Block per line. The
// connection is held open for the lifetime of ctx; a server-side close or a
// decode error closes the block channel and sends one error on errCh.
func (u *HTTPUpstream) StreamFrom(ctx context.Context, from uint64) (<-chan *ledgertypes.Block, <-chan error) {
	blocks := make(chan *ledgertypes.Block)
	errs := make(chan error, 1)

	go func() {
		defer close(blocks)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/blocks/stream?from=%d", u.baseURL, from), nil)
		if err != nil {
			errs <- err
			return
		}
		resp, err := u.client.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			errs <- fmt.Errorf("upstream: block stream returned %d", resp.StatusCode)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var blk ledgertypes.Block
			if err := json.Unmarshal(line, &blk); err != nil {
				errs <- fmt.Errorf("upstream: decode stream block: %w", err)
				return
			}
			select {
			case blocks <- &blk:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- err
			return
		}
		errs <- ErrStreamClosed
	}()

	return blocks, errs
}
