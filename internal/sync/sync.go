// Package sync drives the confirmation handshake against an upstream full
// node, then feeds its unending block stream into the state actor
// (spec.md §4.3). The loop shape follows the teacher's
// core/blockchain_synchronization.go SyncManager: a goroutine retrying a
// single round, logging and backing off on error instead of giving up.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ledgermirror/internal/ledgertypes"
	"ledgermirror/internal/stateactor"
)

const (
	defaultBackoff        = 5 * time.Second
	reconcileBatchHeights = 32
)

// UpstreamClient is the full node this mirror tracks. Implementations
// typically wrap an RPC or HTTP client; internal/sync/upstream_test.go
// provides an in-memory stub for tests.
type UpstreamClient interface {
	// GenesisHash returns the upstream's height-1 block hash.
	GenesisHash(ctx context.Context) (ledgertypes.Hash, error)
	// HashAt returns the upstream's hash at height, or ok=false if the
	// upstream itself has not reached that height.
	HashAt(ctx context.Context, height uint64) (hash ledgertypes.Hash, ok bool, err error)
	// StreamFrom opens an unending stream of committed blocks starting at
	// from. The block channel is closed when the stream ends; a nil error
	// on errCh with the block channel still open just means "no error
	// yet" and should be ignored by callers selecting on both.
	StreamFrom(ctx context.Context, from uint64) (<-chan *ledgertypes.Block, <-chan error)
}

// Loop is the running sync loop.
type Loop struct {
	actor    *stateactor.Actor
	upstream UpstreamClient
	logger   *logrus.Entry
	backoff  time.Duration
}

// New constructs a sync loop. backoff <= 0 defaults to 5s (spec.md §4.3).
func New(actor *stateactor.Actor, upstream UpstreamClient, logger *logrus.Entry, backoff time.Duration) *Loop {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Loop{actor: actor, upstream: upstream, logger: logger, backoff: backoff}
}

// Run drives the loop until ctx is cancelled. A failed round is logged and
// retried after the configured back-off, per spec.md §4.3 step 5.
func (l *Loop) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.WithError(err).Warn("sync round failed; restarting after back-off")
			select {
			case <-time.After(l.backoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

// runOnce performs the confirmation handshake (steps 1-4) and then streams
// blocks from the upstream until the stream ends or errors (step 5).
func (l *Loop) runOnce(ctx context.Context) error {
	syncFrom, err := l.handshake(ctx)
	if err != nil {
		return fmt.Errorf("sync: handshake: %w", err)
	}

	blocks, errs := l.upstream.StreamFrom(ctx, syncFrom)
	for {
		select {
		case blk, ok := <-blocks:
			if !ok {
				return fmt.Errorf("sync: upstream block stream closed")
			}
			if err := l.actor.InsertBlock(ctx, blk); err != nil {
				return fmt.Errorf("sync: insert block %d: %w", blk.Header.Height, err)
			}
		case err := <-errs:
			if err != nil {
				return fmt.Errorf("sync: upstream stream error: %w", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// handshake implements spec.md §4.3 steps 1-4 and returns the height the
// block stream should start from.
func (l *Loop) handshake(ctx context.Context) (uint64, error) {
	guard, err := l.actor.AcquireReadGuard(ctx)
	if err != nil {
		return 0, err
	}
	k := guard.Store().Count()
	localGenesis, haveGenesis := guard.Store().HashAt(1)
	guard.Close()

	if k == 0 {
		if err := l.actor.ConfirmLocalHeight(ctx, 0); err != nil {
			return 0, err
		}
		return 1, nil
	}

	upstreamGenesis, err := l.upstream.GenesisHash(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch upstream genesis hash: %w", err)
	}
	if !haveGenesis || upstreamGenesis != localGenesis {
		if err := l.actor.ConfirmLocalHeight(ctx, 0); err != nil {
			return 0, err
		}
		return 1, nil
	}

	lastMatch, found, err := l.reconcile(ctx, k)
	if err != nil {
		return 0, fmt.Errorf("reconcile with upstream: %w", err)
	}
	if !found {
		if err := l.actor.ConfirmLocalHeight(ctx, 0); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err := l.actor.ConfirmLocalHeight(ctx, lastMatch); err != nil {
		return 0, err
	}
	return lastMatch + 1, nil
}

// reconcile walks the upstream's hash index downward from height k, in
// batches of reconcileBatchHeights, looking for the highest height whose
// hash matches the local store (spec.md §4.3 step 4).
func (l *Loop) reconcile(ctx context.Context, k uint64) (lastMatch uint64, found bool, err error) {
	if k == 0 {
		return 0, false, nil
	}
	hi := k
	for {
		lo := uint64(1)
		if hi > reconcileBatchHeights {
			lo = hi - reconcileBatchHeights + 1
		}

		for h := hi; ; h-- {
			guard, err := l.actor.AcquireReadGuard(ctx)
			if err != nil {
				return 0, false, err
			}
			localHash, ok := guard.Store().HashAt(h)
			guard.Close()

			if ok {
				upstreamHash, exists, err := l.upstream.HashAt(ctx, h)
				if err != nil {
					return 0, false, err
				}
				if exists && upstreamHash == localHash {
					return h, true, nil
				}
			}
			if h == lo {
				break
			}
		}

		if lo == 1 {
			return 0, false, nil
		}
		hi = lo - 1
	}
}

// ErrStreamClosed is returned by UpstreamClient implementations to signal
// a clean end of stream distinct from a transport error.
var ErrStreamClosed = errors.New("upstream block stream closed")
