package stateactor

import (
	"sync/atomic"

	"ledgermirror/internal/ledgertypes"
	"ledgermirror/internal/store"
	"ledgermirror/internal/worldstate"
)

// ReadGuard is a point-in-time, self-contained lease over the store and an
// independent world-state clone. Its Store and View stay valid and
// unaffected by anything the actor does after the guard was issued; the
// lessee must call Close when done so the actor can proceed with a full
// reinit if one is pending (spec.md §4.1, §4.3).
type ReadGuard struct {
	store    store.Reader
	view     *worldstate.View
	lease    *leaseTracker
	released int32
}

// Store returns the block store as of the moment the guard was acquired.
// Get/Count/HashAt on it remain safe to call for the lifetime of the guard
// and observe neither a concurrent append nor a concurrent soft-fork
// top-replacement (spec.md §5's "snapshot ... remains stable for the
// guard's lifetime").
func (g *ReadGuard) Store() store.Reader { return g.store }

// View returns the world-state snapshot as of the moment the guard was
// acquired. It is a private clone: nothing the actor does afterwards is
// visible through it.
func (g *ReadGuard) View() *worldstate.View { return g.view }

// Close releases the guard. Safe to call more than once.
func (g *ReadGuard) Close() {
	if atomic.CompareAndSwapInt32(&g.released, 0, 1) {
		g.lease.release()
	}
}

// storeSnapshot is a point-in-time, read-only view over the live block
// store, captured at read-guard acquire time. A full reinit (Truncate) only
// ever runs after every outstanding guard has drained, so every height up
// to the captured count is immutable for as long as any snapshot exists —
// except the top height, which a soft fork may rewrite in place via
// ReplaceTop while this guard is still outstanding. Pinning the top
// block's pointer at capture time (store.Append/ReplaceTop never mutate an
// already-returned *Block, they only swap which block a height maps to)
// makes that last height stable too, without cloning the rest of the
// store.
type storeSnapshot struct {
	store *store.Store
	count uint64
	top   *ledgertypes.Block
}

func newStoreSnapshot(st *store.Store) *storeSnapshot {
	count := st.Count()
	var top *ledgertypes.Block
	if count > 0 {
		top, _ = st.Get(count)
	}
	return &storeSnapshot{store: st, count: count, top: top}
}

// Count returns the store's height as of acquire time, never the live
// count.
func (s *storeSnapshot) Count() uint64 { return s.count }

// Get returns the block at height, bounded to the snapshot's captured
// count. The top height is served from the pinned pointer so a concurrent
// soft-fork replacement is never observed.
func (s *storeSnapshot) Get(height uint64) (*ledgertypes.Block, bool) {
	if height == 0 || height > s.count {
		return nil, false
	}
	if height == s.count && s.top != nil {
		return s.top, true
	}
	return s.store.Get(height)
}

// HashAt returns the hash stored at height, subject to the same
// acquire-time bound as Get.
func (s *storeSnapshot) HashAt(height uint64) (ledgertypes.Hash, bool) {
	blk, ok := s.Get(height)
	if !ok {
		return ledgertypes.Hash{}, false
	}
	return blk.Header.Hash, true
}
