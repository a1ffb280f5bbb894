package stateactor

import (
	"context"
	"fmt"
	"time"

	"ledgermirror/internal/ledgertypes"
	"ledgermirror/internal/store"
	"ledgermirror/internal/worldstate"
)

// handleConfirm implements spec.md §4.1's ConfirmLocalHeight decision
// table. Rules are checked in priority order; the first match wins.
func (a *Actor) handleConfirm(height uint64) error {
	storeHeight := a.store.Count()

	switch {
	case a.expectSoftFork && height == storeHeight:
		a.expectSoftFork = false
		return nil

	case height > storeHeight:
		return ErrConfirmedHeightExceedsStore

	case height == storeHeight:
		return nil

	case height+1 == storeHeight:
		a.expectSoftFork = true
		return nil

	default: // height+1 < storeHeight
		return a.reinit(height)
	}
}

// handleInsert implements spec.md §4.1's InsertBlock decision table.
func (a *Actor) handleInsert(block *ledgertypes.Block) error {
	viewHeight := a.view.Height()
	storeHeight := a.store.Count()
	if viewHeight != storeHeight {
		return ErrNotConfirmed
	}

	h := block.Header.Height

	if a.expectSoftFork {
		if h != viewHeight {
			return &HeightMismatchError{Expected: viewHeight, Actual: h}
		}
		return a.applySoftFork(block)
	}

	if h != viewHeight+1 {
		return &HeightMismatchError{Expected: viewHeight + 1, Actual: h}
	}
	if h == 1 {
		return a.applyGenesis(block)
	}
	return a.applyNext(block)
}

func (a *Actor) applyGenesis(block *ledgertypes.Block) error {
	authority, err := block.GenesisAuthority()
	if err != nil {
		return ErrGenesisNoTransactions
	}
	if err := a.store.Append(block); err != nil {
		a.fatal(fmt.Errorf("append genesis block: %w", err))
	}

	a.view = worldstate.NewSeeded(authority)
	a.view.Apply(block)

	a.metrics.recordApply(1, block.Header.CreatedAt, a.metrics.LastBlockTime)
	a.pushMetrics()
	return nil
}

func (a *Actor) applyNext(block *ledgertypes.Block) error {
	expectedPrev, ok := a.store.HashAt(a.view.Height())
	if !ok || block.Header.PrevHash == nil || *block.Header.PrevHash != expectedPrev {
		return &PrevHashMismatchError{}
	}
	var prevCreatedAt time.Time
	if prev, ok := a.store.Get(a.view.Height()); ok {
		prevCreatedAt = prev.Header.CreatedAt
	}

	if err := a.store.Append(block); err != nil {
		a.fatal(fmt.Errorf("append block %d: %w", block.Header.Height, err))
	}

	a.view.Apply(block)

	a.metrics.recordApply(block.Header.Height, block.Header.CreatedAt, prevCreatedAt)
	a.pushMetrics()
	return nil
}

// applySoftFork replaces the current top block with block (spec.md §4.1's
// soft-fork branch). For height > 1 this reverts the view to the header of
// the replaced block (View.RevertTop, backed by the pre-apply snapshot
// View.Apply already keeps) and re-applies on top of it. Height 1 is
// special: there is no "before genesis" state to revert to, so the
// implicit genesis domain+account must instead be reseeded from the
// replacement block's own first transaction, exactly as a from-scratch
// Insert(B'_1) would (spec.md §8's soft-fork round-trip property at n=1).
func (a *Actor) applySoftFork(block *ledgertypes.Block) error {
	h := block.Header.Height

	var authority ledgertypes.AccountID
	if h == 1 {
		var err error
		authority, err = block.GenesisAuthority()
		if err != nil {
			return ErrGenesisNoTransactions
		}
	}

	if err := a.store.ReplaceTop(block); err != nil {
		a.fatal(fmt.Errorf("replace top block %d: %w", h, err))
	}

	var prevCreatedAt time.Time
	if blk, ok := a.store.Get(h - 1); ok {
		prevCreatedAt = blk.Header.CreatedAt
	}

	if h == 1 {
		a.view = worldstate.NewSeeded(authority)
	} else if !a.view.RevertTop() {
		a.fatal(fmt.Errorf("soft fork: no pre-top snapshot available to revert for block %d", h))
	}
	a.view.Apply(block)
	a.expectSoftFork = false

	a.metrics.recordApply(h, block.Header.CreatedAt, prevCreatedAt)
	a.pushMetrics()
	return nil
}

// reinit performs a full reinitialisation to height h: it drains
// outstanding read guards, truncates and re-opens the on-disk store, then
// rebuilds the world-state view from scratch by replaying the surviving
// blocks (spec.md §4.1, numbered steps).
func (a *Actor) reinit(h uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := a.lease.waitDrained(ctx); err != nil {
		return fmt.Errorf("reinit: draining outstanding read guards: %w", err)
	}

	a.view = nil

	if err := a.store.Truncate(h); err != nil {
		a.fatal(fmt.Errorf("reinit: truncate store to height %d: %w", h, err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("reinit: closing old store handle")
	}
	newStore, err := store.Open(a.storeDir, a.cacheSize)
	if err != nil {
		a.fatal(fmt.Errorf("reinit: reopen store: %w", err))
	}
	a.store = newStore

	a.metrics.reset()
	a.pushMetrics()

	view, err := replayView(a.store)
	if err != nil {
		a.fatal(fmt.Errorf("reinit: replay to height %d: %w", h, err))
	}
	a.view = view
	a.expectSoftFork = false

	a.metrics.Height = view.Height()
	a.pushMetrics()
	return nil
}
