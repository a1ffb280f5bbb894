package stateactor

import (
	"fmt"

	"ledgermirror/internal/store"
	"ledgermirror/internal/worldstate"
)

// replayView rebuilds a world-state view from scratch by replaying every
// block currently in st, in height order. The returned view's own
// View.Apply keeps a pre-top snapshot internally (see internal/worldstate),
// so a subsequent single-block soft-fork can call View.RevertTop without a
// second full replay; this function has nothing further to track.
func replayView(st *store.Store) (current *worldstate.View, err error) {
	count := st.Count()
	if count == 0 {
		return worldstate.New(), nil
	}

	genesisBlock, ok := st.Get(1)
	if !ok {
		return nil, fmt.Errorf("replay: genesis block missing from a non-empty store")
	}
	authority, err := genesisBlock.GenesisAuthority()
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	current = worldstate.NewSeeded(authority)
	current.Apply(genesisBlock)

	for h := uint64(2); h <= count; h++ {
		blk, ok := st.Get(h)
		if !ok {
			return nil, fmt.Errorf("replay: block %d missing from store (count=%d)", h, count)
		}
		current.Apply(blk)
	}
	return current, nil
}
