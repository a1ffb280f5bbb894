package sync

import (
	"context"
	"sync"

	"ledgermirror/internal/ledgertypes"
)

// stubUpstream is an in-memory UpstreamClient for tests: a fixed slice of
// blocks, streamed in order starting from whatever height StreamFrom is
// given.
type stubUpstream struct {
	mu     sync.Mutex
	blocks []*ledgertypes.Block // index 0 is height 1
}

func newStubUpstream(blocks []*ledgertypes.Block) *stubUpstream {
	return &stubUpstream{blocks: blocks}
}

func (s *stubUpstream) GenesisHash(ctx context.Context) (ledgertypes.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.blocks) == 0 {
		return ledgertypes.Hash{}, nil
	}
	return s.blocks[0].Header.Hash, nil
}

func (s *stubUpstream) HashAt(ctx context.Context, height uint64) (ledgertypes.Hash, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if height == 0 || height > uint64(len(s.blocks)) {
		return ledgertypes.Hash{}, false, nil
	}
	return s.blocks[height-1].Header.Hash, true, nil
}

func (s *stubUpstream) StreamFrom(ctx context.Context, from uint64) (<-chan *ledgertypes.Block, <-chan error) {
	blockCh := make(chan *ledgertypes.Block)
	errCh := make(chan error, 1)
	go func() {
		defer close(blockCh)
		s.mu.Lock()
		blocks := append([]*ledgertypes.Block(nil), s.blocks...)
		s.mu.Unlock()
		for h := from; h <= uint64(len(blocks)); h++ {
			select {
			case blockCh <- blocks[h-1]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return blockCh, errCh
}
