// Package store implements the append-only, height-indexed block store
// (spec.md §4.2). It is owned exclusively by the state actor: mutators
// (Append, ReplaceTop, Truncate) are only ever called from the actor
// goroutine, while Get/HashAt/Count are safe to call while a read guard is
// held.
//
// On-disk layout follows the teacher's WAL convention in core/ledger.go: a
// newline-delimited JSON log, one block per line, opened with
// os.O_APPEND|os.O_CREATE. An in-memory index of each height's byte offset,
// rebuilt by scanning the log on Open (no index file is written), lets
// Get/HashAt read a block without rescanning the log — the concrete
// implementation choice left open by spec.md §6 ("on-disk format inherited
// from the ledger's own storage library... not redefined here").
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"ledgermirror/internal/ledgertypes"
)

const defaultCacheSize = 128

// Reader is the read-only subset of Store's API. A *Store satisfies it
// directly; stateactor.ReadGuard hands out a frozen, point-in-time
// implementation instead of the live *Store so a held guard's store side
// stays as stable as its already-cloned world-state view (spec.md §5).
type Reader interface {
	Count() uint64
	Get(height uint64) (*ledgertypes.Block, bool)
	HashAt(height uint64) (ledgertypes.Hash, bool)
}

const (
	logFileName = "blocks.log"
	idxFileName = "blocks.idx"
)

// Store is the on-disk, height-indexed block log plus its bounded cache.
type Store struct {
	dir string

	mu     sync.Mutex // guards file handles and the offset index during mutation
	logF   *os.File
	offset []int64 // offset[h-1] = byte offset of block at height h

	cache *lru.Cache[uint64, *ledgertypes.Block]
}

// Open opens or creates a block store rooted at dir, replaying the on-disk
// log to rebuild the offset index, matching core/ledger.go's WAL-replay
// pattern in NewLedger.
func Open(dir string, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	logPath := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open block log: %w", err)
	}

	cache, err := lru.New[uint64, *ledgertypes.Block](cacheSize)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create block cache: %w", err)
	}

	s := &Store{dir: dir, logF: f, cache: cache}
	if err := s.rebuildIndex(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) rebuildIndex() error {
	if _, err := s.logF.Seek(0, 0); err != nil {
		return fmt.Errorf("seek block log: %w", err)
	}
	scanner := bufio.NewScanner(s.logF)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var offsets []int64
	var pos int64
	for scanner.Scan() {
		line := scanner.Bytes()
		offsets = append(offsets, pos)
		pos += int64(len(line)) + 1
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan block log: %w", err)
	}
	if _, err := s.logF.Seek(0, 2); err != nil {
		return fmt.Errorf("seek block log end: %w", err)
	}
	s.offset = offsets
	return nil
}

// Count returns the number of blocks currently stored.
func (s *Store) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.offset))
}

func (s *Store) readAt(off int64) (*ledgertypes.Block, error) {
	r := io.NewSectionReader(s.logF, off, 1<<30)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read block: %w", err)
		}
		return nil, fmt.Errorf("read block: unexpected eof")
	}
	var blk ledgertypes.Block
	if err := json.Unmarshal(scanner.Bytes(), &blk); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return &blk, nil
}

// Get retrieves the block at the given height, or (nil, false) if absent.
func (s *Store) Get(height uint64) (*ledgertypes.Block, bool) {
	if height == 0 {
		return nil, false
	}
	if blk, ok := s.cache.Get(height); ok {
		return blk, true
	}

	s.mu.Lock()
	if height > uint64(len(s.offset)) {
		s.mu.Unlock()
		return nil, false
	}
	off := s.offset[height-1]
	s.mu.Unlock()

	blk, err := s.readAt(off)
	if err != nil {
		return nil, false
	}
	s.cache.Add(height, blk)
	return blk, true
}

// HashAt returns the hash stored at the given height.
func (s *Store) HashAt(height uint64) (ledgertypes.Hash, bool) {
	blk, ok := s.Get(height)
	if !ok {
		return ledgertypes.Hash{}, false
	}
	return blk.Header.Hash, true
}

func (s *Store) appendLocked(blk *ledgertypes.Block) error {
	data, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}
	off, err := s.logF.Seek(0, 2)
	if err != nil {
		return fmt.Errorf("seek block log end: %w", err)
	}
	if _, err := s.logF.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append block: %w", err)
	}
	if err := s.logF.Sync(); err != nil {
		return fmt.Errorf("sync block log: %w", err)
	}
	s.offset = append(s.offset, off)
	s.cache.Add(blk.Header.Height, blk)
	return nil
}

// Append adds a new block to the end of the store. The caller (state actor)
// must have already validated blk.Header.Height == Count()+1.
func (s *Store) Append(blk *ledgertypes.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(blk)
}

// ReplaceTop rewrites the current top block with blk, used for soft-fork
// handling. The log is truncated to drop the previous top entry, then the
// new block is appended; this keeps the append-only log append-only except
// at the very tail, matching the teacher's ledger.RebuildChain pattern of
// rewriting from a known-good prefix.
func (s *Store) ReplaceTop(blk *ledgertypes.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.offset) == 0 {
		return fmt.Errorf("replace top: store is empty")
	}
	cutoff := s.offset[len(s.offset)-1]
	if err := s.logF.Truncate(cutoff); err != nil {
		return fmt.Errorf("truncate block log: %w", err)
	}
	droppedHeight := uint64(len(s.offset))
	s.offset = s.offset[:len(s.offset)-1]
	s.cache.Remove(droppedHeight)
	return s.appendLocked(blk)
}

// Truncate drops all blocks above height, keeping exactly height blocks.
// Store-I/O failures here are fatal per spec.md §4.1/§7: the caller (state
// actor reinit) is expected to abort its hosting goroutine if this errors.
func (s *Store) Truncate(height uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if height > uint64(len(s.offset)) {
		return fmt.Errorf("truncate: height %d exceeds count %d", height, len(s.offset))
	}
	var cutoff int64
	if height > 0 {
		if height < uint64(len(s.offset)) {
			// cut right before the first surviving-beyond-height entry
			cutoff = s.offset[height]
		} else {
			end, err := s.logF.Seek(0, 2)
			if err != nil {
				return fmt.Errorf("seek block log end: %w", err)
			}
			cutoff = end
		}
	}
	if err := s.logF.Truncate(cutoff); err != nil {
		return fmt.Errorf("truncate block log: %w", err)
	}
	if _, err := s.logF.Seek(0, 2); err != nil {
		return fmt.Errorf("seek block log end: %w", err)
	}
	for h := height + 1; h <= uint64(len(s.offset)); h++ {
		s.cache.Remove(h)
	}
	s.offset = s.offset[:height]
	return nil
}

// Close flushes and closes the underlying log file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logF.Close()
}
