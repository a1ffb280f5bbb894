package stateactor

import (
	"errors"
	"fmt"
)

// Input-validation errors (spec.md §7): caller-visible and non-fatal. They
// never poison the actor's internal state.
var (
	ErrConfirmedHeightExceedsStore = errors.New("confirmed height exceeds store count")
	ErrNotConfirmed                = errors.New("local height and view height are not in sync")
	ErrGenesisNoTransactions       = errors.New("genesis block has no transactions")
)

// HeightMismatchError reports that InsertBlock received a block whose
// height does not match what the current branch (normal or soft-fork)
// expects next.
type HeightMismatchError struct {
	Expected uint64
	Actual   uint64
}

func (e *HeightMismatchError) Error() string {
	return fmt.Sprintf("received block height mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// PrevHashMismatchError reports that an inserted block's previous-block
// hash does not match the store's hash at the current height.
type PrevHashMismatchError struct{}

func (e *PrevHashMismatchError) Error() string {
	return "received block's previous-block hash does not match the stored chain"
}

// ErrActorShuttingDown is returned to callers whose request could not be
// enqueued because the actor is draining or has already exited.
var ErrActorShuttingDown = errors.New("state actor is shutting down")
