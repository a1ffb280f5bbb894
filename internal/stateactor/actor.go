// Package stateactor implements the single-writer state actor that owns
// the block store and the world-state view (spec.md §4.1). It is the
// repo's largest component: all mutation of ledger-derived state happens
// here, serialized through one goroutine's message loop, the same shape
// as the teacher's connection-pool worker in core/connection_pool.go.
package stateactor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ledgermirror/internal/ledgertypes"
	"ledgermirror/internal/store"
	"ledgermirror/internal/worldstate"
)

const defaultShutdownTimeout = 6 * time.Second

// Options configures a new Actor.
type Options struct {
	StoreDir        string
	CacheSize       int
	Logger          *logrus.Entry
	MetricsSink     MetricsSink
	ShutdownTimeout time.Duration
}

type confirmRequest struct {
	height uint64
	reply  chan error
}

type insertRequest struct {
	block *ledgertypes.Block
	reply chan error
}

type guardRequest struct {
	reply chan *ReadGuard
}

// Actor is the running state actor. All exported methods are safe to call
// from any goroutine; they communicate with the actor's own goroutine over
// channels and never touch actor-owned state directly.
type Actor struct {
	storeDir  string
	cacheSize int
	logger    *logrus.Entry

	confirmCh  chan confirmRequest
	insertCh   chan insertRequest
	guardCh    chan guardRequest
	shutdownCh chan chan struct{}
	done       chan struct{}

	shutdownTimeout time.Duration
	metricsSink     MetricsSink

	// actor-owned state; touched only from within run().
	store          *store.Store
	view           *worldstate.View
	expectSoftFork bool
	metrics        IncrementalMetrics
	lease          *leaseTracker
}

// Start opens the store at opts.StoreDir, replays it into a world-state
// view, and launches the actor's message loop in a new goroutine.
func Start(opts Options) (*Actor, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	st, err := store.Open(opts.StoreDir, opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("stateactor: open store: %w", err)
	}
	view, err := replayView(st)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("stateactor: initial replay: %w", err)
	}

	a := &Actor{
		storeDir:        opts.StoreDir,
		cacheSize:       opts.CacheSize,
		logger:          opts.Logger,
		confirmCh:       make(chan confirmRequest),
		insertCh:        make(chan insertRequest),
		guardCh:         make(chan guardRequest),
		shutdownCh:      make(chan chan struct{}),
		done:            make(chan struct{}),
		shutdownTimeout: timeout,
		metricsSink:     opts.MetricsSink,
		store:           st,
		view:            view,
		lease:           newLeaseTracker(),
	}
	a.metrics.Height = view.Height()
	go a.run()
	return a, nil
}

// Done is closed once the actor's message loop has exited.
func (a *Actor) Done() <-chan struct{} { return a.done }

func (a *Actor) run() {
	defer close(a.done)
	for {
		select {
		case req := <-a.confirmCh:
			req.reply <- a.handleConfirm(req.height)
		case req := <-a.insertCh:
			req.reply <- a.handleInsert(req.block)
		case req := <-a.guardCh:
			a.lease.acquire()
			req.reply <- &ReadGuard{store: newStoreSnapshot(a.store), view: a.view.Clone(), lease: a.lease}
		case ack := <-a.shutdownCh:
			a.doShutdown()
			close(ack)
			return
		}
	}
}

func (a *Actor) pushMetrics() {
	if a.metricsSink != nil {
		a.metricsSink(a.metrics)
	}
}

func (a *Actor) fatal(err error) {
	a.logger.WithError(err).Error("fatal state-actor error; aborting hosting goroutine")
	panic(fmt.Errorf("ledgermirror: fatal state actor error: %w", err))
}

// ConfirmLocalHeight reports the consensus-confirmed chain height to the
// actor (spec.md §4.1's decision table).
func (a *Actor) ConfirmLocalHeight(ctx context.Context, height uint64) error {
	reply := make(chan error, 1)
	select {
	case a.confirmCh <- confirmRequest{height: height, reply: reply}:
	case <-a.done:
		return ErrActorShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InsertBlock inserts a newly received block (spec.md §4.1's insert
// decision table).
func (a *Actor) InsertBlock(ctx context.Context, block *ledgertypes.Block) error {
	reply := make(chan error, 1)
	select {
	case a.insertCh <- insertRequest{block: block, reply: reply}:
	case <-a.done:
		return ErrActorShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AcquireReadGuard hands out a self-contained, point-in-time lease over the
// store and a world-state clone. The caller must Close it.
func (a *Actor) AcquireReadGuard(ctx context.Context) (*ReadGuard, error) {
	reply := make(chan *ReadGuard, 1)
	select {
	case a.guardCh <- guardRequest{reply: reply}:
	case <-a.done:
		return nil, ErrActorShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case g := <-reply:
		return g, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown asks the actor to drain outstanding read guards and exit,
// within a bounded deadline (spec.md §5). It blocks until the actor's loop
// has returned or ctx is done.
func (a *Actor) Shutdown(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case a.shutdownCh <- ack:
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) doShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := a.lease.waitDrained(ctx); err != nil {
		a.logger.WithError(err).Warn("shutdown deadline exceeded with read guards still outstanding")
	}
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("closing store on shutdown")
	}
}
