package telemetry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// broadcastBuffer is the per-subscriber channel capacity (spec.md §4.6).
const broadcastBuffer = 512

// broadcaster fans Event values out to subscribers, keyed by a uuid so
// Unsubscribe is O(1). Sends are non-blocking: a full subscriber channel
// is logged as lagging and dropped rather than allowed to stall the
// telemetry actor (spec.md §5 "Lagged subscribers are logged and
// continue").
type broadcaster struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]chan Event
	logger *logrus.Entry
}

func newBroadcaster(logger *logrus.Entry) *broadcaster {
	return &broadcaster{subs: make(map[uuid.UUID]chan Event), logger: logger}
}

// Subscribe registers a new subscriber and returns its id and channel. The
// caller is responsible for sending the First snapshot before relying on
// this channel for incremental Events.
func (b *broadcaster) Subscribe() (uuid.UUID, <-chan Event) {
	id := uuid.New()
	ch := make(chan Event, broadcastBuffer)
	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber. Safe to call more than once.
func (b *broadcaster) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	ch, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Publish sends ev to every current subscriber, dropping it (and logging)
// for any subscriber whose buffer is full.
func (b *broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.WithField("subscriber", id).Warn("telemetry subscriber lagging, dropping event")
		}
	}
}
